package domain

// ScrapedDocument is a cleaned block of help-center text tagged with
// its source. Consumed immediately by chunking.
type ScrapedDocument struct {
	SourceURL string
	Content   string
	Metadata  map[string]string
}
