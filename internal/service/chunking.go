package service

import (
	"strings"
)

// ChunkConfig controls chunking for article embeddings and scraped
// help-center content.
type ChunkConfig struct {
	MaxChars  int
	Overlap   int
	MaxChunks int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:  1000,
		Overlap:   100,
		MaxChunks: 40,
	}
}

// boundary cut preference, strongest first
var chunkBoundaries = []string{"\n\n", "\n", ". ", " "}

// chunkText splits text into overlapping windows of at most MaxChars,
// preferring paragraph, then line, then sentence, then space breaks,
// falling back to a hard character cut.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			end = cutAtBoundary(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

// cutAtBoundary finds the best break point in runes[start:end], trying
// each boundary kind in priority order within the back half of the
// window. Hard cut at end when nothing matches.
func cutAtBoundary(runes []rune, start, end int) int {
	window := runes[start:end]
	minCut := len(window) / 2

	for _, boundary := range chunkBoundaries {
		if idx := lastRuneIndex(window, []rune(boundary)); idx > minCut {
			return start + idx + len([]rune(boundary))
		}
	}
	return end
}

func lastRuneIndex(window, boundary []rune) int {
	for i := len(window) - len(boundary); i >= 0; i-- {
		match := true
		for j := range boundary {
			if window[i+j] != boundary[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
