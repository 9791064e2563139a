package utils

import "strings"

// SplitText splits a long string into chunks of approximately chunkSize
// runes, overlapping by overlap runes to keep context at the boundaries.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	totalLen := len(runes)
	if totalLen <= chunkSize {
		return []string{text}
	}

	var chunks []string
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}

		chunks = append(chunks, string(runes[i:end]))

		if end == totalLen {
			break
		}
	}

	return chunks
}

// SplitPages treats form feeds as page breaks (the convention of pdftotext
// output) and falls back to fixed-size chunks for pages longer than pageSize.
// Blank pages are dropped.
func SplitPages(text string, pageSize int) []string {
	var pages []string
	for _, raw := range strings.Split(text, "\f") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		pages = append(pages, SplitText(raw, pageSize, 0)...)
	}
	return pages
}
