package ingest

// SplitText splits text into overlapping windows of up to size runes.
// Window i starts at rune offset i*(size-overlap); the last window may be
// shorter. Windows are pure slices of the input, so no characters are lost
// or altered. Empty text yields nil; text shorter than size yields a single
// chunk equal to the whole text.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
