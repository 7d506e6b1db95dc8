// Package chunker splits text into overlapping fixed-size windows.
package chunker

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Chunk splits text into windows of at most size characters, each starting
// overlap characters before the previous one ended. Sizes count Unicode code
// points. An overlap that would stall the window is clamped to size-1, a
// negative one to 0, and size <= 0 means DefaultSize.
func Chunk(text string, size, overlap int) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return []string{}
	}
	size, overlap = normalize(size, overlap)

	out := make([]string, 0, Count(n, size, overlap))
	start := 0
	for start < n {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, string(runes[start:end]))
		start = end - overlap
		if start >= n-overlap {
			break
		}
	}
	return out
}

// Count is the number of windows Chunk produces for a text of n characters.
func Count(n, size, overlap int) int {
	if n <= 0 {
		return 0
	}
	size, overlap = normalize(size, overlap)
	if n <= size {
		return 1
	}
	step := size - overlap
	return (n - overlap + step - 1) / step
}

func normalize(size, overlap int) (int, int) {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return size, overlap
}
