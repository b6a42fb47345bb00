package bot

import "strings"

// Split breaks text into chunks of up to maxSize characters, splitting on word
// and line boundaries. Words within a line are joined with a single space,
// source line ends are kept as a newline counted toward the chunk size, and a
// chunk that reaches exactly maxSize is closed immediately even mid-line.
//
// A single word longer than maxSize is never split: it is emitted alone in an
// oversized chunk. No chunk in the output is empty.
func Split(text string, maxSize int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	for _, line := range strings.Split(text, "\n") {
		for _, word := range strings.Fields(line) {
			wordLen := len([]rune(word))

			if currentLen+wordLen > maxSize {
				if current.Len() > 0 {
					chunks = append(chunks, current.String())
					current.Reset()
				}
				currentLen = 0
			}

			if currentLen > 0 {
				current.WriteByte(' ')
				currentLen++ // for the space
			}
			current.WriteString(word)
			currentLen += wordLen

			if currentLen == maxSize {
				chunks = append(chunks, current.String())
				current.Reset()
				currentLen = 0
			}
		}

		if current.Len() > 0 {
			current.WriteByte('\n')
			currentLen++
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
