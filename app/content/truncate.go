package content

import (
	"strings"
	"unicode"
)

const (
	DefaultMaxParagraphs = 3
	DefaultMaxChars      = 1200
)

// Truncate keeps at most maxParagraphs paragraphs and maxChars runes, always
// cutting on a paragraph boundary. When even the first paragraph is too long it
// is cut at its last sentence end, else at its last word boundary.
func Truncate(text string, maxParagraphs, maxChars int) string {
	paragraphs := Paragraphs(text)
	if len(paragraphs) == 0 {
		return ""
	}

	kept := make([]string, 0, maxParagraphs)
	length := 0
	for _, p := range paragraphs {
		if maxParagraphs > 0 && len(kept) >= maxParagraphs {
			break
		}

		added := RuneLen(p)
		if len(kept) > 0 {
			added += 2
		}
		if maxChars > 0 && length+added > maxChars {
			if len(kept) == 0 {
				kept = append(kept, cutParagraph(p, maxChars))
			}
			break
		}

		kept = append(kept, p)
		length += added
	}

	return strings.Join(kept, "\n\n")
}

func cutParagraph(p string, maxChars int) string {
	runes := []rune(p)
	if len(runes) <= maxChars {
		return p
	}
	runes = runes[:maxChars]

	// Sentence end: terminal punctuation followed by a space or the cut itself.
	for i := len(runes) - 1; i > 0; i-- {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		if i == len(runes)-1 || unicode.IsSpace(runes[i+1]) {
			return strings.TrimSpace(string(runes[:i+1]))
		}
	}

	for i := len(runes) - 1; i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			return strings.TrimRightFunc(string(runes[:i]), func(r rune) bool {
				return unicode.IsSpace(r) || unicode.IsPunct(r)
			})
		}
	}

	return string(runes)
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}
