package knowledge

import (
	"fmt"
	"strings"
)

// targetWords is the paragraph-packing target, measured by whitespace
// tokenization rather than characters. Grounded on the teacher's
// memory/chunker.go paragraph-boundary packing, retargeted from a
// character budget to a ~500-word budget.
const targetWords = 500

// chunkContent packs title/source-prefixed content into chunks, splitting on
// paragraph boundaries and packing greedily until the next paragraph
// would push a chunk over targetWords.
func chunkContent(title, hostname, content string) []string {
	header := fmt.Sprintf("# %s\nSource: %s\n\n", title, hostname)

	paragraphs := splitParagraphs(content)
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, header+strings.Join(current, "\n\n"))
		current = nil
		currentWords = 0
	}

	for _, p := range paragraphs {
		words := wordCount(p)
		if currentWords > 0 && currentWords+words > targetWords {
			flush()
		}
		current = append(current, p)
		currentWords += words
	}
	flush()

	return chunks
}

func splitParagraphs(content string) []string {
	raw := strings.Split(content, "\n\n")
	var out []string
	for _, p := range raw {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
