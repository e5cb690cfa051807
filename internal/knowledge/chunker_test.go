package knowledge

import "testing"

func TestChunkContentSinglePacked(t *testing.T) {
	content := "First paragraph.\n\nSecond paragraph."
	chunks := chunkContent("Guide", "example.com", content)

	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk for short content, got %d", len(chunks))
	}
	if chunks[0][:2] != "# " {
		t.Errorf("expected chunk to start with the title header, got %q", chunks[0][:20])
	}
}

func TestChunkContentSplitsOnWordBudget(t *testing.T) {
	// Two paragraphs, each comfortably under targetWords alone but
	// together over it, must split into two chunks.
	word := "lorem "
	var big1, big2 string
	for i := 0; i < 400; i++ {
		big1 += word
	}
	for i := 0; i < 400; i++ {
		big2 += word
	}
	content := big1 + "\n\n" + big2

	chunks := chunkContent("Guide", "example.com", content)
	if len(chunks) != 2 {
		t.Fatalf("expected two chunks once the word budget is exceeded, got %d", len(chunks))
	}
}

func TestChunkContentEmpty(t *testing.T) {
	if chunks := chunkContent("Guide", "example.com", "   "); chunks != nil {
		t.Errorf("expected no chunks for empty content, got %v", chunks)
	}
}
