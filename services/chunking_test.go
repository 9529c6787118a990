package services

import (
	"strings"
	"testing"
)

func TestChunkTextShortInput(t *testing.T) {
	cs := NewChunkingService(1500, 200, 100)

	chunks := cs.ChunkText("A single short paragraph.")
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0] != "A single short paragraph." {
		t.Errorf("chunk = %q", chunks[0])
	}
}

func TestChunkTextEmptyInput(t *testing.T) {
	cs := NewChunkingService(1500, 200, 100)

	for _, input := range []string{"", "   ", "\n\n\n"} {
		if chunks := cs.ChunkText(input); len(chunks) != 0 {
			t.Errorf("ChunkText(%q) = %v, want none", input, chunks)
		}
	}
}

func TestChunkTextRespectsMaxSize(t *testing.T) {
	cs := NewChunkingService(200, 50, 50)

	para := strings.Repeat("word ", 30) // ~150 chars
	text := strings.Join([]string{para, para, para, para}, "\n\n")

	chunks := cs.ChunkText(text)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want the text split", len(chunks))
	}
}

func TestChunkTextPreservesAllParagraphs(t *testing.T) {
	cs := NewChunkingService(120, 0, 20)

	paragraphs := []string{
		"Alpha paragraph with enough text to matter here.",
		"Beta paragraph also carrying enough characters.",
		"Gamma paragraph rounding out the input document.",
	}
	chunks := cs.ChunkText(strings.Join(paragraphs, "\n\n"))

	joined := strings.Join(chunks, "\n\n")
	for _, p := range paragraphs {
		if !strings.Contains(joined, p) {
			t.Errorf("paragraph %q lost during chunking", p)
		}
	}
}

func TestChunkTextOverlapCarriesContext(t *testing.T) {
	cs := NewChunkingService(100, 40, 20)

	first := "This sentence ends the first part. Trailing context here."
	second := "A following paragraph that forces a brand new chunk to start."
	chunks := cs.ChunkText(first + "\n\n" + second)
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want at least 2", len(chunks))
	}

	// The second chunk starts with text carried over from the first.
	if !strings.Contains(chunks[0], "Trailing context here.") {
		t.Fatalf("first chunk = %q", chunks[0])
	}
	tail := chunks[1]
	if !strings.Contains(tail, "Trailing context here.") && !strings.HasPrefix(tail, second) {
		t.Errorf("second chunk carries no overlap and no fresh start: %q", tail)
	}
}

func TestGetOverlapTextPrefersSentenceBoundary(t *testing.T) {
	cs := NewChunkingService(1500, 200, 100)

	text := "An early sentence. The final sentence of the chunk."
	overlap := cs.getOverlapText(text, 40)
	if overlap != "The final sentence of the chunk." {
		t.Errorf("overlap = %q", overlap)
	}
}

func TestGetOverlapTextShortText(t *testing.T) {
	cs := NewChunkingService(1500, 200, 100)

	if got := cs.getOverlapText("tiny", 200); got != "tiny" {
		t.Errorf("overlap = %q, want the whole text", got)
	}
}
