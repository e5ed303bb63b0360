package knowledge

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	chunks := ChunkText("short document", DefaultChunkerConfig())
	if len(chunks) != 1 {
		t.Fatalf("len = %d, want 1", len(chunks))
	}
	if chunks[0].Text != "short document" || chunks[0].Index != 0 {
		t.Errorf("chunk = %+v", chunks[0])
	}
}

func TestChunkText_SplitsOnParagraphs(t *testing.T) {
	para := strings.Repeat("word ", 60) // ~300 chars
	text := para + "\n\n" + para + "\n\n" + para

	chunks := ChunkText(text, ChunkerConfig{ChunkSize: 400, ChunkOverlap: 0})
	if len(chunks) < 2 {
		t.Fatalf("len = %d, want multiple chunks", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c.Text); n > 400+len(para) {
			t.Errorf("chunk %d length %d far exceeds target", i, n)
		}
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
	}
}

func TestChunkText_OverlapCarriesTail(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("sentence number goes here. ")
	}

	chunks := ChunkText(sb.String(), ChunkerConfig{ChunkSize: 200, ChunkOverlap: 30})
	if len(chunks) < 2 {
		t.Fatalf("len = %d, want multiple chunks", len(chunks))
	}

	// Each later chunk starts with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		tail := overlapTail(chunks[i-1].Text, 30)
		if !strings.HasPrefix(chunks[i].Text, tail) {
			t.Errorf("chunk %d does not start with predecessor tail", i)
			break
		}
	}
}

func TestChunkText_NoSeparatorsFallsBackToRunes(t *testing.T) {
	text := strings.Repeat("x", 1000)

	chunks := ChunkText(text, ChunkerConfig{ChunkSize: 300, ChunkOverlap: 0})
	if len(chunks) < 3 {
		t.Fatalf("len = %d, want rune-level split", len(chunks))
	}
	var total int
	for _, c := range chunks {
		total += strings.Count(c.Text, "x")
	}
	if total != 1000 {
		t.Errorf("total runes across chunks = %d, want 1000", total)
	}
}

func TestChunkText_DefaultsApplied(t *testing.T) {
	chunks := ChunkText(strings.Repeat("a ", 400), ChunkerConfig{})
	if len(chunks) == 0 {
		t.Fatal("no chunks produced with zero-value config")
	}
}
