package vectorstore

import (
	"context"
	"math"
	"testing"

	"github.com/agentbridge/agentbridge/internal/store"
	"github.com/agentbridge/agentbridge/pkg/models"
)

func newScan(t *testing.T) (*ScanIndex, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	return NewScanIndex(s), s
}

func item(id string, vec []float64, text string) models.VectorItem {
	return models.VectorItem{ID: id, Vector: vec, Metadata: map[string]string{"text": text}}
}

func TestScanQuery_RanksByCosine(t *testing.T) {
	idx, _ := newScan(t)
	ctx := context.Background()
	ns := "agent-a1"

	err := idx.Upsert(ctx, ns, []models.VectorItem{
		item("opposite", []float64{-1, 0}, ""),
		item("orthogonal", []float64{0, 1}, ""),
		item("aligned", []float64{2, 0}, ""), // same direction, different magnitude
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := idx.Query(ctx, ns, []float64{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("Query() len = %d, want 3", len(matches))
	}

	wantOrder := []string{"aligned", "orthogonal", "opposite"}
	for i, want := range wantOrder {
		if matches[i].ID != want {
			t.Errorf("matches[%d].ID = %q, want %q", i, matches[i].ID, want)
		}
	}
	if math.Abs(matches[0].Score-1) > 1e-9 {
		t.Errorf("aligned score = %v, want 1", matches[0].Score)
	}
	if math.Abs(matches[1].Score) > 1e-9 {
		t.Errorf("orthogonal score = %v, want 0", matches[1].Score)
	}
}

func TestScanQuery_TopKTruncates(t *testing.T) {
	idx, _ := newScan(t)
	ctx := context.Background()
	ns := "agent-a1"

	items := make([]models.VectorItem, 10)
	for i := range items {
		items[i] = item(string(rune('a'+i)), []float64{1, float64(i)}, "")
	}
	if err := idx.Upsert(ctx, ns, items); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := idx.Query(ctx, ns, []float64{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("Query() len = %d, want 3", len(matches))
	}
}

func TestScanQuery_TiesKeepInsertionOrder(t *testing.T) {
	idx, _ := newScan(t)
	ctx := context.Background()
	ns := "agent-a1"

	// Identical vectors tie exactly; insertion order must decide.
	err := idx.Upsert(ctx, ns, []models.VectorItem{
		item("first", []float64{1, 1}, ""),
		item("second", []float64{1, 1}, ""),
		item("third", []float64{1, 1}, ""),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := idx.Query(ctx, ns, []float64{1, 1}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	wantOrder := []string{"first", "second", "third"}
	for i, want := range wantOrder {
		if matches[i].ID != want {
			t.Errorf("matches[%d].ID = %q, want %q", i, matches[i].ID, want)
		}
	}
}

func TestScanQuery_SkipsDimensionMismatch(t *testing.T) {
	idx, _ := newScan(t)
	ctx := context.Background()
	ns := "agent-a1"

	err := idx.Upsert(ctx, ns, []models.VectorItem{
		item("good", []float64{1, 0}, ""),
		item("bad", []float64{1, 0, 0}, ""),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := idx.Query(ctx, ns, []float64{1, 0}, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "good" {
		t.Errorf("matches = %+v, want only the matching dimension", matches)
	}
}

func TestScanQuery_NamespaceIsolation(t *testing.T) {
	idx, _ := newScan(t)
	ctx := context.Background()

	idx.Upsert(ctx, "agent-a1", []models.VectorItem{item("x", []float64{1}, "")})
	idx.Upsert(ctx, "agent-a2", []models.VectorItem{item("y", []float64{1}, "")})

	matches, err := idx.Query(ctx, "agent-a1", []float64{1}, 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "x" {
		t.Errorf("matches = %+v, want only agent-a1 items", matches)
	}
}

func TestScanUpsert_CarriesTextMetadata(t *testing.T) {
	idx, s := newScan(t)
	ctx := context.Background()
	ns := "agent-a1"

	if err := idx.Upsert(ctx, ns, []models.VectorItem{item("v1", []float64{1}, "hello world")}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	matches, err := idx.Query(ctx, ns, []float64{1}, 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if matches[0].Metadata["text"] != "hello world" {
		t.Errorf("match metadata text = %q", matches[0].Metadata["text"])
	}

	rows, err := s.ListChunks(ctx, ns)
	if err != nil {
		t.Fatalf("ListChunks() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Text != "hello world" {
		t.Errorf("chunk rows = %+v, want text persisted", rows)
	}
}

func TestScanUpsert_PersistsChunkIndex(t *testing.T) {
	idx, s := newScan(t)
	ctx := context.Background()
	ns := "agent-a1"

	items := []models.VectorItem{
		{ID: "kb1-0", Vector: []float64{1, 0}, Metadata: map[string]string{"knowledge_base_id": "kb1", "chunk_index": "0"}},
		{ID: "kb1-1", Vector: []float64{0, 1}, Metadata: map[string]string{"knowledge_base_id": "kb1", "chunk_index": "1"}},
		{ID: "kb1-2", Vector: []float64{1, 1}, Metadata: map[string]string{"knowledge_base_id": "kb1", "chunk_index": "2"}},
	}
	if err := idx.Upsert(ctx, ns, items); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rows, err := s.ListChunks(ctx, ns)
	if err != nil {
		t.Fatalf("ListChunks() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("ListChunks() len = %d, want 3", len(rows))
	}
	for i, row := range rows {
		if row.ChunkIndex != i {
			t.Errorf("rows[%d].ChunkIndex = %d, want %d", i, row.ChunkIndex, i)
		}
		if row.KnowledgeBaseID != "kb1" {
			t.Errorf("rows[%d].KnowledgeBaseID = %q, want kb1", i, row.KnowledgeBaseID)
		}
	}
}

func TestScanDelete(t *testing.T) {
	idx, _ := newScan(t)
	ctx := context.Background()
	ns := "agent-a1"

	idx.Upsert(ctx, ns, []models.VectorItem{
		item("keep", []float64{1}, ""),
		item("drop", []float64{1}, ""),
	})

	if err := idx.DeleteByIDs(ctx, ns, []string{"drop"}); err != nil {
		t.Fatalf("DeleteByIDs() error = %v", err)
	}
	matches, _ := idx.Query(ctx, ns, []float64{1}, 10)
	if len(matches) != 1 || matches[0].ID != "keep" {
		t.Errorf("matches after delete = %+v", matches)
	}

	if err := idx.DeleteNamespace(ctx, ns); err != nil {
		t.Fatalf("DeleteNamespace() error = %v", err)
	}
	matches, _ = idx.Query(ctx, ns, []float64{1}, 10)
	if len(matches) != 0 {
		t.Errorf("matches after namespace delete = %+v, want none", matches)
	}
}
