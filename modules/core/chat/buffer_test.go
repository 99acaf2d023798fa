package chat

import (
	"fmt"
	"testing"
)

func TestBufferAppendPreservesOrder(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 50; i++ {
		b.Append(Turn{ID: fmt.Sprintf("t%d", i), Rank: i})
	}

	turns := b.Turns()
	if len(turns) != 50 {
		t.Fatalf("Len = %d, want 50", len(turns))
	}
	for i, turn := range turns {
		if turn.ID != fmt.Sprintf("t%d", i) {
			t.Fatalf("turns[%d] = %s, want t%d", i, turn.ID, i)
		}
	}
}

func TestBufferReplaceAllDiscardsPriorState(t *testing.T) {
	b := NewBuffer()
	b.Append(Turn{ID: "old"})

	fresh := []Turn{{ID: "a"}, {ID: "b"}}
	b.ReplaceAll(fresh)
	fresh[0].ID = "mutated"

	turns := b.Turns()
	if len(turns) != 2 || turns[0].ID != "a" || turns[1].ID != "b" {
		t.Errorf("Turns() = %+v, want [a b]", turns)
	}

	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len after Reset = %d, want 0", b.Len())
	}
}

func TestRegistryUpsertAndRemove(t *testing.T) {
	r := NewRegistry()
	r.Load([]Session{{ID: "a", Title: "first"}, {ID: "b"}})

	if replaced := r.Upsert(Session{ID: "a", Title: "renamed"}); !replaced {
		t.Errorf("Upsert(a) replaced = false, want true")
	}
	if r.Len() != 2 {
		t.Errorf("Len after replace = %d, want 2", r.Len())
	}
	if s, _ := r.Get("a"); s.Title != "renamed" {
		t.Errorf("Get(a).Title = %q, want renamed", s.Title)
	}
	if r.List()[0].ID != "a" {
		t.Errorf("replaced entry moved, List()[0] = %s", r.List()[0].ID)
	}

	if replaced := r.Upsert(Session{ID: "c"}); replaced {
		t.Errorf("Upsert(c) replaced = true, want false")
	}
	if r.Len() != 3 {
		t.Errorf("Len after insert = %d, want 3", r.Len())
	}

	if !r.Remove("b") || r.Remove("b") {
		t.Errorf("Remove(b) should succeed once")
	}
	if r.Len() != 2 {
		t.Errorf("Len after remove = %d, want 2", r.Len())
	}
}

func TestMetadataAccessors(t *testing.T) {
	m := Metadata{
		MetaTask:       " search ",
		MetaTokenUsage: map[string]any{"input_tokens": 12.0, "output_tokens": 34.0},
		MetaSources:    []any{map[string]any{"document_uid": "d1", "file_name": "a.pdf", "score": 0.5}},
	}

	if got := m.String(MetaTask); got != "search" {
		t.Errorf("String(task) = %q, want search", got)
	}
	usage := m.TokenUsage()
	if usage == nil || usage.InputTokens != 12 || usage.OutputTokens != 34 {
		t.Errorf("TokenUsage() = %+v", usage)
	}
	sources := m.Sources()
	if len(sources) != 1 || sources[0].FileName != "a.pdf" {
		t.Errorf("Sources() = %+v", sources)
	}
	if (Metadata(nil)).TokenUsage() != nil {
		t.Errorf("TokenUsage() on nil bag should be nil")
	}
}
