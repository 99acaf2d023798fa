package agents

import "testing"

func TestCatalogLoadKeepsOrderAndDedupes(t *testing.T) {
	c := NewCatalog()
	c.Load([]AgenticFlow{
		{Name: "Fred", Nickname: "Fred"},
		{Name: "Rico", Role: "rag"},
		{Name: ""},
		{Name: "Fred", Nickname: "Freddy"},
	})

	flows := c.List()
	if len(flows) != 2 {
		t.Fatalf("List() len = %d, want 2", len(flows))
	}
	if flows[0].Name != "Fred" || flows[0].Nickname != "Freddy" {
		t.Errorf("List()[0] = %+v, want Fred/Freddy", flows[0])
	}
	if flows[1].Name != "Rico" {
		t.Errorf("List()[1].Name = %q, want Rico", flows[1].Name)
	}
}

func TestCatalogDisplayName(t *testing.T) {
	c := NewCatalog()
	c.Load([]AgenticFlow{
		{Name: "GeneralistExpert", Nickname: "Georges"},
		{Name: "DocumentsExpert"},
	})

	tests := []struct {
		name string
		want string
	}{
		{"GeneralistExpert", "Georges"},
		{"DocumentsExpert", "DocumentsExpert"},
		{"Unknown", "Unknown"},
	}
	for _, tt := range tests {
		if got := c.DisplayName(tt.name); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestCatalogDefaultAndResolve(t *testing.T) {
	c := NewCatalog()
	if _, ok := c.Default(); ok {
		t.Fatalf("Default() on empty catalog should be false")
	}

	c.Load([]AgenticFlow{{Name: "A"}, {Name: "B"}})
	if f, ok := c.Default(); !ok || f.Name != "A" {
		t.Errorf("Default() = %+v, %v, want A", f, ok)
	}
	if _, err := c.Resolve("B"); err != nil {
		t.Errorf("Resolve(B) error: %v", err)
	}
	if _, err := c.Resolve("Z"); err == nil {
		t.Errorf("Resolve(Z) expected error")
	}
}

func TestAgenticFlowHasTag(t *testing.T) {
	f := AgenticFlow{Name: "A", Tags: []string{"Documents", "rag"}}
	if !f.HasTag("documents") {
		t.Errorf("HasTag(documents) = false, want true")
	}
	if f.HasTag("k8s") {
		t.Errorf("HasTag(k8s) = true, want false")
	}
}
