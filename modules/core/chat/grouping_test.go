package chat

import (
	"encoding/json"
	"reflect"
	"testing"
)

type staticAgents map[string]string

func (a staticAgents) DisplayName(name string) string {
	if nick, ok := a[name]; ok {
		return nick
	}
	return name
}

func mkTurn(id string, kind TurnKind, subtype TurnSubtype, task string) Turn {
	t := Turn{ID: id, Kind: kind, Subtype: subtype, Content: "content of " + id}
	if task != "" {
		t.Metadata = Metadata{MetaTask: task}
	}
	return t
}

func nodeIDs(n RenderNode) []string {
	var ids []string
	for _, t := range n.Members() {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestRenderPlanThoughtThenHumanFinal(t *testing.T) {
	turns := []Turn{
		mkTurn("h1", KindHuman, SubtypeNone, ""),
		mkTurn("p1", KindAssistant, SubtypePlan, "A"),
		mkTurn("t1", KindAssistant, SubtypeThought, "A"),
		mkTurn("h2", KindHuman, SubtypeNone, ""),
		mkTurn("f1", KindAssistant, SubtypeFinal, ""),
	}

	nodes := Render(turns, nil)
	if len(nodes) != 4 {
		t.Fatalf("Render() produced %d nodes, want 4: %+v", len(nodes), nodes)
	}

	wantKinds := []NodeKind{NodeTurn, NodeGroup, NodeTurn, NodeTurn}
	wantIDs := [][]string{{"h1"}, {"p1", "t1"}, {"h2"}, {"f1"}}
	for i, n := range nodes {
		if n.Kind != wantKinds[i] {
			t.Errorf("node %d kind = %s, want %s", i, n.Kind, wantKinds[i])
		}
		if got := nodeIDs(n); !reflect.DeepEqual(got, wantIDs[i]) {
			t.Errorf("node %d members = %v, want %v", i, got, wantIDs[i])
		}
	}

	if nodes[1].Key() != "A" {
		t.Errorf("group key = %q, want A", nodes[1].Key())
	}
	if nodes[1].Expanded {
		t.Errorf("group should be collapsed")
	}
	if !nodes[3].Expanded {
		t.Errorf("last node should be expanded")
	}
}

func TestRenderDropsEarlierFinals(t *testing.T) {
	turns := []Turn{
		mkTurn("h1", KindHuman, SubtypeNone, ""),
		mkTurn("f1", KindAssistant, SubtypeFinal, ""),
		mkTurn("h2", KindHuman, SubtypeNone, ""),
		mkTurn("x1", KindAssistant, SubtypeThought, ""),
		mkTurn("f2", KindAssistant, SubtypeFinal, ""),
	}

	nodes := Render(turns, nil)
	for _, n := range nodes {
		for _, id := range nodeIDs(n) {
			if id == "f1" {
				t.Fatalf("superseded final f1 should not be rendered")
			}
		}
	}
	last := nodes[len(nodes)-1]
	if last.Kind != NodeTurn || last.Turn.ID != "f2" {
		t.Errorf("last node = %+v, want standalone f2", last)
	}
}

func TestRenderFinalFollowedByBlankTurns(t *testing.T) {
	blank := mkTurn("b1", KindAssistant, SubtypeNone, "")
	blank.Content = "  "
	turns := []Turn{
		mkTurn("h1", KindHuman, SubtypeNone, ""),
		mkTurn("f1", KindAssistant, SubtypeFinal, ""),
		blank,
	}

	nodes := Render(turns, nil)
	if len(nodes) != 2 {
		t.Fatalf("Render() len = %d, want 2", len(nodes))
	}
	if last := nodes[1]; last.Kind != NodeTurn || last.Turn.ID != "f1" || !last.Expanded {
		t.Errorf("last node = %+v, want expanded standalone f1", last)
	}
}

func TestRenderGroupsByTaskKey(t *testing.T) {
	turns := []Turn{
		mkTurn("h1", KindHuman, SubtypeNone, ""),
		mkTurn("p1", KindAssistant, SubtypePlan, ""),
		mkTurn("e1", KindAssistant, SubtypeExecution, "search"),
		mkTurn("r1", KindToolResult, SubtypeToolResult, "search"),
		mkTurn("t1", KindAssistant, SubtypeThought, ""),
		mkTurn("t2", KindAssistant, SubtypeThought, ""),
	}

	nodes := Render(turns, nil)
	if len(nodes) != 4 {
		t.Fatalf("Render() produced %d nodes, want 4", len(nodes))
	}

	tests := []struct {
		key string
		ids []string
	}{
		{"", []string{"h1"}},
		{DefaultPlanTask, []string{"p1"}},
		{"search", []string{"e1", "r1"}},
		{DefaultTask, []string{"t1", "t2"}},
	}
	for i, tt := range tests {
		if got := nodes[i].Key(); got != tt.key {
			t.Errorf("node %d key = %q, want %q", i, got, tt.key)
		}
		if got := nodeIDs(nodes[i]); !reflect.DeepEqual(got, tt.ids) {
			t.Errorf("node %d members = %v, want %v", i, got, tt.ids)
		}
	}
}

func TestRenderSkipsBlankTurns(t *testing.T) {
	blank := mkTurn("b1", KindAssistant, SubtypeThought, "A")
	blank.Content = "   "

	turns := []Turn{
		mkTurn("h1", KindHuman, SubtypeNone, ""),
		blank,
		mkTurn("p1", KindAssistant, SubtypePlan, "A"),
	}

	nodes := Render(turns, nil)
	if len(nodes) != 2 {
		t.Fatalf("Render() produced %d nodes, want 2", len(nodes))
	}
	// The blank turn does not break the human/plan adjacency
	if nodes[1].Kind != NodeGroup || nodes[1].Key() != "A" {
		t.Errorf("node 1 = %+v, want group A", nodes[1])
	}
}

func TestRenderUnknownSubtypeIsStandalone(t *testing.T) {
	turns := []Turn{
		mkTurn("t1", KindAssistant, SubtypeThought, "A"),
		mkTurn("u1", KindSystem, TurnSubtype("banner"), "A"),
		mkTurn("t2", KindAssistant, SubtypeThought, "A"),
	}

	nodes := Render(turns, nil)
	if len(nodes) != 3 {
		t.Fatalf("Render() produced %d nodes, want 3", len(nodes))
	}
	if nodes[1].Kind != NodeTurn {
		t.Errorf("unknown subtype should be standalone, got %s", nodes[1].Kind)
	}
}

func TestRenderResolvesAgentDisplayName(t *testing.T) {
	turn := mkTurn("a1", KindAssistant, SubtypeNone, "")
	turn.Metadata = Metadata{MetaAgentName: "GeneralistExpert"}

	nodes := Render([]Turn{turn}, staticAgents{"GeneralistExpert": "Georges"})
	if nodes[0].Agent != "Georges" {
		t.Errorf("Agent = %q, want Georges", nodes[0].Agent)
	}
}

func TestRenderIsPure(t *testing.T) {
	turns := []Turn{
		mkTurn("h1", KindHuman, SubtypeNone, ""),
		mkTurn("p1", KindAssistant, SubtypePlan, "A"),
		mkTurn("t1", KindAssistant, SubtypeThought, "A"),
		mkTurn("f1", KindAssistant, SubtypeFinal, ""),
	}
	agents := staticAgents{}

	first, err := json.Marshal(Render(turns, agents))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, _ := json.Marshal(Render(turns, agents))
		if string(again) != string(first) {
			t.Fatalf("Render() output changed on call %d", i+2)
		}
	}
}

func TestRenderEmpty(t *testing.T) {
	if nodes := Render(nil, nil); len(nodes) != 0 {
		t.Errorf("Render(nil) = %v, want empty", nodes)
	}
}
