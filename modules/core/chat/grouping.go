package chat

// Task names used when the backend did not name the originating task.
// Task names are free text from the backend and may collide or be missing.
const (
	DefaultPlanTask = "Plan"
	DefaultTask     = "Task"
)

// AgentLookup resolves an agent name to its display identity
type AgentLookup interface {
	DisplayName(name string) string
}

// NodeKind identifies the type of render node
type NodeKind string

const (
	NodeTurn  NodeKind = "turn"  // Standalone turn
	NodeGroup NodeKind = "group" // Collapsible task group
)

// TaskSection is the ordered list of turns produced for one task
type TaskSection struct {
	Task  string `json:"task"`
	Turns []Turn `json:"turns"`
}

// RenderNode is one entry of the render list
type RenderNode struct {
	Kind     NodeKind      `json:"kind"`
	Turn     *Turn         `json:"turn,omitempty"`
	Tasks    []TaskSection `json:"tasks,omitempty"`
	Agent    string        `json:"agent,omitempty"`
	Expanded bool          `json:"expanded"`
}

// Key returns the task key of a group node
func (n RenderNode) Key() string {
	if len(n.Tasks) == 0 {
		return ""
	}
	return n.Tasks[0].Task
}

// Members returns every turn of the node in order
func (n RenderNode) Members() []Turn {
	if n.Kind == NodeTurn {
		if n.Turn == nil {
			return nil
		}
		return []Turn{*n.Turn}
	}
	var out []Turn
	for _, section := range n.Tasks {
		out = append(out, section.Turns...)
	}
	return out
}

// Render turns the flat turn list into the render list.
// It is a pure function of its inputs.
func Render(turns []Turn, agents AgentLookup) []RenderNode {
	nodes := make([]RenderNode, 0, len(turns))
	open := -1
	prevHuman := false
	last := lastVisible(turns)

	for i := range turns {
		turn := turns[i]
		if turn.IsBlank() {
			continue
		}
		afterHuman := prevHuman
		prevHuman = turn.IsHuman()

		switch {
		case turn.Subtype == SubtypePlan && afterHuman:
			nodes = append(nodes, newGroupNode(turn, taskKey(turn, DefaultPlanTask), agents))
			open = len(nodes) - 1

		case isIntermediate(turn.Subtype):
			fallback := DefaultTask
			if turn.Subtype == SubtypePlan {
				fallback = DefaultPlanTask
			}
			key := taskKey(turn, fallback)
			if open >= 0 && nodes[open].Key() == key {
				section := &nodes[open].Tasks[len(nodes[open].Tasks)-1]
				section.Turns = append(section.Turns, turn)
				continue
			}
			nodes = append(nodes, newGroupNode(turn, key, agents))
			open = len(nodes) - 1

		case turn.Subtype == SubtypeFinal:
			// Earlier finals are superseded intermediate results
			if i != last {
				continue
			}
			nodes = append(nodes, newTurnNode(turn, agents))
			open = -1

		default:
			nodes = append(nodes, newTurnNode(turn, agents))
			open = -1
		}
	}

	if len(nodes) > 0 {
		nodes[len(nodes)-1].Expanded = true
	}
	return nodes
}

// lastVisible returns the index of the last non-blank turn, -1 if none
func lastVisible(turns []Turn) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if !turns[i].IsBlank() {
			return i
		}
	}
	return -1
}

func isIntermediate(subtype TurnSubtype) bool {
	switch subtype {
	case SubtypePlan, SubtypeThought, SubtypeExecution, SubtypeToolResult:
		return true
	}
	return false
}

func taskKey(turn Turn, fallback string) string {
	if name := turn.TaskName(); name != "" {
		return name
	}
	return fallback
}

func newTurnNode(turn Turn, agents AgentLookup) RenderNode {
	t := turn
	return RenderNode{
		Kind:  NodeTurn,
		Turn:  &t,
		Agent: displayAgent(turn, agents),
	}
}

func newGroupNode(turn Turn, key string, agents AgentLookup) RenderNode {
	return RenderNode{
		Kind:  NodeGroup,
		Tasks: []TaskSection{{Task: key, Turns: []Turn{turn}}},
		Agent: displayAgent(turn, agents),
	}
}

func displayAgent(turn Turn, agents AgentLookup) string {
	name := turn.AgentName()
	if name == "" || agents == nil {
		return name
	}
	return agents.DisplayName(name)
}
