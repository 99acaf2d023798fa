package commands

import (
	"fmt"
	"io"
	"strings"

	"fred-chat/modules/core/agents"
	"fred-chat/modules/core/chat"
	uicore "fred-chat/modules/ui/core"
)

const stepPreviewWidth = 72

// conversationVM groups a stored history the same way the live views do
func conversationVM(turns []chat.Turn, catalog *agents.Catalog) *uicore.ChatVM {
	snap := chat.Snapshot{
		Turns: turns,
		Nodes: chat.Render(turns, catalog),
	}
	return uicore.NewChatVM(snap, catalog, nil)
}

// printNode writes a render node as plain text.
// Collapsed groups print one line per step, expanded ones the full content.
func printNode(w io.Writer, node uicore.NodeVM, expandAll bool) {
	if node.Kind == chat.NodeTurn {
		if node.Turn != nil {
			printTurn(w, *node.Turn)
		}
		return
	}

	fmt.Fprintf(w, "▸ %s\n", node.Summary)
	for _, section := range node.Sections {
		for _, turn := range section.Turns {
			if expandAll || node.Expanded {
				fmt.Fprintf(w, "  [%s] %s\n", orDash(turn.Subtype), section.Task)
				fmt.Fprintln(w, indentText(turn.Content, "    "))
				continue
			}
			printStep(w, section.Task, turn)
		}
	}
	fmt.Fprintln(w)
}

// printStep writes an intermediate turn on one line
func printStep(w io.Writer, task string, turn uicore.TurnVM) {
	fmt.Fprintf(w, "  · [%s] %s: %s\n", orDash(turn.Subtype), task, preview(turn.Content, stepPreviewWidth))
}

// printTurn writes a standalone turn with its header and citations
func printTurn(w io.Writer, turn uicore.TurnVM) {
	header := turn.Author
	if turn.Time != "" {
		header += "  " + turn.Time
	}
	if turn.Model != "" {
		header += "  " + turn.Model
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, indentText(turn.Content, "  "))
	for _, src := range turn.Sources {
		fmt.Fprintf(w, "  ↳ %s", src.Title)
		if src.Score > 0 {
			fmt.Fprintf(w, " (%.2f)", src.Score)
		}
		fmt.Fprintln(w)
	}
	if turn.Kind != string(chat.KindHuman) {
		fmt.Fprintf(w, "  id %s", turn.ID)
		if turn.Tokens != "" {
			fmt.Fprintf(w, " · %s", turn.Tokens)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

func printSessions(w io.Writer, vm *uicore.SessionsVM) {
	if vm == nil || len(vm.Sessions) == 0 {
		fmt.Fprintln(w, "No conversations yet.")
		return
	}
	for i, s := range vm.Sessions {
		marker := " "
		if s.Active {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %2d  %-40s  %-8s  %s\n", marker, i+1, preview(s.Title, 40), s.Updated, s.ID)
	}
}

func printAgents(w io.Writer, vm *uicore.AgentsVM) {
	if vm == nil || len(vm.Agents) == 0 {
		fmt.Fprintln(w, "No agents available.")
		return
	}
	for _, a := range vm.Agents {
		marker := " "
		if a.Selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-20s %s", marker, a.Name, a.Display)
		if a.Role != "" {
			fmt.Fprintf(w, " (%s)", a.Role)
		}
		fmt.Fprintln(w)
		if a.Description != "" {
			fmt.Fprintf(w, "    %s\n", a.Description)
		}
	}
}

func preview(text string, width int) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i] + " …"
	}
	runes := []rune(line)
	if len(runes) > width {
		return string(runes[:width-1]) + "…"
	}
	return line
}

func indentText(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
