package commands

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestRegistryLookupByAlias(t *testing.T) {
	InitRegistry()

	for _, name := range []string{"shell", "sh", "chat"} {
		cmd := GetCommand(name)
		if cmd == nil || cmd.Name != "shell" {
			t.Errorf("GetCommand(%q) = %+v, want shell", name, cmd)
		}
	}
	if GetCommand("build") != nil {
		t.Error("GetCommand(build) should be nil")
	}
}

func TestPrintCommandsGroupsByCategory(t *testing.T) {
	InitRegistry()
	var buf bytes.Buffer
	PrintCommands(&buf)
	out := buf.String()

	order := []string{"Chat, ", "Sessions, ", "Agents, ", "Configuration, ", "Interface, "}
	last := -1
	for _, heading := range order {
		i := strings.Index(out, heading)
		if i < 0 || i < last {
			t.Fatalf("category %q missing or out of order:\n%s", heading, out)
		}
		last = i
	}
	if !strings.Contains(out, "sessions             List your conversations (ls)") {
		t.Errorf("sessions line missing:\n%s", out)
	}
	if strings.Index(out, "    ask") > strings.Index(out, "    feedback") {
		t.Errorf("commands not sorted by order:\n%s", out)
	}
}

func TestPrintCommandHelpSuggestsOnUnknown(t *testing.T) {
	InitRegistry()
	var buf bytes.Buffer
	PrintCommandHelp(&buf, "sess")
	if !strings.Contains(buf.String(), "Did you mean: sessions?") {
		t.Errorf("output:\n%s", buf.String())
	}

	buf.Reset()
	PrintCommandHelp(&buf, "cfg")
	out := buf.String()
	if !strings.Contains(out, "fred-chat config: Configuration management") || !strings.Contains(out, "init") {
		t.Errorf("config help:\n%s", out)
	}
}

func TestSuggestCommand(t *testing.T) {
	InitRegistry()
	cases := map[string][]string{
		"hist":     {"history"},
		"historyx": {"history"},
		"de":       {"delete"},
		"zzz":      nil,
	}
	for in, want := range cases {
		if got := SuggestCommand(in); !reflect.DeepEqual(got, want) {
			t.Errorf("SuggestCommand(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRunSubCommand(t *testing.T) {
	var got []string
	cmd := &Command{
		Name: "config",
		SubCommands: []SubCommand{
			{Name: "show", Handler: func(args []string) error { got = args; return nil }},
			{Name: "path"},
		},
	}

	if err := runSubCommand(cmd, []string{"show", "--raw"}); err != nil || !reflect.DeepEqual(got, []string{"--raw"}) {
		t.Errorf("show: err %v, args %v", err, got)
	}
	if err := runSubCommand(cmd, nil); err == nil || !strings.Contains(err.Error(), "<show|path>") {
		t.Errorf("missing subcommand error = %v", err)
	}
	for _, name := range []string{"path", "drop"} {
		err := runSubCommand(cmd, []string{name})
		if err == nil {
			t.Errorf("runSubCommand(%s) should fail", name)
		}
	}
}
