package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// CommandHandler is the function signature for command handlers
type CommandHandler func(args []string) error

// SubCommand represents a sub-command
type SubCommand struct {
	Name        string
	Description string
	Handler     CommandHandler
}

// Command represents a CLI command
type Command struct {
	Name        string
	Aliases     []string
	Category    string
	Description string
	Usage       string
	Examples    []string
	Handler     CommandHandler
	SubCommands []SubCommand
	Order       int
}

// category groups commands in the help output, in display order
type category struct {
	Name  string
	Blurb string
}

var categories = []category{
	{"Chat", "one-shot questions to a Fred agent"},
	{"Sessions", "conversations stored on the backend"},
	{"Agents", "agentic flows and your identity"},
	{"Configuration", "backend URLs, token and saved tab preferences"},
	{"Interface", "interactive views, both keep per-tab state"},
}

// Registry holds all registered commands
type Registry struct {
	commands map[string]*Command
	aliases  map[string]string
}

func newRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
	}
}

var globalRegistry *Registry

// InitRegistry registers every fred-chat command
func InitRegistry() {
	globalRegistry = newRegistry()

	registerChatCommands()
	registerSessionCommands()
	registerAgentCommands()
	registerConfigCommands()
	registerUICommands()
}

// RegisterCommand registers a command in the global registry
func RegisterCommand(cmd *Command) {
	if globalRegistry == nil {
		globalRegistry = newRegistry()
	}
	globalRegistry.add(cmd)
}

// GetCommand returns a command by name or alias
func GetCommand(name string) *Command {
	if globalRegistry == nil {
		return nil
	}
	return globalRegistry.lookup(name)
}

// PrintCommands writes the command list grouped by category
func PrintCommands(w io.Writer) {
	if globalRegistry != nil {
		globalRegistry.printCommands(w)
	}
}

// PrintCommandHelp writes the help of one command
func PrintCommandHelp(w io.Writer, name string) {
	if globalRegistry == nil {
		return
	}
	globalRegistry.printHelp(w, name)
}

// SuggestCommand returns the commands an unknown name was likely meant as
func SuggestCommand(name string) []string {
	if globalRegistry == nil {
		return nil
	}
	return globalRegistry.suggest(name)
}

func (r *Registry) add(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd.Name
	}
}

func (r *Registry) lookup(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if target, ok := r.aliases[name]; ok {
		return r.commands[target]
	}
	return nil
}

// sorted returns the commands by order then name
func (r *Registry) sorted() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool {
		if cmds[i].Order != cmds[j].Order {
			return cmds[i].Order < cmds[j].Order
		}
		return cmds[i].Name < cmds[j].Name
	})
	return cmds
}

func (r *Registry) printCommands(w io.Writer) {
	byCategory := make(map[string][]*Command)
	for _, cmd := range r.sorted() {
		byCategory[cmd.Category] = append(byCategory[cmd.Category], cmd)
	}

	for _, cat := range categories {
		cmds := byCategory[cat.Name]
		if len(cmds) == 0 {
			continue
		}

		fmt.Fprintf(w, "  %s, %s:\n", cat.Name, cat.Blurb)
		for _, cmd := range cmds {
			aliases := ""
			if len(cmd.Aliases) > 0 {
				aliases = fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases, ", "))
			}
			fmt.Fprintf(w, "    %-20s %s%s\n", cmd.Name, cmd.Description, aliases)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "  Inside the shell and the TUI, type /help for the chat commands.")
	fmt.Fprintln(w)
}

func (r *Registry) printHelp(w io.Writer, name string) {
	cmd := r.lookup(name)
	if cmd == nil {
		fmt.Fprintf(w, "Unknown command: %s\n", name)
		if hints := r.suggest(name); len(hints) > 0 {
			fmt.Fprintf(w, "Did you mean: %s?\n", strings.Join(hints, ", "))
		}
		return
	}

	fmt.Fprintf(w, "fred-chat %s: %s\n", cmd.Name, cmd.Description)
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(w, "Aliases: %s\n", strings.Join(cmd.Aliases, ", "))
	}
	fmt.Fprintln(w)

	if cmd.Usage != "" {
		fmt.Fprintf(w, "Usage:\n  %s\n\n", cmd.Usage)
	}

	if len(cmd.SubCommands) > 0 {
		fmt.Fprintln(w, "Sub-commands:")
		for _, sub := range cmd.SubCommands {
			fmt.Fprintf(w, "  %-15s %s\n", sub.Name, sub.Description)
		}
		fmt.Fprintln(w)
	}

	if len(cmd.Examples) > 0 {
		fmt.Fprintln(w, "Examples:")
		for _, example := range cmd.Examples {
			fmt.Fprintf(w, "  %s\n", example)
		}
	}
}

// suggest matches names and aliases sharing a prefix with name, either way
func (r *Registry) suggest(name string) []string {
	name = strings.ToLower(name)
	if name == "" {
		return nil
	}
	seen := make(map[string]bool)
	var hints []string
	match := func(candidate, target string) {
		if seen[target] {
			return
		}
		if strings.HasPrefix(candidate, name) || (len(name) > 2 && strings.HasPrefix(name, candidate)) {
			seen[target] = true
			hints = append(hints, target)
		}
	}
	for cmdName := range r.commands {
		match(cmdName, cmdName)
	}
	for alias, target := range r.aliases {
		match(alias, target)
	}
	sort.Strings(hints)
	return hints
}

// runSubCommand dispatches args[0] to the matching sub-command handler
func runSubCommand(cmd *Command, args []string) error {
	names := make([]string, 0, len(cmd.SubCommands))
	for _, sub := range cmd.SubCommands {
		names = append(names, sub.Name)
	}
	if len(args) == 0 {
		return fmt.Errorf("subcommand is required\nUsage: fred-chat %s <%s>", cmd.Name, strings.Join(names, "|"))
	}

	sub := findSubCommand(cmd, args[0])
	if sub == nil || sub.Handler == nil {
		return fmt.Errorf("unknown %s subcommand: %s", cmd.Name, args[0])
	}
	return sub.Handler(args[1:])
}

func findSubCommand(cmd *Command, name string) *SubCommand {
	for i := range cmd.SubCommands {
		if cmd.SubCommands[i].Name == name {
			return &cmd.SubCommands[i]
		}
	}
	return nil
}
