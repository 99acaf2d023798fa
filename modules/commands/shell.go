package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"fred-chat/modules"
	"fred-chat/modules/core/chat"
	"fred-chat/modules/platform/eventbus"
	uicore "fred-chat/modules/ui/core"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

const maxHistoryLines = 1000

var _ uicore.View = (*Shell)(nil)

// syncSender sends a message and returns once its reply is complete
type syncSender func(ctx context.Context, in chat.Input) error

// Shell is the line-oriented chat view.
// It renders the same presenter as the TUI, printing turns as they stream in.
type Shell struct {
	mu        sync.Mutex
	rl        *readline.Instance
	out       io.Writer
	isTTY     bool
	running   bool
	presenter uicore.Presenter
	send      syncSender
	events    *eventbus.Bus

	chat     *uicore.ChatVM
	sessions *uicore.SessionsVM
	agents   *uicore.AgentsVM
	printed  map[string]bool
	echoSkip string // line just typed, not echoed back when it streams in

	pending []chat.Attachment
	history string
}

// StartShell starts the interactive chat shell
func StartShell() error {
	app := GetContext()
	presenter, err := app.NewPresenter()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := presenter.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize presenter: %w", err)
	}
	defer presenter.Shutdown()

	shell := newShell(os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	shell.history = app.Config.Settings.GetHistoryFile()
	shell.events = presenter.Service().Bus()
	if !shell.isTTY {
		service := presenter.Service()
		shell.send = func(ctx context.Context, in chat.Input) error {
			_, err := sendAndWait(ctx, service, in)
			return err
		}
	}
	if err := shell.Initialize(presenter); err != nil {
		return err
	}
	return shell.Run(ctx)
}

func newShell(out io.Writer, isTTY bool) *Shell {
	return &Shell{
		out:     out,
		isTTY:   isTTY,
		printed: make(map[string]bool),
	}
}

// Initialize subscribes to the presenter.
// Turns already loaded are not printed again, /history shows them.
func (s *Shell) Initialize(presenter uicore.Presenter) error {
	s.mu.Lock()
	s.presenter = presenter
	if vm, err := presenter.GetViewModel(uicore.VMChat); err == nil {
		if chatVM, ok := vm.(*uicore.ChatVM); ok && chatVM != nil {
			s.chat = chatVM
			s.markPrinted(chatVM)
		}
	}
	if vm, err := presenter.GetViewModel(uicore.VMSessions); err == nil {
		s.sessions, _ = vm.(*uicore.SessionsVM)
	}
	if vm, err := presenter.GetViewModel(uicore.VMAgents); err == nil {
		s.agents, _ = vm.(*uicore.AgentsVM)
	}
	s.mu.Unlock()

	presenter.Subscribe(s.UpdateState)
	presenter.SubscribeNotifications(s.ShowNotification)
	return nil
}

// Run starts the shell main loop
func (s *Shell) Run(ctx context.Context) error {
	s.running = true

	if s.isTTY {
		return s.runInteractive(ctx)
	}
	return s.runNonInteractive(ctx)
}

// Stop ends the main loop
func (s *Shell) Stop() error {
	s.running = false
	if s.rl != nil {
		return s.rl.Close()
	}
	return nil
}

// UpdateState prints the turns that arrived since the last update
func (s *Shell) UpdateState(update uicore.StateUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch vm := update.ViewModel.(type) {
	case *uicore.ChatVM:
		s.chat = vm
		s.printNew(vm)
	case *uicore.SessionsVM:
		s.sessions = vm
	case *uicore.AgentsVM:
		s.agents = vm
	}

	if s.rl != nil {
		s.rl.SetPrompt(s.prompt())
		s.rl.Refresh()
	}
}

// ShowNotification prints a toast on its own line
func (s *Shell) ShowNotification(n *uicore.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.Type == uicore.NotifyInfo {
		return
	}
	if s.isTTY {
		color := "32"
		switch n.Type {
		case uicore.NotifyWarning:
			color = "33"
		case uicore.NotifyError:
			color = "31"
		}
		fmt.Fprintf(s.out, "\033[%sm%s:\033[0m %s\n", color, n.Title, n.Message)
		return
	}
	fmt.Fprintf(s.out, "%s: %s\n", n.Title, n.Message)
}

// runInteractive runs the shell with readline support
func (s *Shell) runInteractive(ctx context.Context) error {
	config := &readline.Config{
		Prompt:          s.prompt(),
		HistoryFile:     s.history,
		HistoryLimit:    maxHistoryLines,
		AutoComplete:    s.buildCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	s.mu.Lock()
	s.rl = rl
	s.out = rl.Stdout()
	s.mu.Unlock()

	s.printWelcome()

	for s.running {
		s.mu.Lock()
		rl.SetPrompt(s.prompt())
		s.mu.Unlock()

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					s.println("Use /quit or Ctrl+D to leave the shell.")
				}
				continue
			}
			if err == io.EOF {
				break
			}
			return err
		}

		s.handleLine(ctx, line)
	}

	return nil
}

// runNonInteractive runs the shell without readline (for pipes/non-TTY).
// Each message waits for its reply before the next line is read.
func (s *Shell) runNonInteractive(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	for s.running && scanner.Scan() {
		s.handleLine(ctx, scanner.Text())
	}

	return scanner.Err()
}

// handleLine dispatches a typed line to a slash command or sends it
func (s *Shell) handleLine(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if strings.HasPrefix(line, "!") {
		s.executeShellCommand(strings.TrimPrefix(line, "!"))
		return
	}
	if strings.HasPrefix(line, "/") {
		s.handleSlashCommand(ctx, line)
		return
	}

	s.mu.Lock()
	in := chat.Input{Text: line, Files: s.pending}
	s.pending = nil
	s.echoSkip = line
	s.mu.Unlock()

	s.sendInput(ctx, in)
}

func (s *Shell) sendInput(ctx context.Context, in chat.Input) {
	if s.send != nil {
		ctx, cancel := context.WithTimeout(ctx, defaultAskTimeout)
		defer cancel()
		if err := s.send(ctx, in); err != nil {
			s.println("Error: " + err.Error())
		}
		return
	}
	s.dispatch(uicore.NewEvent(uicore.EventSendMessage).WithValue(in))
}

// handleSlashCommand handles the shell commands
func (s *Shell) handleSlashCommand(ctx context.Context, line string) {
	parts := parseCommandLine(strings.TrimPrefix(line, "/"))
	if len(parts) == 0 {
		return
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "quit", "exit", "q":
		s.println("Goodbye!")
		s.running = false

	case "help", "?":
		s.printHelp()

	case "clear", "cls":
		s.clearScreen()

	case "sessions", "ls":
		s.mu.Lock()
		printSessions(s.out, s.sessions)
		s.mu.Unlock()

	case "open":
		id, err := s.resolveSession(args)
		if err != nil {
			s.println(err.Error())
			return
		}
		s.dispatch(uicore.SelectSessionEvent(id))

	case "new":
		s.dispatch(uicore.NewEvent(uicore.EventNewConversation))
		s.println("New conversation.")

	case "rm", "delete":
		id, err := s.resolveSession(args)
		if err != nil {
			s.println(err.Error())
			return
		}
		s.dispatch(uicore.NewEvent(uicore.EventDeleteSession).WithTarget(id))

	case "agents":
		s.mu.Lock()
		printAgents(s.out, s.agents)
		s.mu.Unlock()

	case "agent":
		if len(args) == 0 {
			s.println("Usage: /agent <name>")
			return
		}
		s.dispatch(uicore.NewEvent(uicore.EventSelectAgent).WithTarget(args[0]))

	case "attach":
		if len(args) == 0 {
			s.println("Usage: /attach <file>...")
			return
		}
		for _, path := range args {
			file, err := readAttachment(path)
			if err != nil {
				s.println(err.Error())
				continue
			}
			s.mu.Lock()
			s.pending = append(s.pending, file)
			count := len(s.pending)
			s.mu.Unlock()
			s.println(fmt.Sprintf("Attached %s (%d pending, sent with the next message)", file.Name, count))
		}

	case "audio":
		if len(args) == 0 {
			s.println("Usage: /audio <file>")
			return
		}
		clip, err := readAudio(args[0])
		if err != nil {
			s.println(err.Error())
			return
		}
		s.mu.Lock()
		in := chat.Input{Files: s.pending, Audio: clip}
		s.pending = nil
		s.mu.Unlock()
		s.sendInput(ctx, in)

	case "feedback", "rate":
		s.rateLastAnswer(args)

	case "history":
		s.mu.Lock()
		if s.chat != nil {
			expandAll := hasFlag(args, "--all")
			for _, node := range s.chat.Nodes {
				printNode(s.out, node, expandAll)
			}
		}
		s.mu.Unlock()

	case "notifications", "notes":
		s.printNotifications(countArg(args, 20))

	case "events":
		s.printEvents(countArg(args, 20))

	default:
		s.println(fmt.Sprintf("Unknown command: /%s (try /help)", cmd))
	}
}

// printNotifications replays the last toasts, including the ones the
// shell skipped while they were shown
func (s *Shell) printNotifications(limit int) {
	if s.events == nil {
		return
	}
	history := s.events.GetHistoryByType([]eventbus.EventType{eventbus.EventNotification}, limit)
	if len(history) == 0 {
		s.println("No notifications.")
		return
	}
	for _, e := range history {
		line := fmt.Sprintf("%s  %-7s %s", e.Timestamp.Format("15:04:05"), e.String("level"), e.String("message"))
		if e.Source != "" {
			line += "  (" + e.Source + ")"
		}
		s.println(line)
	}
}

// printEvents dumps the last bus events as JSON lines
func (s *Shell) printEvents(limit int) {
	if s.events == nil {
		return
	}
	for _, e := range s.events.GetHistory(limit) {
		data, err := e.JSON()
		if err != nil {
			s.println(fmt.Sprintf("%s: %v", e.Type, err))
			continue
		}
		s.println(string(data))
	}
}

func countArg(args []string, fallback int) int {
	if len(args) == 0 {
		return fallback
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// rateLastAnswer rates the most recent assistant turn
func (s *Shell) rateLastAnswer(args []string) {
	if len(args) == 0 {
		s.println("Usage: /feedback <1-5> [comment]")
		return
	}
	if _, err := strconv.Atoi(args[0]); err != nil {
		s.println("Rating must be a number between 1 and 5")
		return
	}

	s.mu.Lock()
	target := ""
	if s.chat != nil {
		for i := len(s.chat.Nodes) - 1; i >= 0; i-- {
			node := s.chat.Nodes[i]
			if node.Turn != nil && node.Turn.Kind != string(chat.KindHuman) {
				target = node.Turn.ID
				break
			}
		}
	}
	s.mu.Unlock()

	if target == "" {
		s.println("No answer to rate yet.")
		return
	}
	s.dispatch(uicore.FeedbackEvent(target, args[0], strings.Join(args[1:], " ")))
}

// resolveSession accepts a list number, an id or an id prefix
func (s *Shell) resolveSession(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("a session number or id is required (see /sessions)")
	}
	ref := args[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	var sessions []uicore.SessionVM
	if s.sessions != nil {
		sessions = s.sessions.Sessions
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(sessions) {
		return sessions[n-1].ID, nil
	}

	match := ""
	for _, session := range sessions {
		if session.ID == ref {
			return ref, nil
		}
		if strings.HasPrefix(session.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("%q matches more than one session", ref)
			}
			match = session.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("unknown session: %s", ref)
	}
	return match, nil
}

func (s *Shell) dispatch(event *uicore.Event) {
	if err := s.presenter.HandleEvent(event); err != nil {
		s.println("Error: " + err.Error())
	}
}

// printNew must be called with s.mu held
func (s *Shell) printNew(vm *uicore.ChatVM) {
	for _, node := range vm.Nodes {
		if node.Kind == chat.NodeTurn {
			if node.Turn == nil || s.printed[node.Turn.ID] {
				continue
			}
			s.printed[node.Turn.ID] = true
			if node.Turn.Kind == string(chat.KindHuman) && node.Turn.Content == s.echoSkip {
				s.echoSkip = ""
				continue
			}
			printTurn(s.out, *node.Turn)
			continue
		}

		for _, section := range node.Sections {
			for _, turn := range section.Turns {
				if s.printed[turn.ID] {
					continue
				}
				s.printed[turn.ID] = true
				printStep(s.out, section.Task, turn)
			}
		}
	}
}

// markPrinted must be called with s.mu held
func (s *Shell) markPrinted(vm *uicore.ChatVM) {
	for _, node := range vm.Nodes {
		if node.Turn != nil {
			s.printed[node.Turn.ID] = true
		}
		for _, section := range node.Sections {
			for _, turn := range section.Turns {
				s.printed[turn.ID] = true
			}
		}
	}
}

// prompt must be called with s.mu held
func (s *Shell) prompt() string {
	agent := ""
	title := ""
	waiting := false
	if s.chat != nil {
		agent = s.chat.AgentDisplay
		title = s.chat.SessionTitle
		waiting = s.chat.Waiting
	}

	marker := ">"
	if waiting {
		marker = "…"
	}
	if s.isTTY {
		return fmt.Sprintf("\033[36mfred\033[0m \033[33m@%s\033[0m \033[90m%s\033[0m \033[32m%s\033[0m ",
			orDash(agent), preview(title, 30), marker)
	}
	return fmt.Sprintf("fred @%s %s %s ", orDash(agent), preview(title, 30), marker)
}

func (s *Shell) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, line)
}

// printWelcome prints the welcome message
func (s *Shell) printWelcome() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "\033[36m  %s\033[0m %s\n", modules.AppName, modules.AppVersion)
	if s.chat != nil && s.chat.TurnCount > 0 {
		fmt.Fprintf(s.out, "  Resumed %q (%d messages, /history to show them)\n", s.chat.SessionTitle, s.chat.TurnCount)
	}
	fmt.Fprintln(s.out, "  Type a message to chat, /help for commands, /quit to leave.")
	fmt.Fprintln(s.out)
}

func (s *Shell) printHelp() {
	s.mu.Lock()
	defer s.mu.Unlock()

	help := [][2]string{
		{"/sessions", "List conversations"},
		{"/open <n|id>", "Switch to a conversation"},
		{"/new", "Start a new conversation"},
		{"/rm <n|id>", "Delete a conversation"},
		{"/history [--all]", "Print the current conversation"},
		{"/agents", "List agents"},
		{"/agent <name>", "Talk to another agent"},
		{"/attach <file>...", "Upload files with the next message"},
		{"/audio <file>", "Send a voice message"},
		{"/feedback <1-5> [comment]", "Rate the last answer"},
		{"/notifications [n]", "Show recent notifications"},
		{"/events [n]", "Dump recent client events"},
		{"/clear", "Clear the screen"},
		{"!<command>", "Run a shell command"},
		{"/quit", "Leave the shell"},
	}
	for _, h := range help {
		fmt.Fprintf(s.out, "  %-28s %s\n", h[0], h[1])
	}
}

// executeShellCommand executes an OS shell command
func (s *Shell) executeShellCommand(cmdLine string) {
	cmdLine = strings.TrimSpace(cmdLine)
	if cmdLine == "" {
		return
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/c", cmdLine)
	} else {
		cmd = exec.Command("sh", "-c", cmdLine)
	}

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		s.println(fmt.Sprintf("Shell error: %v", err))
	}
}

// clearScreen clears the terminal screen
func (s *Shell) clearScreen() {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("cmd", "/c", "cls")
		cmd.Stdout = os.Stdout
		cmd.Run()
	} else {
		fmt.Print("\033[2J\033[H")
	}
}

// buildCompleter builds the readline completer
func (s *Shell) buildCompleter() *readline.PrefixCompleter {
	sessionIDs := readline.PcItemDynamic(func(string) []string {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.sessions == nil {
			return nil
		}
		ids := make([]string, 0, len(s.sessions.Sessions))
		for _, session := range s.sessions.Sessions {
			ids = append(ids, session.ID)
		}
		return ids
	})
	agentNames := readline.PcItemDynamic(func(string) []string {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.agents == nil {
			return nil
		}
		names := make([]string, 0, len(s.agents.Agents))
		for _, agent := range s.agents.Agents {
			names = append(names, agent.Name)
		}
		return names
	})

	return readline.NewPrefixCompleter(
		readline.PcItem("/help"),
		readline.PcItem("/sessions"),
		readline.PcItem("/open", sessionIDs),
		readline.PcItem("/new"),
		readline.PcItem("/rm", sessionIDs),
		readline.PcItem("/history", readline.PcItem("--all")),
		readline.PcItem("/agents"),
		readline.PcItem("/agent", agentNames),
		readline.PcItem("/attach"),
		readline.PcItem("/audio"),
		readline.PcItem("/feedback"),
		readline.PcItem("/notifications"),
		readline.PcItem("/events"),
		readline.PcItem("/clear"),
		readline.PcItem("/quit"),
	)
}

// parseCommandLine parses a command line into parts
func parseCommandLine(line string) []string {
	var parts []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			if inQuote {
				if ch == quoteChar {
					inQuote = false
				} else {
					current.WriteRune(ch)
				}
			} else {
				inQuote = true
				quoteChar = ch
			}
		case ch == ' ' || ch == '\t':
			if inQuote {
				current.WriteRune(ch)
			} else if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

// filterInput filters special input characters
func filterInput(r rune) (rune, bool) {
	switch r {
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}
