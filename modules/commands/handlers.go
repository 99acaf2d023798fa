package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fred-chat/modules/core/chat"
	"fred-chat/modules/platform/config"
	"fred-chat/modules/platform/eventbus"
	uicore "fred-chat/modules/ui/core"
	"fred-chat/modules/ui/tui"

	"gopkg.in/yaml.v3"
)

const defaultAskTimeout = 5 * time.Minute

// askCommand handles the 'ask' command
func askCommand(args []string) error {
	var (
		agentName string
		sessionID string
		files     []string
		audioPath string
		timeout   = defaultAskTimeout
		words     []string
	)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		hasValue := i+1 < len(args)
		switch {
		case arg == "--agent" && hasValue:
			agentName = args[i+1]
			i++
		case arg == "--session" && hasValue:
			sessionID = args[i+1]
			i++
		case arg == "--attach" && hasValue:
			files = append(files, args[i+1])
			i++
		case arg == "--audio" && hasValue:
			audioPath = args[i+1]
			i++
		case arg == "--timeout" && hasValue:
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid timeout %q: %w", args[i+1], err)
			}
			timeout = d
			i++
		default:
			words = append(words, arg)
		}
	}

	input := chat.Input{Text: strings.Join(words, " ")}
	for _, path := range files {
		file, err := readAttachment(path)
		if err != nil {
			return err
		}
		input.Files = append(input.Files, file)
	}
	if audioPath != "" {
		clip, err := readAudio(audioPath)
		if err != nil {
			return err
		}
		input.Audio = clip
	}
	if strings.TrimSpace(input.Text) == "" && input.Audio == nil && len(input.Files) == 0 {
		return fmt.Errorf("a message is required\nUsage: fred-chat ask [flags] <message>")
	}

	if err := InitContext(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer CloseContext()
	app := GetContext()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := app.LoadAgents(ctx); err != nil {
		return err
	}

	bus := eventbus.NewBus()
	bus.Subscribe([]eventbus.EventType{eventbus.EventNotification}, func(e *eventbus.Event) {
		level := e.String("level")
		if level == eventbus.LevelError || level == eventbus.LevelWarning {
			fmt.Fprintf(os.Stderr, "%s: %s\n", level, e.String("message"))
		}
	})

	service, err := app.NewChatService(bus)
	if err != nil {
		return err
	}
	defer service.Close()

	if agentName != "" {
		flow, err := app.Agents.Resolve(agentName)
		if err != nil {
			return err
		}
		service.SetAgent(flow.Name)
	}
	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessionID != "" {
		if err := service.SelectSession(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to open session %s: %w", sessionID, err)
		}
	}

	result, err := sendAndWait(ctx, service, input)
	if err != nil {
		return err
	}
	if result.Transcript != "" {
		fmt.Printf("You said: %s\n\n", result.Transcript)
	}
	if !result.Sent() {
		return nil
	}

	printReply(service.Snapshot(), result.Turn.ID, app)
	return nil
}

// sendAndWait sends a message and blocks until its reply is complete
func sendAndWait(ctx context.Context, service *chat.Service, in chat.Input) (*chat.SendResult, error) {
	idle := make(chan struct{}, 1)
	id := service.Bus().Subscribe([]eventbus.EventType{eventbus.EventWaitingChanged}, func(e *eventbus.Event) {
		if e.Bool("waiting") {
			return
		}
		select {
		case idle <- struct{}{}:
		default:
		}
	})
	defer service.Bus().Unsubscribe(id)

	result, err := service.Send(ctx, in)
	if err != nil || !result.Sent() {
		return result, err
	}

	select {
	case <-idle:
		return result, nil
	case <-ctx.Done():
		return result, fmt.Errorf("no reply: %w", ctx.Err())
	}
}

// printReply prints the nodes that follow the given human turn
func printReply(snap chat.Snapshot, humanID string, app *AppContext) {
	after := make(map[string]bool)
	seen := false
	for _, turn := range snap.Turns {
		if seen {
			after[turn.ID] = true
		}
		if turn.ID == humanID {
			seen = true
		}
	}

	vm := uicore.NewChatVM(snap, app.Agents, nil)
	for _, node := range vm.Nodes {
		if after[node.Key] {
			printNode(os.Stdout, node, false)
		}
	}
	if vm.SessionID != "" {
		fmt.Printf("session %s\n", vm.SessionID)
	}
}

// feedbackCommand handles the 'feedback' command
func feedbackCommand(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("session, message and rating are required\nUsage: fred-chat feedback <session-id> <message-id> <rating> [comment]")
	}
	rating, err := strconv.Atoi(args[2])
	if err != nil || rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be a number between 1 and 5, got %q", args[2])
	}

	if err := InitContext(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer CloseContext()
	app := GetContext()

	agentName, _ := app.Tab.CurrentAgent()
	if agentName == "" {
		agentName = app.Config.Settings.DefaultAgent
	}

	err = app.API.Feedback(context.Background(), chat.Feedback{
		Rating:    rating,
		Comment:   strings.Join(args[3:], " "),
		MessageID: args[1],
		SessionID: args[0],
		AgentName: agentName,
	})
	if err != nil {
		return fmt.Errorf("failed to send feedback: %w", err)
	}

	fmt.Println("Feedback sent.")
	return nil
}

// sessionsCommand handles the 'sessions' command
func sessionsCommand(args []string) error {
	jsonOutput := hasFlag(args, "--json")

	if err := InitContext(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer CloseContext()
	app := GetContext()

	sessions, err := app.API.ListSessions(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	registry := chat.NewRegistry()
	registry.Load(sessions)

	if jsonOutput {
		return printJSON(registry.List())
	}

	active, _ := app.Tab.CurrentSession()
	printSessions(os.Stdout, uicore.NewSessionsVM(registry.List(), active))
	return nil
}

// historyCommand handles the 'history' command
func historyCommand(args []string) error {
	var sessionID string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			sessionID = arg
			break
		}
	}
	if sessionID == "" {
		return fmt.Errorf("session id is required\nUsage: fred-chat history <session-id> [--all] [--json]")
	}

	if err := InitContext(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer CloseContext()
	app := GetContext()

	ctx := context.Background()
	turns, err := app.API.History(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if hasFlag(args, "--json") {
		return printJSON(turns)
	}
	if len(turns) == 0 {
		fmt.Println("No messages in this conversation.")
		return nil
	}

	// Display names only, a missing catalog still prints the raw names
	if err := app.LoadAgents(ctx); err != nil {
		app.Logger.Warn("%v", err)
	}

	expandAll := hasFlag(args, "--all")
	for _, node := range conversationVM(turns, app.Agents).Nodes {
		printNode(os.Stdout, node, expandAll)
	}
	return nil
}

// deleteCommand handles the 'delete' command
func deleteCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("session id is required\nUsage: fred-chat delete <session-id>...")
	}

	if err := InitContext(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer CloseContext()
	app := GetContext()

	current, _ := app.Tab.CurrentSession()
	var failed []string
	for _, id := range args {
		if err := app.API.DeleteSession(context.Background(), id); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to delete %s: %v\n", id, err)
			failed = append(failed, id)
			continue
		}
		if current != nil && current.ID == id {
			if err := app.Tab.SaveCurrentSession(nil); err != nil {
				app.Logger.Warn("failed to clear current session: %v", err)
			}
		}
		fmt.Printf("Deleted %s\n", id)
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d deletions failed", len(failed), len(args))
	}
	return nil
}

// agentsCommand handles the 'agents' command
func agentsCommand(args []string) error {
	if err := InitContext(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer CloseContext()
	app := GetContext()

	if err := app.LoadAgents(context.Background()); err != nil {
		return err
	}
	if hasFlag(args, "--json") {
		return printJSON(app.Agents.List())
	}

	selected, _ := app.Tab.CurrentAgent()
	if selected == "" {
		selected = app.Config.Settings.DefaultAgent
	}
	printAgents(os.Stdout, uicore.NewAgentsVM(app.Agents.List(), selected))
	return nil
}

// whoamiCommand handles the 'whoami' command
func whoamiCommand(args []string) error {
	if err := InitContext(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer CloseContext()
	app := GetContext()

	fmt.Printf("User:    %s\n", app.UserID)
	if id := app.Identity; id != nil {
		fmt.Printf("Name:    %s\n", id.DisplayName())
		if id.Email != "" {
			fmt.Printf("Email:   %s\n", id.Email)
		}
		if !id.ExpiresAt.IsZero() {
			status := "valid"
			if id.Expired(time.Now()) {
				status = "expired"
			}
			fmt.Printf("Token:   %s until %s\n", status, id.ExpiresAt.Local().Format(time.RFC1123))
		}
	} else if app.Token == "" {
		fmt.Println("Token:   none")
	}
	fmt.Printf("API:     %s\n", app.Runtime.APIURL)
	if url, err := app.SocketURL(); err == nil {
		fmt.Printf("Socket:  %s\n", url)
	}
	fmt.Printf("Tab:     %s\n", app.TabName)
	return nil
}

// configCommand handles the 'config' command
func configCommand(args []string) error {
	return runSubCommand(GetCommand("config"), args)
}

func configShowCommand(args []string) error {
	cfg := *config.GetGlobal()
	if cfg.Backend != nil {
		backend := *cfg.Backend
		if backend.Token != "" {
			backend.Token = "********"
		}
		cfg.Backend = &backend
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("Configuration:")
	fmt.Println(string(data))
	if problems := cfg.Validate(); len(problems) > 0 {
		fmt.Println("Problems:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
	}
	return nil
}

func configPathCommand(args []string) error {
	path := config.GetGlobalPath()
	if path == "" {
		path = config.FindConfigFile()
	}
	fmt.Println(path)
	return nil
}

func configInitCommand(args []string) error {
	path := config.GetGlobalPath()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	loader := config.NewLoader(path)
	existed := loader.Exists()
	cfg, err := loader.LoadWithCreate(true)
	if err != nil {
		return err
	}

	changed := false
	for i := 0; i < len(args)-1; i++ {
		value := args[i+1]
		switch args[i] {
		case "--frontend":
			cfg.Backend.FrontendURL = value
		case "--api":
			cfg.Backend.APIURL = value
		case "--agent":
			cfg.Settings.DefaultAgent = value
		case "--user":
			cfg.Backend.UserID = value
		default:
			continue
		}
		changed = true
		i++
	}

	if changed {
		if err := loader.Save(cfg); err != nil {
			return err
		}
	}

	switch {
	case !existed:
		fmt.Printf("Created %s\n", path)
	case changed:
		fmt.Printf("Updated %s\n", path)
	default:
		fmt.Printf("%s already exists\n", path)
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		fmt.Printf("Still missing: %s\n", strings.Join(problems, "; "))
	}
	return nil
}

// prefsCommand handles the 'prefs' command
func prefsCommand(args []string) error {
	if err := InitContext(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer CloseContext()
	app := GetContext()

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "dark", "sidebar":
			if i+1 >= len(args) {
				return fmt.Errorf("%s needs on or off", args[i])
			}
			on, err := parseSwitch(args[i+1])
			if err != nil {
				return err
			}
			if args[i] == "dark" {
				err = app.Store.SetDarkMode(on)
			} else {
				err = app.Store.SetSidebarCollapsed(!on)
			}
			if err != nil {
				return fmt.Errorf("failed to save preferences: %w", err)
			}
			i++
		case "tabs":
			tabs, err := app.Store.Tabs()
			if err != nil {
				return fmt.Errorf("failed to list tabs: %w", err)
			}
			for _, name := range tabs {
				marker := " "
				if name == app.TabName {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, name)
			}
			return nil
		case "clear":
			if err := app.Tab.Clear(); err != nil {
				return fmt.Errorf("failed to clear tab %s: %w", app.TabName, err)
			}
			fmt.Printf("Cleared tab %s\n", app.TabName)
			return nil
		default:
			return fmt.Errorf("unknown preference: %s", args[i])
		}
	}

	prefs, err := app.Store.Preferences()
	if err != nil {
		return fmt.Errorf("failed to read preferences: %w", err)
	}
	fmt.Printf("Dark mode:  %s\n", onOff(prefs.DarkMode))
	fmt.Printf("Sidebar:    %s\n", onOff(!prefs.SidebarCollapsed))

	fmt.Printf("Tab:        %s\n", app.TabName)
	if session, _ := app.Tab.CurrentSession(); session != nil {
		fmt.Printf("  Session:  %s (%s)\n", orDash(session.Title), session.ID)
	}
	if agent, _ := app.Tab.CurrentAgent(); agent != "" {
		fmt.Printf("  Agent:    %s\n", agent)
	}
	return nil
}

// uiCommand handles the 'ui' command
func uiCommand(args []string) error {
	if err := InitContext(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer CloseContext()

	presenter, err := GetContext().NewPresenter()
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := presenter.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize presenter: %w", err)
	}
	defer presenter.Shutdown()

	tuiView := tui.NewTUIView()
	if err := tuiView.Initialize(presenter); err != nil {
		return fmt.Errorf("failed to initialize TUI: %w", err)
	}

	// Run the TUI (blocking)
	if err := tuiView.Run(ctx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// shellCommand handles the 'shell' command
func shellCommand(args []string) error {
	if err := InitContext(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer CloseContext()

	return StartShell()
}

func readAttachment(path string) (chat.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return chat.Attachment{}, fmt.Errorf("failed to read attachment: %w", err)
	}
	return chat.Attachment{Name: filepath.Base(path), Data: data}, nil
}

func readAudio(path string) (*chat.AudioClip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return &chat.AudioClip{Name: filepath.Base(path), Data: data}, nil
}

func hasFlag(args []string, flag string) bool {
	for _, arg := range args {
		if arg == flag {
			return true
		}
	}
	return false
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", value)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
