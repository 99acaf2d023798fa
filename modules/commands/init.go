package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"fred-chat/modules"
	"fred-chat/modules/core/agents"
	"fred-chat/modules/core/chat"
	"fred-chat/modules/platform/api"
	"fred-chat/modules/platform/auth"
	"fred-chat/modules/platform/config"
	"fred-chat/modules/platform/eventbus"
	"fred-chat/modules/platform/logger"
	"fred-chat/modules/platform/state"
	"fred-chat/modules/platform/transport"
	uicore "fred-chat/modules/ui/core"
)

const startupTimeout = 20 * time.Second

// AppContext holds application-wide context
type AppContext struct {
	Config     *config.Config
	ConfigPath string
	Runtime    *config.Runtime
	Identity   *auth.Identity // nil when the token is not a JWT
	UserID     string
	Token      string
	API        *api.Client
	Agents     *agents.Catalog
	Store      *state.Store
	Tab        *state.TabState
	TabName    string
	Logger     *logger.Logger

	logFile io.Closer
}

var (
	globalContext *AppContext
	tabOverride   string
	verboseLog    bool
)

// SetTab selects the tab whose session and agent are restored
func SetTab(name string) {
	tabOverride = strings.TrimSpace(name)
}

// SetVerbose enables debug logging
func SetVerbose(enabled bool) {
	verboseLog = enabled
}

// InitContext resolves the identity, bootstraps the backend configuration
// and opens the local state
func InitContext() error {
	if globalContext != nil {
		return nil
	}

	cfg := config.GetGlobal()
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	log, logFile := newLogger(cfg.Settings.GetLoggerConfig())

	token := cfg.ResolveToken()
	userID, err := auth.ResolveUserID(cfg.Backend.UserID, token)
	if err != nil {
		closeQuietly(logFile)
		return fmt.Errorf("cannot determine the user id (set backend.user_id or %s): %w", config.TokenEnvVar, err)
	}
	identity, err := auth.ParseIdentity(token)
	if err != nil {
		identity = nil
		log.Debug("token is not a readable JWT: %v", err)
	} else if identity.Expired(time.Now()) {
		log.Warn("token of %s expired at %s", identity.DisplayName(), identity.ExpiresAt.Format(time.RFC3339))
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	rt, err := config.Bootstrap(ctx, cfg.Backend, token, nil)
	if err != nil {
		closeQuietly(logFile)
		return err
	}
	log.Info("backend api at %s for user %s", rt.APIURL, userID)

	store, err := state.Open(cfg.Settings.GetStatePath())
	if err != nil {
		closeQuietly(logFile)
		return fmt.Errorf("failed to open local state: %w", err)
	}

	tabName := cfg.Settings.Tab
	if tabOverride != "" {
		tabName = tabOverride
	}

	globalContext = &AppContext{
		Config:     cfg,
		ConfigPath: config.GetGlobalPath(),
		Runtime:    rt,
		Identity:   identity,
		UserID:     userID,
		Token:      token,
		API:        api.NewClient(rt.APIURL, token),
		Agents:     agents.NewCatalog(),
		Store:      store,
		Tab:        store.Tab(tabName),
		TabName:    tabName,
		Logger:     log,
		logFile:    logFile,
	}

	return nil
}

// GetContext returns the global application context
func GetContext() *AppContext {
	return globalContext
}

// CloseContext releases the state file and the log file
func CloseContext() {
	if globalContext == nil {
		return
	}
	if err := globalContext.Store.Close(); err != nil {
		globalContext.Logger.Warn("failed to close state: %v", err)
	}
	closeQuietly(globalContext.logFile)
	globalContext = nil
}

// registerChatCommands registers conversation commands
func registerChatCommands() {
	RegisterCommand(&Command{
		Name:        "ask",
		Category:    "Chat",
		Description: "Send one message and print the reply",
		Usage:       "fred-chat ask [--agent <name>] [--session <id>] [--attach <file>]... [--audio <file>] [--timeout <duration>] <message>",
		Examples: []string{
			"fred-chat ask 'What changed in the Q3 budget?'",
			"fred-chat ask --agent Georges --session 4f2a 'And for Q4?'",
			"fred-chat ask --attach report.pdf 'Summarize the attached report'",
			"fred-chat ask --audio question.webm",
		},
		Handler: askCommand,
		Order:   10,
	})

	RegisterCommand(&Command{
		Name:        "feedback",
		Aliases:     []string{"rate"},
		Category:    "Chat",
		Description: "Rate an answer from 1 to 5",
		Usage:       "fred-chat feedback <session-id> <message-id> <rating> [comment]",
		Examples: []string{
			"fred-chat feedback 4f2a msg-12 5",
			"fred-chat rate 4f2a msg-12 2 'Sources were outdated'",
		},
		Handler: feedbackCommand,
		Order:   11,
	})
}

// registerSessionCommands registers session management commands
func registerSessionCommands() {
	RegisterCommand(&Command{
		Name:        "sessions",
		Aliases:     []string{"ls"},
		Category:    "Sessions",
		Description: "List your conversations",
		Usage:       "fred-chat sessions [--json]",
		Examples: []string{
			"fred-chat sessions",
			"fred-chat ls --json",
		},
		Handler: sessionsCommand,
		Order:   20,
	})

	RegisterCommand(&Command{
		Name:        "history",
		Aliases:     []string{"show"},
		Category:    "Sessions",
		Description: "Print the messages of a conversation",
		Usage:       "fred-chat history <session-id> [--all] [--json]",
		Examples: []string{
			"fred-chat history 4f2a",
			"fred-chat show 4f2a --all",
		},
		Handler: historyCommand,
		Order:   21,
	})

	RegisterCommand(&Command{
		Name:        "delete",
		Aliases:     []string{"rm"},
		Category:    "Sessions",
		Description: "Delete conversations",
		Usage:       "fred-chat delete <session-id>...",
		Examples: []string{
			"fred-chat delete 4f2a",
			"fred-chat rm 4f2a 9c1b",
		},
		Handler: deleteCommand,
		Order:   22,
	})
}

// registerAgentCommands registers agent catalog commands
func registerAgentCommands() {
	RegisterCommand(&Command{
		Name:        "agents",
		Category:    "Agents",
		Description: "List the available agents",
		Usage:       "fred-chat agents [--json]",
		Examples: []string{
			"fred-chat agents",
		},
		Handler: agentsCommand,
		Order:   30,
	})

	RegisterCommand(&Command{
		Name:        "whoami",
		Category:    "Agents",
		Description: "Show the identity used against the backend",
		Usage:       "fred-chat whoami",
		Handler:     whoamiCommand,
		Order:       31,
	})
}

// registerConfigCommands registers configuration commands
func registerConfigCommands() {
	RegisterCommand(&Command{
		Name:        "config",
		Aliases:     []string{"cfg"},
		Category:    "Configuration",
		Description: "Configuration management",
		Usage:       "fred-chat config <subcommand>",
		SubCommands: []SubCommand{
			{Name: "show", Description: "Show current configuration", Handler: configShowCommand},
			{Name: "path", Description: "Show config file path", Handler: configPathCommand},
			{Name: "init", Description: "Create the configuration file", Handler: configInitCommand},
		},
		Examples: []string{
			"fred-chat config show",
			"fred-chat config init --frontend https://fred.example.com",
			"fred-chat cfg path",
		},
		Handler: configCommand,
		Order:   50,
	})

	RegisterCommand(&Command{
		Name:        "prefs",
		Category:    "Configuration",
		Description: "Show or change the saved preferences",
		Usage:       "fred-chat prefs [dark on|off] [sidebar on|off] [tabs] [clear]",
		Examples: []string{
			"fred-chat prefs",
			"fred-chat prefs dark off",
			"fred-chat --tab work prefs clear",
		},
		Handler: prefsCommand,
		Order:   51,
	})
}

// registerUICommands registers UI-related commands
func registerUICommands() {
	RegisterCommand(&Command{
		Name:        "ui",
		Aliases:     []string{"tui"},
		Category:    "Interface",
		Description: "Launch the TUI interface",
		Usage:       "fred-chat ui",
		Examples: []string{
			"fred-chat ui",
			"fred-chat --tab work tui",
		},
		Handler: uiCommand,
		Order:   60,
	})

	RegisterCommand(&Command{
		Name:        "shell",
		Aliases:     []string{"sh", "chat"},
		Category:    "Interface",
		Description: "Start the interactive chat shell",
		Usage:       "fred-chat shell",
		Examples: []string{
			"fred-chat shell",
			"echo 'hello' | fred-chat sh",
		},
		Handler: shellCommand,
		Order:   61,
	})
}

// LoadAgents fetches the agent catalog
func (a *AppContext) LoadAgents(ctx context.Context) error {
	flows, err := a.API.AgenticFlows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list agents: %w", err)
	}
	a.Agents.Load(flows)
	return nil
}

// SocketURL returns the chat socket URL
func (a *AppContext) SocketURL() (string, error) {
	if base := a.Runtime.WebSocketURL(); base != "" {
		return transport.WebSocketURL(base, api.PathQueryWS)
	}
	return transport.WebSocketURL(a.Runtime.APIURL, api.PathQueryWS)
}

// NewChatService builds the chat controller of one view
func (a *AppContext) NewChatService(bus *eventbus.Bus) (*chat.Service, error) {
	url, err := a.SocketURL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("User-Agent", modules.UserAgent())
	if a.Token != "" {
		header.Set("Authorization", "Bearer "+a.Token)
	}

	conns := transport.NewManager(transport.Options{
		URL:    url,
		Header: header,
		Logger: a.Logger.With("transport"),
	})

	return chat.NewService(chat.Deps{
		Backend:     a.API,
		Connections: conns,
		Agents:      a.Agents,
		Bus:         bus,
		State:       a.Tab,
		Logger:      a.Logger.With("chat"),
		UserID:      a.UserID,
		AgentName:   a.Config.Settings.DefaultAgent,
	}), nil
}

// NewPresenter builds the presenter shared by the TUI and the shell
func (a *AppContext) NewPresenter() (*uicore.ChatPresenter, error) {
	service, err := a.NewChatService(eventbus.NewBus())
	if err != nil {
		return nil, err
	}
	return uicore.NewChatPresenter(uicore.PresenterDeps{
		Service:     service,
		Catalog:     a.Agents,
		AgentSource: a.API,
		Preferences: a.Store,
		Tab:         a.Tab,
		Logger:      a.Logger.With("presenter"),
	}), nil
}

// newLogger writes to the log file only, the terminal belongs to the views
func newLogger(cfg *config.LoggerConfig) (*logger.Logger, io.Closer) {
	log := logger.NewLogger(logger.ParseLevel(cfg.Level), nil, "fred-chat")
	if verboseLog {
		log.SetLevel(logger.DEBUG)
	}

	file, err := logger.CreateLogFile(cfg.GetLogFile(), cfg.MaxSizeMB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, logging to stderr\n", err)
		log.AddOutput(os.Stderr)
		return log, nil
	}
	log.AddOutput(file)
	return log, file
}

func closeQuietly(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
