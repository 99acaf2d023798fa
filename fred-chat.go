package main

import (
	"fmt"
	"os"
	"strings"

	"fred-chat/modules"
	"fred-chat/modules/commands"
	"fred-chat/modules/platform/config"
)

func main() {
	// Parse global flags
	args := os.Args[1:]
	configPath := ""
	verbose := false

	// Extract global flags
	var cmdArgs []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--config" || arg == "-c":
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--tab" || arg == "-t":
			if i+1 < len(args) {
				commands.SetTab(args[i+1])
				i++
			}
		case strings.HasPrefix(arg, "--tab="):
			commands.SetTab(strings.TrimPrefix(arg, "--tab="))
		case arg == "--verbose" || arg == "-v":
			verbose = true
		case arg == "--version" || arg == "-V":
			printVersion()
			return
		case (arg == "--help" || arg == "-h") && len(cmdArgs) == 0:
			printHelp()
			return
		default:
			cmdArgs = append(cmdArgs, arg)
		}
	}

	// Load configuration
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	if err := config.LoadGlobal(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
	}
	commands.SetVerbose(verbose)

	// Initialize command registry
	commands.InitRegistry()

	// Default to the chat shell
	if len(cmdArgs) == 0 {
		cmdArgs = []string{"shell"}
	}

	cmdName := cmdArgs[0]
	cmdRemainingArgs := cmdArgs[1:]

	// Handle special commands
	switch cmdName {
	case "version":
		printVersion()
		return
	case "help":
		if len(cmdRemainingArgs) > 0 {
			commands.PrintCommandHelp(os.Stdout, cmdRemainingArgs[0])
		} else {
			printHelp()
		}
		return
	}

	// Look up command in registry
	cmd := commands.GetCommand(cmdName)
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmdName)
		if hints := commands.SuggestCommand(cmdName); len(hints) > 0 {
			fmt.Fprintf(os.Stderr, "Did you mean: %s?\n", strings.Join(hints, ", "))
		}
		fmt.Fprintf(os.Stderr, "Run 'fred-chat help' for usage.\n")
		os.Exit(1)
	}

	if len(cmdRemainingArgs) > 0 && (cmdRemainingArgs[0] == "--help" || cmdRemainingArgs[0] == "-h") {
		commands.PrintCommandHelp(os.Stdout, cmd.Name)
		return
	}

	// Execute command
	if err := cmd.Handler(cmdRemainingArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("fred-chat version %s\n", modules.AppVersion)
	fmt.Printf("Build: %s\n", modules.BuildHash())
}

func printHelp() {
	fmt.Printf("fred-chat - %s\n", modules.AppDescription)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  fred-chat [flags] [command] [arguments]")
	fmt.Println()
	fmt.Println("Global Flags:")
	fmt.Println("  -c, --config <path>    Path to config file")
	fmt.Println("  -t, --tab <name>       Tab whose conversation and agent are restored")
	fmt.Println("  -v, --verbose          Debug logging")
	fmt.Println("  -V, --version          Print version")
	fmt.Println("  -h, --help             Print help")
	fmt.Println()
	fmt.Printf("Environment:\n  %-22s Bearer token, overrides backend.token\n", config.TokenEnvVar)
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println()

	// Print commands by category
	commands.PrintCommands(os.Stdout)

	fmt.Println("Use 'fred-chat help <command>' for more information about a command.")
}
