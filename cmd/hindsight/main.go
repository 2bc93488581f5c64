package main

import (
	"fmt"
	"os"

	"github.com/hindsightlabs/hindsight/internal/config"
	"github.com/hindsightlabs/hindsight/internal/logging"
	"github.com/hindsightlabs/hindsight/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"recall": true, "scan": true, "keywords": true, "status": true,
	"cache": true, "run": true, "web": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _     _           _     _       _     _
  | |__ (_)_ __   __| |___(_) __ _| |__ | |_
  | '_ \| | '_ \ / _' / __| |/ _' | '_ \| __|
  | | | | | | | | (_| \__ \ | (_| | | | | |_
  |_| |_|_|_| |_|\__,_|___/_|\__, |_| |_|\__|
                             |___/

  Conversation recall for AI coding assistants

  Usage: hindsight <command> [options]
         hindsight --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before config load (no config needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithProject("", cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(cfg, logging.NewStderr(cfg.LogLevel))
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'hindsight --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default). Stdout carries the protocol, so logs go to
	// the configured file.
	logger, closer := logging.NewFile(cfg.LogPath(), cfg.LogLevel)
	defer closer.Close()

	if err := mcp.Run(cfg, Version, logger); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
