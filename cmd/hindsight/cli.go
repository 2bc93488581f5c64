package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"github.com/hindsightlabs/hindsight/internal/config"
	"github.com/hindsightlabs/hindsight/internal/errors"
	"github.com/hindsightlabs/hindsight/internal/mcp"
	"github.com/hindsightlabs/hindsight/internal/web"
)

// newCLIApp builds the CLI application. Every command calls the same typed
// methods the MCP tools wrap, so both surfaces return identical JSON.
func newCLIApp(cfg *config.Config, logger *log.Logger) *cli.App {
	h := mcp.NewHandlers(cfg, Version, logger)

	app := &cli.App{
		Name:    "hindsight",
		Usage:   "Conversation recall for AI coding assistants",
		Version: Version,
		Commands: []*cli.Command{
			recallCmd(h),
			scanCmd(h),
			keywordsCmd(h),
			statusCmd(h),
			cacheCmd(h),
			runCmd(h),
			webCmd(cfg, logger),
		},
	}
	// cli.Exit errors already carry their message; suppress the default
	// handler so app.Run returns them instead of calling os.Exit itself.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func recallCmd(h *mcp.Handlers) *cli.Command {
	return &cli.Command{
		Name:  "recall",
		Usage: "Search past conversations relevant to a project",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "project root to recall for (default: current directory)"},
			&cli.StringFlag{Name: "tools", Usage: "comma-separated tools to search (cursor, claude-code, windsurf)"},
			&cli.StringFlag{Name: "keywords", Aliases: []string{"k"}, Usage: "comma-separated keywords (default: detected from project)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "maximum conversations to return"},
			&cli.Float64Flag{Name: "min-score", Usage: "minimum relevance score"},
			&cli.IntFlag{Name: "days-lookback", Usage: "only consider conversations updated in the last N days"},
			&cli.BoolFlag{Name: "full", Usage: "return full conversation content instead of snippets"},
			&cli.BoolFlag{Name: "detailed", Usage: "include per-conversation score breakdowns"},
		},
		Action: func(c *cli.Context) error {
			input := mcp.RecallRequest{
				ProjectRoot: c.String("project"),
				Tools:       parseList(c.String("tools")),
				Keywords:    parseList(c.String("keywords")),
				Limit:       c.Int("limit"),
				Full:        c.Bool("full"),
				Detailed:    c.Bool("detailed"),
			}
			if c.IsSet("min-score") {
				v := c.Float64("min-score")
				input.MinScore = &v
			}
			if c.IsSet("days-lookback") {
				v := c.Int("days-lookback")
				input.DaysLookback = &v
			}
			return outputJSON(h.Recall(c.Context, input))
		},
	}
}

func scanCmd(h *mcp.Handlers) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Discover conversation stores on this machine",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "tools", Usage: "comma-separated tools to scan (default: all)"},
		},
		Action: func(c *cli.Context) error {
			res, err := h.Scan(c.Context, mcp.ScanRequest{Tools: parseList(c.String("tools"))})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(res)
		},
	}
}

func keywordsCmd(h *mcp.Handlers) *cli.Command {
	return &cli.Command{
		Name:  "keywords",
		Usage: "Show the keywords detected for a project",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "project root to inspect (default: current directory)"},
		},
		Action: func(c *cli.Context) error {
			return outputJSON(h.Keywords(mcp.KeywordsRequest{ProjectRoot: c.String("project")}))
		},
	}
}

func statusCmd(h *mcp.Handlers) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Report tool availability, cache state, and effective config",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Aliases: []string{"p"}, Usage: "project root the cache is keyed on (default: current directory)"},
			&cli.StringFlag{Name: "keywords", Aliases: []string{"k"}, Usage: "comma-separated keywords the cache is keyed on"},
		},
		Action: func(c *cli.Context) error {
			return outputJSON(h.Status(c.Context, mcp.StatusRequest{
				ProjectRoot: c.String("project"),
				Keywords:    parseList(c.String("keywords")),
			}))
		},
	}
}

func cacheCmd(h *mcp.Handlers) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the scan result cache",
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Remove all cached scan results",
				Action: func(c *cli.Context) error {
					res, err := h.ClearCache()
					if err != nil {
						return outputError(err)
					}
					return outputJSON(res)
				},
			},
		},
	}
}

func runCmd(h *mcp.Handlers) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute an allowlisted command (requires command.enabled in config)",
		ArgsUsage: "<command> [args...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "working directory for the command"},
			&cli.IntFlag{Name: "timeout", Usage: "timeout in seconds (cannot exceed the configured limit)"},
		},
		Action: func(c *cli.Context) error {
			args := c.Args().Slice()
			if len(args) == 0 {
				return outputError(errors.NewInvalidRequest("command is required"))
			}
			res, err := h.RunCommand(c.Context, mcp.RunCommandRequest{
				Command:        args[0],
				Args:           args[1:],
				Dir:            c.String("dir"),
				TimeoutSeconds: c.Int("timeout"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(res)
		},
	}
}

func webCmd(cfg *config.Config, logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the local debug UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (default: from config)"},
		},
		Action: func(c *cli.Context) error {
			if cfg == nil {
				cfg = config.Default()
			}
			if c.IsSet("addr") {
				cfg.Web.Addr = c.String("addr")
			}
			srv := web.NewServer(cfg, Version, logger)
			return web.Run(srv, logger)
		},
	}
}

// outputJSON writes v to stdout as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats a recall error for the terminal and exits non-zero.
func outputError(err error) error {
	if rErr, ok := err.(*errors.RecallError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", rErr.Code, rErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseList splits a comma-separated flag value into trimmed parts.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
