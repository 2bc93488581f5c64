package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/hindsightlabs/hindsight/internal/config"
	"github.com/hindsightlabs/hindsight/internal/mcp"
	"github.com/hindsightlabs/hindsight/internal/runner"
)

// testConfig returns a default config with the cache pointed at a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Directories.CacheDir = t.TempDir()
	return cfg
}

// runApp runs the CLI app with captured stdout.
func runApp(t *testing.T, app *cli.App, args []string) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := app.Run(args)

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout

	return buf.String(), err
}

// TestParseList tests the parseList helper function.
func TestParseList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "cursor",
			expected: []string{"cursor"},
		},
		{
			name:     "multiple values",
			input:    "cursor,claude-code,windsurf",
			expected: []string{"cursor", "claude-code", "windsurf"},
		},
		{
			name:     "values with spaces",
			input:    " auth , login , api ",
			expected: []string{"auth", "login", "api"},
		},
		{
			name:     "empty values filtered",
			input:    "auth,,login,",
			expected: []string{"auth", "login"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseList(tt.input)
			if len(result) != len(tt.expected) {
				t.Errorf("expected %d values, got %d", len(tt.expected), len(result))
				return
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("expected [%d]=%q, got %q", i, tt.expected[i], v)
				}
			}
		})
	}
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{
			name:     "no args",
			args:     []string{"hindsight"},
			expected: false,
		},
		{
			name:     "recall command",
			args:     []string{"hindsight", "recall"},
			expected: true,
		},
		{
			name:     "scan command",
			args:     []string{"hindsight", "scan"},
			expected: true,
		},
		{
			name:     "web command",
			args:     []string{"hindsight", "web"},
			expected: true,
		},
		{
			name:     "help flag",
			args:     []string{"hindsight", "--help"},
			expected: true,
		},
		{
			name:     "version flag",
			args:     []string{"hindsight", "--version"},
			expected: true,
		},
		{
			name:     "short help flag",
			args:     []string{"hindsight", "-h"},
			expected: true,
		},
		{
			name:     "short version flag",
			args:     []string{"hindsight", "-v"},
			expected: true,
		},
		{
			name:     "unknown arg defaults to MCP",
			args:     []string{"hindsight", "--unknown"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Save and restore os.Args
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			result := isCLIMode()

			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{
			name:     "no args",
			args:     []string{"hindsight"},
			expected: false,
		},
		{
			name:     "help flag",
			args:     []string{"hindsight", "--help"},
			expected: true,
		},
		{
			name:     "short help flag",
			args:     []string{"hindsight", "-h"},
			expected: true,
		},
		{
			name:     "version flag",
			args:     []string{"hindsight", "--version"},
			expected: true,
		},
		{
			name:     "short version flag",
			args:     []string{"hindsight", "-v"},
			expected: true,
		},
		{
			name:     "help subcommand",
			args:     []string{"hindsight", "help"},
			expected: true,
		},
		{
			name:     "recall command is not help",
			args:     []string{"hindsight", "recall"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			result := isHelpOrVersion()

			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestCLIRecall tests the recall command output envelope. Stores on the host
// vary, so this checks structure rather than matches.
func TestCLIRecall(t *testing.T) {
	app := newCLIApp(testConfig(t), nil)

	out, err := runApp(t, app, []string{"hindsight", "recall", "--project=" + t.TempDir()})
	if err != nil {
		t.Fatalf("recall command failed: %v", err)
	}

	var output map[string]any
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	for _, key := range []string{
		"conversations", "total_conversations", "available_tools",
		"context_keywords", "processing_time", "tool_results",
	} {
		if _, ok := output[key]; !ok {
			t.Errorf("expected key %q in output", key)
		}
	}
}

// TestCLIScan tests the scan command.
func TestCLIScan(t *testing.T) {
	app := newCLIApp(testConfig(t), nil)

	out, err := runApp(t, app, []string{"hindsight", "scan"})
	if err != nil {
		t.Fatalf("scan command failed: %v", err)
	}

	var output mcp.ScanResponse
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	if output.TotalStores != len(output.Stores) {
		t.Errorf("expected total_stores=%d, got %d", len(output.Stores), output.TotalStores)
	}

	t.Run("unknown tool returns error", func(t *testing.T) {
		_, err := runApp(t, app, []string{"hindsight", "scan", "--tools=bogus"})
		if err == nil {
			t.Error("expected error, got nil")
		}
	})
}

// TestCLIKeywords tests the keywords command against a real project layout.
func TestCLIKeywords(t *testing.T) {
	projectDir := t.TempDir()
	goMod := "module github.com/acme/billing\n\ngo 1.25\n"
	if err := os.WriteFile(filepath.Join(projectDir, "go.mod"), []byte(goMod), 0o644); err != nil {
		t.Fatalf("failed to write go.mod: %v", err)
	}
	if err := os.WriteFile(filepath.Join(projectDir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("failed to write main.go: %v", err)
	}

	app := newCLIApp(testConfig(t), nil)

	out, err := runApp(t, app, []string{"hindsight", "keywords", "--project=" + projectDir})
	if err != nil {
		t.Fatalf("keywords command failed: %v", err)
	}

	var output mcp.KeywordsResponse
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	if output.ProjectRoot != projectDir {
		t.Errorf("expected project_root=%s, got %s", projectDir, output.ProjectRoot)
	}
	if output.Count != len(output.Keywords) {
		t.Errorf("expected count=%d, got %d", len(output.Keywords), output.Count)
	}

	found := false
	for _, kw := range output.Keywords {
		if kw == "billing" {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected keywords to contain %q, got %v", "billing", output.Keywords)
	}
}

// TestCLIStatus tests the status command.
func TestCLIStatus(t *testing.T) {
	cfg := testConfig(t)
	app := newCLIApp(cfg, nil)

	out, err := runApp(t, app, []string{"hindsight", "status", "--project=" + t.TempDir()})
	if err != nil {
		t.Fatalf("status command failed: %v", err)
	}

	var output mcp.StatusResponse
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	if output.Version != "dev" {
		t.Errorf("expected version=dev, got %s", output.Version)
	}
	if output.Config.DefaultLimit != cfg.Processing.DefaultLimit {
		t.Errorf("expected default_limit=%d, got %d", cfg.Processing.DefaultLimit, output.Config.DefaultLimit)
	}
	if output.Config.MaxKeywords != cfg.Context.MaxKeywords {
		t.Errorf("expected max_keywords=%d, got %d", cfg.Context.MaxKeywords, output.Config.MaxKeywords)
	}
}

// TestCLICacheClear tests the cache clear command.
func TestCLICacheClear(t *testing.T) {
	app := newCLIApp(testConfig(t), nil)

	out, err := runApp(t, app, []string{"hindsight", "cache", "clear"})
	if err != nil {
		t.Fatalf("cache clear command failed: %v", err)
	}

	var output mcp.CacheClearResponse
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	if !output.Cleared {
		t.Error("expected cleared=true")
	}
}

// TestCLIRun tests the run command with execution enabled.
func TestCLIRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}

	cfg := testConfig(t)
	cfg.Command.Enabled = true
	app := newCLIApp(cfg, nil)

	// Flags stop at the first positional, so -c belongs to sh.
	out, err := runApp(t, app, []string{"hindsight", "run", "sh", "-c", "echo hi"})
	if err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	var output runner.Result
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}

	if output.ExitCode != 0 {
		t.Errorf("expected exit_code=0, got %d", output.ExitCode)
	}
	if !strings.Contains(output.Stdout, "hi") {
		t.Errorf("expected stdout to contain %q, got %q", "hi", output.Stdout)
	}
}

// TestCLIRunDisabled tests that run refuses when execution is not enabled.
func TestCLIRunDisabled(t *testing.T) {
	app := newCLIApp(testConfig(t), nil)

	t.Run("disabled returns error", func(t *testing.T) {
		_, err := runApp(t, app, []string{"hindsight", "run", "true"})
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("missing command returns error", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Command.Enabled = true
		enabled := newCLIApp(cfg, nil)
		_, err := runApp(t, enabled, []string{"hindsight", "run"})
		if err == nil {
			t.Error("expected error, got nil")
		}
	})
}
