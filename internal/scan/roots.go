package scan

import (
	"os"
	"path/filepath"
)

// Root resolution is deliberately pluggable: every scanner exposes a Roots
// field so tests and embedders can point it at fixture trees. The defaults
// below cover the standard install locations; they make no claim to finding
// every possible installation (config extra_roots exists for the rest).

// cursorRoots returns the default Cursor storage roots for this platform.
// os.UserConfigDir resolves to ~/Library/Application Support on macOS,
// ~/.config on Linux and %AppData% on Windows, which matches where the
// VS Code family keeps its state.
func cursorRoots() []string {
	return vscodeFamilyRoots("Cursor")
}

// windsurfRoots returns the default Windsurf storage roots. Windsurf is a
// VS Code fork like Cursor but ships an extra Codeium-era home directory.
func windsurfRoots() []string {
	roots := vscodeFamilyRoots("Windsurf")
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".codeium", "windsurf"))
	}
	return roots
}

// claudeRoots returns the default Claude Code session roots. Sessions live
// one JSONL file per conversation under projects/<project-dir>/.
func claudeRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{filepath.Join(home, ".claude", "projects")}
}

func vscodeFamilyRoots(product string) []string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return nil
	}
	userDir := filepath.Join(cfgDir, product, "User")
	return []string{
		filepath.Join(userDir, "workspaceStorage"),
		filepath.Join(userDir, "globalStorage"),
	}
}

// existingDirs filters out roots that do not exist, quietly: a tool that is
// not installed is an everyday case, not an error.
func existingDirs(roots []string) []string {
	var out []string
	for _, r := range roots {
		if r == "" {
			continue
		}
		if info, err := os.Stat(r); err == nil && info.IsDir() {
			out = append(out, r)
		}
	}
	return out
}
