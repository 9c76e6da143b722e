// Package cli holds the terminal-facing support code: directory layout,
// structured output, the log capture buffer and the live status frame.
package cli

import (
	"os"
	"path/filepath"
)

// DefaultBaseDir is the per-user state directory name.
const DefaultBaseDir = ".guri"

// Paths resolves the assistant's on-disk layout under the user's home.
type Paths struct {
	HomeDir string
}

func NewPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{HomeDir: home}, nil
}

// BaseDir returns ~/.guri.
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// SettingsFile returns the persisted settings path.
func (p *Paths) SettingsFile() string {
	return filepath.Join(p.BaseDir(), "settings.yaml")
}

// MemoryDir returns the long-term memory database directory.
func (p *Paths) MemoryDir() string {
	return filepath.Join(p.BaseDir(), "memory")
}

// LogFile returns the session log path.
func (p *Paths) LogFile() string {
	return filepath.Join(p.BaseDir(), "guri.log")
}

// EnsureDirs creates the directory layout.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.BaseDir(), p.MemoryDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
