// Package settings holds the persisted user configuration. Reads are
// cheap snapshots; every write goes through one setter that also saves
// to disk, so the file and the in-memory state never diverge.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"
)

// Engine selects which synthesis backend speaks.
type Engine string

const (
	EnginePrimary   Engine = "primary"
	EngineSecondary Engine = "secondary"
	EngineBridge    Engine = "local_bridge"
)

// ChatCredentials configures the chat relay connection.
type ChatCredentials struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Settings is the full persisted configuration.
type Settings struct {
	AudioDevice string `yaml:"audio_device"`
	Window      string `yaml:"window"`
	UseImage    bool   `yaml:"use_image"`
	IsPrivate   bool   `yaml:"is_private"`

	ShowResponseInNewWindow   bool `yaml:"show_response_in_new_window"`
	ResponseDisplayDurationMS int  `yaml:"response_display_duration_ms"`

	TTSEngine  Engine `yaml:"tts_engine"`
	TTSVoiceID int    `yaml:"tts_voice_id"`

	DisableThinking bool   `yaml:"disable_thinking"`
	UserName        string `yaml:"user_name"`

	EnableAutoCommentary bool `yaml:"enable_auto_commentary"`
	AutoCommentaryMinS   int  `yaml:"auto_commentary_min_s"`
	AutoCommentaryMaxS   int  `yaml:"auto_commentary_max_s"`

	CreateBlogPost bool `yaml:"create_blog_post"`

	Chat ChatCredentials `yaml:"chat_credentials"`
}

// Defaults returns the settings a fresh install starts with.
func Defaults() Settings {
	return Settings{
		ResponseDisplayDurationMS: 8000,
		TTSEngine:                 EngineBridge,
		TTSVoiceID:                3,
		EnableAutoCommentary:      true,
		AutoCommentaryMinS:        300,
		AutoCommentaryMaxS:        600,
	}
}

// Store guards the settings and persists mutations.
type Store struct {
	path string

	mu  sync.RWMutex
	cur Settings
}

// Open loads settings from path, falling back to defaults when the file
// does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, cur: Defaults()}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s.cur); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return s, nil
}

// Get returns a snapshot of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Set applies fn to the settings under the lock and persists the
// result. This is the only mutation path.
func (s *Store) Set(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur
	fn(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.cur = next
	return nil
}

func (s *Store) write(cfg Settings) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("settings: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("settings: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("settings: rename: %w", err)
	}
	return nil
}
