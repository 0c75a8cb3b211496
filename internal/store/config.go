package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// GlobalConfig is ~/.noteline/config.json. Comments and trailing commas are
// accepted (JSONC).
type GlobalConfig struct {
	// DBPath overrides the discovered workspace database.
	DBPath string `json:"dbPath,omitempty"`

	// CurrentSubject is the subject id used when --subject is not given.
	CurrentSubject int64 `json:"currentSubject,omitempty"`

	Autosave *AutosaveConfig `json:"autosave,omitempty"`
	Undo     *UndoConfig     `json:"undo,omitempty"`
	Log      *LogConfig      `json:"log,omitempty"`
}

type AutosaveConfig struct {
	Idle Duration `json:"idle,omitempty"`
	Tick Duration `json:"tick,omitempty"`
}

type UndoConfig struct {
	Depth int `json:"depth,omitempty"`
}

type LogConfig struct {
	Level string `json:"level,omitempty"`
	// File enables a rotating log file in addition to stderr.
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"maxSizeMb,omitempty"`
	MaxBackups int    `json:"maxBackups,omitempty"`
}

// Duration reads "2s"-style strings or a plain number of milliseconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

func (c *GlobalConfig) AutosaveIdle() time.Duration {
	if c == nil || c.Autosave == nil {
		return 0
	}
	return time.Duration(c.Autosave.Idle)
}

func (c *GlobalConfig) AutosaveTick() time.Duration {
	if c == nil || c.Autosave == nil {
		return 0
	}
	return time.Duration(c.Autosave.Tick)
}

func (c *GlobalConfig) UndoDepth() int {
	if c == nil || c.Undo == nil {
		return 0
	}
	return c.Undo.Depth
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.noteline).
	if v := strings.TrimSpace(os.Getenv("NOTELINE_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func LoadConfig() (*GlobalConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}
	std, err := hujson.Standardize(b)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid JSONC: %w", path, err)
	}
	var cfg GlobalConfig
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func SaveConfig(cfg *GlobalConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Best-effort safety net: keep a copy of the previous config to make recovery from
	// accidental overwrites easier. Ignore errors to avoid blocking normal usage.
	if prev, err := os.ReadFile(path); err == nil && len(prev) > 0 {
		_ = atomic.WriteFile(path+".bak", bytes.NewReader(prev))
	}

	if err := atomic.WriteFile(path, bytes.NewReader(b)); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	// atomic.WriteFile doesn't set permissions for new files
	return os.Chmod(path, 0o600)
}
