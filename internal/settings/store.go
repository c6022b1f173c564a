// Package settings persists the user's filter selections and credentials between runs.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings is the remembered state of the CLI. Every field is optional.
type Settings struct {
	Source          string   `yaml:"source,omitempty"`
	Workspace       string   `yaml:"workspace,omitempty"`
	Repos           []string `yaml:"repos,omitempty"`
	States          []string `yaml:"states,omitempty"`
	Nickname        string   `yaml:"nickname,omitempty"`
	MaxDaysOpen     int      `yaml:"max_days_open,omitempty"`
	ExcludeWeekends bool     `yaml:"exclude_weekends,omitempty"`
	Username        string   `yaml:"username,omitempty"`
	AppPassword     string   `yaml:"app_password,omitempty"`
}

// Repository loads and saves Settings.
type Repository interface {
	Load() (Settings, error)
	Save(Settings) error
}

// FileRepository stores Settings as a YAML file.
type FileRepository struct {
	path string
}

// NewFileRepository returns a repository backed by the file at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path is the file the repository reads and writes.
func (r *FileRepository) Path() string { return r.path }

// Load reads the settings file. A missing file yields zero Settings.
func (r *FileRepository) Load() (Settings, error) {
	var s Settings
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse settings %s: %w", r.path, err)
	}
	return s, nil
}

// Save writes the settings file, readable only by the current user since it may hold credentials.
func (r *FileRepository) Save(s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Masked returns a copy of s that is safe to print.
func (s Settings) Masked() Settings {
	if s.AppPassword != "" {
		s.AppPassword = "********"
	}
	return s
}
