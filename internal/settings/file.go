package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/welleazyhts/CRM-p360-frontend-sub007/internal/dedupe"
)

// fileDocument is the on-disk layout of the settings file.
type fileDocument struct {
	StrictMode    bool                 `toml:"strict_mode"`
	EnabledFields map[string]bool      `toml:"enabled_fields"`
	CustomFields  []dedupe.CustomField `toml:"custom_fields"`
}

// FileRepository stores settings in a TOML file.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository returns a repository backed by the file at path.
// The file is created on the first Save.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// Path returns the settings file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads and decodes the settings file.
// Returns ErrNotFound if the file does not exist.
func (r *FileRepository) Load(_ context.Context) (dedupe.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return dedupe.Config{}, ErrNotFound
		}
		return dedupe.Config{}, fmt.Errorf("read settings file '%s': %w", r.path, err)
	}

	var doc fileDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return dedupe.Config{}, fmt.Errorf("parse settings file '%s': %w", r.path, err)
	}

	cfg := dedupe.Config{
		EnabledFields: make(map[dedupe.FieldKey]bool, len(doc.EnabledFields)),
		CustomFields:  doc.CustomFields,
		StrictMode:    doc.StrictMode,
	}
	for k, v := range doc.EnabledFields {
		cfg.EnabledFields[dedupe.FieldKey(k)] = v
	}
	return cfg, nil
}

// Save validates cfg and writes it atomically (temp file + rename).
func (r *FileRepository) Save(_ context.Context, cfg dedupe.Config) error {
	cfg, err := Prepare(cfg)
	if err != nil {
		return err
	}

	doc := fileDocument{
		StrictMode:    cfg.StrictMode,
		EnabledFields: make(map[string]bool, len(cfg.EnabledFields)),
		CustomFields:  cfg.CustomFields,
	}
	for k, v := range cfg.EnabledFields {
		doc.EnabledFields[string(k)] = v
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".dedupe-settings-*")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
