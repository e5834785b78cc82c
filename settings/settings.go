// Package settings persists viewer preferences as a small JSON file.
// A missing file is normal (first run) and loads as defaults; a
// corrupt file also loads as defaults but reports the parse error so
// the caller can tell the user.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MaxRecentFiles caps the recent file list.
const MaxRecentFiles = 10

// Settings mirrors the on-disk JSON document. Colors are RGBA in the
// 0..1 range.
type Settings struct {
	ThemeMode      string     `json:"theme_mode"`
	AuthorName     string     `json:"author_name"`
	PenColor       [4]float64 `json:"pen_color"`
	PenWidth       float64    `json:"pen_width"`
	HighlightColor [4]float64 `json:"highlight_color"`
	ZoomPercent    float64    `json:"zoom_percent"`
	RecentFiles    []string   `json:"recent_files"`
	LastFile       string     `json:"last_file"`
}

// Defaults returns the first-run settings.
func Defaults() Settings {
	return Settings{
		ThemeMode:      "light",
		PenColor:       [4]float64{0, 0, 0, 1},
		PenWidth:       2.0,
		HighlightColor: [4]float64{1, 1, 0, 0.4},
		ZoomPercent:    100,
	}
}

// Load reads the settings at path. A missing file returns defaults
// with a nil error. A file that cannot be read or parsed returns
// defaults together with the error, so the viewer always starts.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Defaults(), fmt.Errorf("settings: read %s: %w", path, err)
	}
	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("settings: parse %s: %w", path, err)
	}
	s.normalize()
	return s, nil
}

// Save writes the settings to path atomically: the bytes land in a
// temp file in the same directory and are renamed over the target.
func (s Settings) Save(path string) error {
	s.normalize()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	data = append(data, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("settings: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("settings: create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("settings: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("settings: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("settings: replace %s: %w", path, err)
	}
	return nil
}

// Touch records file as the most recently opened document: it moves
// to the front of RecentFiles (deduplicated, capped) and becomes
// LastFile.
func (s *Settings) Touch(file string) {
	if file == "" {
		return
	}
	recents := make([]string, 0, len(s.RecentFiles)+1)
	recents = append(recents, file)
	for _, f := range s.RecentFiles {
		if f != file {
			recents = append(recents, f)
		}
	}
	if len(recents) > MaxRecentFiles {
		recents = recents[:MaxRecentFiles]
	}
	s.RecentFiles = recents
	s.LastFile = file
}

// normalize repairs values a hand-edited file may carry.
func (s *Settings) normalize() {
	if s.ThemeMode == "" {
		s.ThemeMode = "light"
	}
	if s.PenWidth <= 0 {
		s.PenWidth = 2.0
	}
	if s.ZoomPercent <= 0 {
		s.ZoomPercent = 100
	}
	kept := s.RecentFiles[:0]
	for _, f := range s.RecentFiles {
		if f != "" {
			kept = append(kept, f)
		}
	}
	if len(kept) > MaxRecentFiles {
		kept = kept[:MaxRecentFiles]
	}
	s.RecentFiles = kept
}
