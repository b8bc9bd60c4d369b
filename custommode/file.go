package custommode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SaveFile writes a mode to path as indented JSON, creating parent
// directories as needed.
func SaveFile(m *Mode, path string) error {
	if err := m.Validate(); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LoadFile reads a mode from a JSON file. The loaded mode is validated so
// hand-edited files fail here rather than mid-transfer.
func LoadFile(path string) (*Mode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := NewMode("")
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// ListFiles returns the mode files in dir, sorted by name. A missing
// directory is an empty list, not an error.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, entry.Name())
	}

	sort.Strings(files)
	return files, nil
}

// FileName derives a filesystem-safe file name from the mode's name.
func FileName(m *Mode) string {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		name = "untitled"
	}
	return sanitizeFileName(name) + ".json"
}

func sanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, " ", "-")
	for _, c := range []string{"/", "\\", ":"} {
		name = strings.ReplaceAll(name, c, "-")
	}
	for _, c := range []string{"*", "?", "\"", "<", ">", "|"} {
		name = strings.ReplaceAll(name, c, "")
	}
	return strings.ToLower(name)
}
