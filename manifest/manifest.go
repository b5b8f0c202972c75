// Package manifest handles consttab.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest represents a consttab.toml project configuration.
type Manifest struct {
	Project  Project  `toml:"project"`
	Generate Generate `toml:"generate"`

	// Dir is the directory containing the consttab.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// Generate configures where tagset sources live and how generated files
// are named and stamped.
type Generate struct {
	Dirs        []string `toml:"dirs"`
	Suffix      string   `toml:"suffix"`
	Fingerprint bool     `toml:"fingerprint"`
	Check       bool     `toml:"check"`
}

// Load parses a consttab.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "consttab.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a consttab.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "consttab.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Default returns the manifest used when no consttab.toml exists: sources
// in dir itself, the standard output suffix, and no header stamping.
func Default(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m := &Manifest{Dir: abs}
	m.applyDefaults()
	return m, nil
}

func (m *Manifest) applyDefaults() {
	if len(m.Generate.Dirs) == 0 {
		m.Generate.Dirs = []string{"."}
	}
	if m.Generate.Suffix == "" {
		m.Generate.Suffix = "_tags.go"
	}
}

// GenerateDirPaths returns absolute paths for the configured generate
// directories.
func (m *Manifest) GenerateDirPaths() []string {
	var paths []string
	for _, d := range m.Generate.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// OutputFor returns the generated file path for a tagset source file,
// replacing its .tags extension with the configured suffix.
func (m *Manifest) OutputFor(src string) string {
	base := strings.TrimSuffix(filepath.Base(src), ".tags")
	return filepath.Join(filepath.Dir(src), base+m.Generate.Suffix)
}

// Sources returns every .tags file in the configured generate directories,
// sorted so runs are deterministic.
func (m *Manifest) Sources() ([]string, error) {
	var out []string
	for _, dir := range m.GenerateDirPaths() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".tags") {
				continue
			}
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
