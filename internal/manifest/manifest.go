// Package manifest reads declarative namespace registrations from YAML.
//
// A manifest lists the namespaces a bundle provides:
//
//	autoload:
//	  - namespace: 'Acme\Geo'
//	    version: 1.2.0
//	    dir: lib/geo
//
// Relative directories are resolved against the directory that holds the
// manifest file.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/autoload/internal/log"
)

// Manifest errors
var (
	ErrEmptyNamespace = errors.New("namespace is required")
	ErrEmptyVersion   = errors.New("version is required")
	ErrEmptyDir       = errors.New("dir is required")
)

// File is the root structure of a manifest file.
type File struct {
	Entries []Entry `yaml:"autoload"`
}

// Entry is a single namespace registration.
type Entry struct {
	Namespace string `yaml:"namespace" json:"namespace"`
	Version   string `yaml:"version" json:"version"`
	Dir       string `yaml:"dir" json:"dir"`
	// Source is the manifest file the entry came from. Empty for entries
	// built from flags or config.
	Source string `yaml:"-" json:"source,omitempty"`
}

// Validate checks that all fields are present.
func (e Entry) Validate() error {
	switch {
	case strings.Trim(e.Namespace, `\`) == "":
		return ErrEmptyNamespace
	case strings.TrimSpace(e.Version) == "":
		return ErrEmptyVersion
	case strings.TrimSpace(e.Dir) == "":
		return ErrEmptyDir
	}
	return nil
}

// Load parses the manifest at path.
func Load(path string) ([]Entry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	entries, err := Parse(content, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range entries {
		entries[i].Source = path
	}
	return entries, nil
}

// Parse decodes manifest content. Relative directories are joined onto
// baseDir.
func Parse(content []byte, baseDir string) ([]Entry, error) {
	var file File
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(file.Entries))
	for i, e := range file.Entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, e.Namespace, err)
		}
		e.Dir = resolveDir(e.Dir, baseDir)
		entries = append(entries, e)
	}
	return entries, nil
}

// LoadDir loads every *.yaml and *.yml manifest in dir, in file name order.
// A missing directory yields no entries. Invalid files are logged and
// skipped.
func LoadDir(dir string) ([]Entry, error) {
	if dir == "" {
		return nil, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	paths, err := Files(dir)
	if err != nil {
		return nil, err
	}

	var all []Entry
	for _, path := range paths {
		entries, err := Load(path)
		if err != nil {
			log.Warn(log.CatManifest, "skipping invalid manifest", "path", path, "error", err.Error())
			continue
		}
		all = append(all, entries...)
	}
	return all, nil
}

// Files returns the manifest files in dir, sorted by name.
func Files(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var paths []string
	for _, d := range dirEntries {
		if d.IsDir() || !IsManifest(d.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, d.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// IsManifest reports whether name has a manifest extension.
func IsManifest(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

// UserManifestDir returns ~/.autoload/manifests.
// Returns empty string if home directory cannot be determined.
func UserManifestDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".autoload", "manifests")
}

// ParseFlag parses the compact form used on the command line:
//
//	Acme\Geo@1.2.0=lib/geo
func ParseFlag(value string) (Entry, error) {
	head, dir, ok := strings.Cut(value, "=")
	if !ok {
		return Entry{}, fmt.Errorf("registration %q: expected NAMESPACE@VERSION=DIR", value)
	}
	at := strings.LastIndex(head, "@")
	if at < 0 {
		return Entry{}, fmt.Errorf("registration %q: expected NAMESPACE@VERSION=DIR", value)
	}
	e := Entry{
		Namespace: strings.TrimSpace(head[:at]),
		Version:   strings.TrimSpace(head[at+1:]),
		Dir:       strings.TrimSpace(dir),
	}
	if err := e.Validate(); err != nil {
		return Entry{}, fmt.Errorf("registration %q: %w", value, err)
	}
	return e, nil
}

func resolveDir(dir, baseDir string) string {
	if strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, dir[2:])
		}
	}
	if filepath.IsAbs(dir) || baseDir == "" {
		return dir
	}
	return filepath.Join(baseDir, dir)
}
