package autoload

import "strings"

// Registration represents the winning version of a namespace.
type Registration struct {
	namespace string // e.g., `Acme\Geo\`
	version   string // e.g., "1.2.0"
	baseDir   string // e.g., "/srv/lib/geo/"
}

// NewRegistration creates a registration from raw inputs, normalizing the
// namespace and base directory.
func NewRegistration(namespace, version, baseDir string) Registration {
	return Registration{
		namespace: NormalizeNamespace(namespace),
		version:   version,
		baseDir:   NormalizeDirectory(baseDir),
	}
}

// Namespace returns the normalized namespace prefix
func (r Registration) Namespace() string {
	return r.namespace
}

// Version returns the registered version
func (r Registration) Version() string {
	return r.version
}

// BaseDir returns the normalized base directory, including its trailing
// separator.
func (r Registration) BaseDir() string {
	return r.baseDir
}

// IsZero reports whether r is the zero Registration.
func (r Registration) IsZero() bool {
	return r.namespace == ""
}

// PathFor maps a fully-qualified symbol onto its candidate file path.
// Returns false when the symbol does not start with the namespace.
//
//	NewRegistration("Foo", "1.0.0", "/base").PathFor(`Foo\Bar\Baz`, ".lua")
//	// "/base/Bar/Baz.lua", true
func (r Registration) PathFor(symbol, ext string) (string, bool) {
	if !strings.HasPrefix(symbol, r.namespace) {
		return "", false
	}
	relative := symbol[len(r.namespace):]
	return r.baseDir + symbolPath(relative) + ext, true
}
