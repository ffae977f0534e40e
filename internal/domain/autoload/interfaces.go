package autoload

import "context"

// Loader performs the file-level work behind a resolver: probing for the
// candidate file and handing it to the script runtime.
type Loader interface {
	// Extension returns the source file extension of the runtime, including
	// the leading dot (e.g. ".lua").
	Extension() string

	// Exists reports whether a regular file exists at path.
	Exists(ctx context.Context, path string) bool

	// Load executes the file at path. Loading the same path again after a
	// successful load must be a no-op. A file that no longer exists yields an
	// error wrapping ErrFileMissing.
	Load(ctx context.Context, path string) error
}

// RegistryProvider defines read-only access to the registration table.
type RegistryProvider interface {
	// IsRegistered reports whether the normalized namespace has an entry.
	IsRegistered(namespace string) bool

	// GetVersion returns the stored version for the normalized namespace.
	// The second result is false when the namespace is not registered.
	GetVersion(namespace string) (string, bool)

	// GetRegistered returns a snapshot mapping each namespace to its version.
	GetRegistered() map[string]string

	// List returns all registrations sorted by namespace.
	List() []Registration
}

// SymbolResolver resolves a fully-qualified symbol by loading its file.
// Runtime adapters call it when a script asks for a symbol it cannot find.
type SymbolResolver interface {
	Resolve(ctx context.Context, symbol string) (Resolution, error)
}

// ScriptResolver is the registry surface exposed to scripts: symbol
// resolution plus version lookup.
type ScriptResolver interface {
	SymbolResolver
	GetVersion(namespace string) (string, bool)
}

// Compile-time checks that Registry implements the public interfaces.
var (
	_ RegistryProvider = (*Registry)(nil)
	_ SymbolResolver   = (*Registry)(nil)
	_ ScriptResolver   = (*Registry)(nil)
)
