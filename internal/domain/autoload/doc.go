// Package autoload implements the domain layer of the versioned namespace
// resolver.
//
// The package is pure Go. Its one import outside the standard library is
// internal/version, and it knows nothing about files, YAML or script runtimes.
//
// # Core Types
//
// Registration binds a normalized namespace prefix (e.g. `Acme\Geo\`) to a
// version string and a base directory. It is an immutable value.
//
// Registry is the caller-owned table of registrations. It holds at most one
// Registration per namespace. A namespace is replaced only when a strictly
// greater version is registered, so the first writer wins ties. Each entry
// carries a Resolver that maps symbols under the namespace onto files below
// the base directory.
//
// Loader is the collaborator that performs the file-existence probe and the
// actual load. internal/loader provides it on top of the script hosts in
// internal/host.
//
// # Resolution
//
// Resolve walks the installed resolvers in the order their namespaces were
// first registered. A resolver declines when the symbol is outside its
// namespace or when no file exists at the candidate path. The first resolver
// that loads a file ends the walk. A file that vanished before it could load
// (ErrFileMissing) is a decline. Other load failures are returned to the
// caller unchanged apart from wrapping.
package autoload
