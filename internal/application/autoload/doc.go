// Package autoload implements the application layer for the namespace
// autoloader.
//
// It wires the domain registry (internal/domain/autoload) to its
// infrastructure:
//   - a script host (Lua or Starlark) that executes resolved files
//   - a FileLoader with a probe cache and load-once bookkeeping
//   - YAML manifests that declare registrations
//   - a pub/sub broker that fans out registry events
//   - OpenTelemetry spans around registration, resolution and runs
//
// # Service
//
// Service is the main entry point. Apply registers everything a set of
// Sources declares, Reload re-applies the last Sources after flushing the
// probe cache, and Resolve, Candidate and Run drive the runtime.
//
// # Import Aliasing
//
// This package has the same name as the domain package. Import the domain
// package under an alias when both are needed:
//
//	import (
//	    domain "github.com/zjrosen/autoload/internal/domain/autoload"
//	    "github.com/zjrosen/autoload/internal/application/autoload"
//	)
package autoload
