// Package host selects the embedded script runtime that executes resolved
// files.
package host

import (
	"context"
	"fmt"
	"io"

	"github.com/zjrosen/autoload/internal/domain/autoload"
	"github.com/zjrosen/autoload/internal/host/luahost"
	"github.com/zjrosen/autoload/internal/host/starhost"
)

// Kind names a supported runtime.
type Kind string

const (
	KindLua      Kind = "lua"
	KindStarlark Kind = "starlark"
)

// Host executes script files for the loader.
type Host interface {
	Name() string
	// Extension returns the source file extension, including the dot.
	Extension() string
	// Exec executes a resolved file.
	Exec(ctx context.Context, path string) error
	// Run executes an entry script.
	Run(ctx context.Context, path string) error
	// SetResolver wires the script-side import hook to r.
	SetResolver(r autoload.ScriptResolver)
	Close() error
}

var (
	_ Host = (*luahost.Host)(nil)
	_ Host = (*starhost.Host)(nil)
)

// New creates the host for kind. Script output goes to out.
func New(kind Kind, out io.Writer) (Host, error) {
	switch kind {
	case KindLua, "":
		return luahost.New(luahost.WithOutput(out)), nil
	case KindStarlark:
		return starhost.New(starhost.WithOutput(out)), nil
	default:
		return nil, fmt.Errorf("unsupported runtime %q (must be \"lua\" or \"starlark\")", kind)
	}
}
