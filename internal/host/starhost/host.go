// Package starhost runs Starlark source files through go.starlark.net.
//
// The thread's Load hook is the resolution callback: a script that does
//
//	load("Acme\\Geo\\Point", "Point")
//
// asks the resolver for the symbol, which in turn executes
// <base>/Point.star through this host. Module globals are cached per file
// path, so every loader of the same symbol observes the same values.
package starhost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/zjrosen/autoload/internal/domain/autoload"
	"github.com/zjrosen/autoload/internal/log"
)

// Extension is the source file extension handled by this host.
const Extension = ".star"

// Host errors
var (
	ErrNotFound = errors.New("not found")
	ErrCycle    = errors.New("cycle in load graph")
)

// Host executes Starlark files and caches their globals.
type Host struct {
	resolver    autoload.ScriptResolver
	out         io.Writer
	modules     map[string]starlark.StringDict
	predeclared starlark.StringDict
}

// Option configures a Host.
type Option func(*Host)

// WithOutput redirects the Starlark print builtin.
func WithOutput(w io.Writer) Option {
	return func(h *Host) { h.out = w }
}

// New creates a Starlark host.
func New(opts ...Option) *Host {
	h := &Host{
		out:     os.Stdout,
		modules: make(map[string]starlark.StringDict),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.predeclared = starlark.StringDict{
		"autoload_version": starlark.NewBuiltin("autoload_version", h.version),
	}
	return h
}

// Name returns the runtime name.
func (h *Host) Name() string { return "starlark" }

// Extension returns ".star".
func (h *Host) Extension() string { return Extension }

// SetResolver wires load() to r.
func (h *Host) SetResolver(r autoload.ScriptResolver) {
	h.resolver = r
}

// Exec runs the file at path and caches its globals.
func (h *Host) Exec(ctx context.Context, path string) error {
	_, err := h.exec(ctx, path)
	return err
}

// Run executes an entry script.
func (h *Host) Run(ctx context.Context, path string) error {
	return h.Exec(ctx, path)
}

// Module returns the cached globals of a previously executed file.
func (h *Host) Module(path string) (starlark.StringDict, bool) {
	g, ok := h.modules[path]
	return g, ok
}

// Close drops cached modules.
func (h *Host) Close() error {
	h.modules = make(map[string]starlark.StringDict)
	h.resolver = nil
	return nil
}

func (h *Host) exec(ctx context.Context, path string) (starlark.StringDict, error) {
	thread := h.newThread(ctx, path)

	log.Debug(log.CatRuntime, "exec starlark file", "path", path)
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, path, nil, h.predeclared)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("starlark %s: %s", path, evalErr.Backtrace())
		}
		return nil, fmt.Errorf("starlark %s: %w", path, err)
	}
	globals.Freeze()
	h.modules[path] = globals
	return globals, nil
}

func (h *Host) newThread(ctx context.Context, name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			_, _ = fmt.Fprintln(h.out, msg)
		},
	}
	thread.Load = func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
		return h.load(ctx, module)
	}
	return thread
}

// load resolves module through the registry and returns the globals of the
// file that handled it.
func (h *Host) load(ctx context.Context, module string) (starlark.StringDict, error) {
	if h.resolver == nil {
		return nil, fmt.Errorf("cannot load %s: %w", module, ErrNotFound)
	}
	res, err := h.resolver.Resolve(ctx, module)
	if err != nil {
		return nil, err
	}
	if !res.Loaded {
		return nil, fmt.Errorf("cannot load %s: %w", module, ErrNotFound)
	}
	globals, ok := h.modules[res.Path]
	if !ok {
		// The file is marked loaded but has not finished executing.
		return nil, fmt.Errorf("cannot load %s: %w", module, ErrCycle)
	}
	return globals, nil
}

func (h *Host) version(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var ns string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &ns); err != nil {
		return nil, err
	}
	if h.resolver == nil {
		return starlark.None, nil
	}
	if v, ok := h.resolver.GetVersion(ns); ok {
		return starlark.String(v), nil
	}
	return starlark.None, nil
}
