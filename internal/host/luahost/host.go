// Package luahost runs Lua source files through github.com/Shopify/go-lua.
//
// Scripts see two extra globals:
//
//	import(symbol)          -- resolves and loads symbol, returns true/false
//	autoload_version(ns)    -- registered version of ns, or nil
//
// A single lua.State is shared by every file the host executes, so globals
// defined by one file are visible to the next. The host is not safe for
// concurrent use.
package luahost

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/zjrosen/autoload/internal/domain/autoload"
	"github.com/zjrosen/autoload/internal/log"
)

// Extension is the source file extension handled by this host.
const Extension = ".lua"

// Host executes Lua files in a shared state.
type Host struct {
	state    *lua.State
	resolver autoload.ScriptResolver
	out      io.Writer
	ctx      context.Context // context of the Exec in progress, used by import
}

// Option configures a Host.
type Option func(*Host)

// WithOutput redirects the Lua print function.
func WithOutput(w io.Writer) Option {
	return func(h *Host) { h.out = w }
}

// New creates a Lua host with the standard libraries opened.
func New(opts ...Option) *Host {
	h := &Host{
		state: lua.NewState(),
		out:   os.Stdout,
		ctx:   context.Background(),
	}
	for _, opt := range opts {
		opt(h)
	}

	lua.OpenLibraries(h.state)
	h.state.Register("print", h.print)
	h.state.Register("import", h.importSymbol)
	h.state.Register("autoload_version", h.version)
	return h
}

// Name returns the runtime name.
func (h *Host) Name() string { return "lua" }

// Extension returns ".lua".
func (h *Host) Extension() string { return Extension }

// SetResolver wires import() to r.
func (h *Host) SetResolver(r autoload.ScriptResolver) {
	h.resolver = r
}

// Exec runs the file at path in the shared state.
func (h *Host) Exec(ctx context.Context, path string) error {
	prev := h.ctx
	h.ctx = ctx
	defer func() { h.ctx = prev }()

	log.Debug(log.CatRuntime, "exec lua file", "path", path)
	if err := lua.DoFile(h.state, path); err != nil {
		return fmt.Errorf("lua %s: %w", path, err)
	}
	return nil
}

// Run executes an entry script. It behaves like Exec.
func (h *Host) Run(ctx context.Context, path string) error {
	return h.Exec(ctx, path)
}

// Global returns the string form of a global variable, for inspection after
// a script has run.
func (h *Host) Global(name string) (string, bool) {
	h.state.Global(name)
	defer h.state.Pop(1)
	if h.state.IsNil(-1) {
		return "", false
	}
	return h.state.ToString(-1)
}

// Close releases the host. The Lua state is garbage collected.
func (h *Host) Close() error {
	h.resolver = nil
	return nil
}

func (h *Host) print(l *lua.State) int {
	n := l.Top()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if s, ok := l.ToString(i); ok {
			parts = append(parts, s)
			continue
		}
		switch {
		case l.IsNil(i):
			parts = append(parts, "nil")
		case l.IsBoolean(i):
			parts = append(parts, fmt.Sprint(l.ToBoolean(i)))
		default:
			parts = append(parts, lua.TypeNameOf(l, i))
		}
	}
	_, _ = fmt.Fprintln(h.out, strings.Join(parts, "\t"))
	return 0
}

func (h *Host) importSymbol(l *lua.State) int {
	symbol := lua.CheckString(l, 1)
	if h.resolver == nil {
		l.PushBoolean(false)
		return 1
	}

	res, err := h.resolver.Resolve(h.ctx, symbol)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
		return 0
	}
	l.PushBoolean(res.Loaded)
	return 1
}

func (h *Host) version(l *lua.State) int {
	ns := lua.CheckString(l, 1)
	if h.resolver == nil {
		l.PushNil()
		return 1
	}
	if v, ok := h.resolver.GetVersion(ns); ok {
		l.PushString(v)
		return 1
	}
	l.PushNil()
	return 1
}
