package luahost

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/autoload/internal/domain/autoload"
	"github.com/zjrosen/autoload/internal/loader"
)

func writeScript(t *testing.T, path, src string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

// newWired builds a host, loader and registry wired the same way the
// application service does.
func newWired(t *testing.T, out *bytes.Buffer) (*Host, *autoload.Registry) {
	t.Helper()
	h := New(WithOutput(out))
	reg, err := autoload.NewRegistry(loader.New(h, loader.DefaultConfig()))
	require.NoError(t, err)
	h.SetResolver(reg)
	t.Cleanup(func() { _ = h.Close() })
	return h, reg
}

func TestHost_Extension(t *testing.T) {
	h := New()
	require.Equal(t, "lua", h.Name())
	require.Equal(t, ".lua", h.Extension())
}

func TestHost_ImportLoadsRegisteredFile(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, filepath.Join(dir, "geo", "Point.lua"), `Point = { x = 3 }`)
	main := filepath.Join(dir, "main.lua")
	writeScript(t, main, `
assert(import("Acme\\Geo\\Point"))
result = Point.x * 2
`)

	var out bytes.Buffer
	h, reg := newWired(t, &out)
	require.True(t, reg.Register(`Acme\Geo`, "1.0.0", filepath.Join(dir, "geo")))

	require.NoError(t, h.Run(context.Background(), main))

	got, ok := h.Global("result")
	require.True(t, ok)
	require.Equal(t, "6", got)
}

func TestHost_ImportUnknownSymbolReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.lua")
	writeScript(t, main, `found = tostring(import("Nope\\Thing"))`)

	var out bytes.Buffer
	h, _ := newWired(t, &out)

	require.NoError(t, h.Run(context.Background(), main))
	got, ok := h.Global("found")
	require.True(t, ok)
	require.Equal(t, "false", got)
}

func TestHost_ImportRunsFileOnce(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, filepath.Join(dir, "lib", "Counter.lua"), `count = (count or 0) + 1`)
	main := filepath.Join(dir, "main.lua")
	writeScript(t, main, `
import("App\\Counter")
import("App\\Counter")
`)

	var out bytes.Buffer
	h, reg := newWired(t, &out)
	reg.Register("App", "1.0.0", filepath.Join(dir, "lib"))

	require.NoError(t, h.Run(context.Background(), main))
	got, _ := h.Global("count")
	require.Equal(t, "1", got)
}

func TestHost_ImportPropagatesLoadError(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, filepath.Join(dir, "lib", "Broken.lua"), `error("broken module")`)
	main := filepath.Join(dir, "main.lua")
	writeScript(t, main, `import("App\\Broken")`)

	var out bytes.Buffer
	h, reg := newWired(t, &out)
	reg.Register("App", "1.0.0", filepath.Join(dir, "lib"))

	err := h.Run(context.Background(), main)
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken module")
}

func TestHost_AutoloadVersion(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.lua")
	writeScript(t, main, `
known = autoload_version("Acme\\Geo")
unknown = tostring(autoload_version("Other"))
`)

	var out bytes.Buffer
	h, reg := newWired(t, &out)
	reg.Register(`Acme\Geo\`, "1.2.0", dir)

	require.NoError(t, h.Run(context.Background(), main))
	known, _ := h.Global("known")
	unknown, _ := h.Global("unknown")
	require.Equal(t, "1.2.0", known)
	require.Equal(t, "nil", unknown)
}

func TestHost_PrintWritesToOutput(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.lua")
	writeScript(t, main, `print("hello", 1, nil, true)`)

	var out bytes.Buffer
	h := New(WithOutput(&out))

	require.NoError(t, h.Run(context.Background(), main))
	require.Equal(t, "hello\t1\tnil\ttrue\n", out.String())
}

func TestHost_WithoutResolver(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.lua")
	writeScript(t, main, `found = tostring(import("A\\B"))`)

	h := New(WithOutput(&bytes.Buffer{}))
	require.NoError(t, h.Run(context.Background(), main))
	got, _ := h.Global("found")
	require.Equal(t, "false", got)
}

func TestHost_MissingFile(t *testing.T) {
	h := New(WithOutput(&bytes.Buffer{}))
	err := h.Exec(context.Background(), filepath.Join(t.TempDir(), "missing.lua"))
	require.Error(t, err)
}

func TestHost_GlobalUnset(t *testing.T) {
	h := New()
	_, ok := h.Global("never_set")
	require.False(t, ok)
}
