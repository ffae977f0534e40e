package autoload

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	domain "github.com/zjrosen/autoload/internal/domain/autoload"
	"github.com/zjrosen/autoload/internal/host"
	"github.com/zjrosen/autoload/internal/loader"
	"github.com/zjrosen/autoload/internal/log"
	"github.com/zjrosen/autoload/internal/manifest"
	"github.com/zjrosen/autoload/internal/pubsub"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newService(t *testing.T, kind host.Kind, out *bytes.Buffer) *Service {
	t.Helper()
	svc, err := NewService(Options{Runtime: kind, Output: out, Loader: loader.DefaultConfig()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestNewService_UnsupportedRuntime(t *testing.T) {
	_, err := NewService(Options{Runtime: "ruby"})
	require.Error(t, err)
}

func TestService_ApplyManifests(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "manifests", "geo.yaml"), `
autoload:
  - namespace: 'Acme\Geo'
    version: 1.0.0
    dir: ../v1
`)
	writeFile(t, filepath.Join(root, "manifests", "geo-new.yaml"), `
autoload:
  - namespace: 'Acme\Geo'
    version: 1.1.0
    dir: ../v2
`)
	extra := filepath.Join(root, "extra.yaml")
	writeFile(t, extra, `
autoload:
  - namespace: 'Acme\Geo'
    version: 1.1.0
    dir: /elsewhere
`)

	svc := newService(t, host.KindLua, &bytes.Buffer{})
	sum, err := svc.Apply(context.Background(), Sources{
		Dirs:  []string{filepath.Join(root, "manifests")},
		Files: []string{extra},
		Entries: []manifest.Entry{
			{Namespace: "Util", Version: "0.1.0", Dir: filepath.Join(root, "util")},
		},
	})
	require.NoError(t, err)

	// geo-new.yaml sorts before geo.yaml, so 1.0.0 arrives second and loses.
	require.Equal(t, Summary{Registered: 2, Skipped: 2}, sum)

	v, ok := svc.Registry().GetVersion(`Acme\Geo`)
	require.True(t, ok)
	require.Equal(t, "1.1.0", v)

	reg, _ := svc.Registry().Get(`Acme\Geo`)
	require.Equal(t, domain.NormalizeDirectory(filepath.Join(root, "v2")), reg.BaseDir())
	require.Len(t, svc.List(), 2)
}

func TestService_ApplyMissingManifestFile(t *testing.T) {
	svc := newService(t, host.KindLua, &bytes.Buffer{})
	_, err := svc.Apply(context.Background(), Sources{Files: []string{filepath.Join(t.TempDir(), "nope.yaml")}})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestService_ApplyInvalidEntry(t *testing.T) {
	svc := newService(t, host.KindLua, &bytes.Buffer{})
	_, err := svc.Apply(context.Background(), Sources{Entries: []manifest.Entry{{Namespace: "A", Dir: "/a"}}})
	require.ErrorIs(t, err, manifest.ErrEmptyVersion)
}

func TestService_ResolveAndRunLua(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "geo", "Point.lua"), `Point = { name = "point" }`)
	script := filepath.Join(root, "main.lua")
	writeFile(t, script, `
import("Acme\\Geo\\Point")
print(Point.name, autoload_version("Acme\\Geo"))
`)

	var out bytes.Buffer
	svc := newService(t, host.KindLua, &out)
	ctx := context.Background()
	require.True(t, svc.Register(ctx, manifest.Entry{Namespace: `Acme\Geo`, Version: "1.2.0", Dir: filepath.Join(root, "geo")}))

	path, ok := svc.Candidate(ctx, `Acme\Geo\Point`)
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, "geo", "Point.lua"), path)

	require.NoError(t, svc.Run(ctx, script))
	require.Equal(t, "point\t1.2.0\n", out.String())

	res, err := svc.Resolve(ctx, `Acme\Geo\Point`)
	require.NoError(t, err)
	require.True(t, res.Loaded)

	res, err = svc.Resolve(ctx, `Other\Thing`)
	require.NoError(t, err)
	require.False(t, res.Loaded)
}

func TestService_RunStarlark(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "lib", "Greeting.star"), "message = \"hi\"\n")
	script := filepath.Join(root, "main.star")
	writeFile(t, script, "load(\"App\\\\Greeting\", \"message\")\nprint(message)\n")

	var out bytes.Buffer
	svc := newService(t, host.KindStarlark, &out)
	require.Equal(t, "starlark", svc.Runtime())
	require.Equal(t, ".star", svc.Extension())
	svc.Register(context.Background(), manifest.Entry{Namespace: "App", Version: "1.0.0", Dir: filepath.Join(root, "lib")})

	require.NoError(t, svc.Run(context.Background(), script))
	require.Equal(t, "hi\n", out.String())
}

func TestService_RunRequiresScript(t *testing.T) {
	svc := newService(t, host.KindLua, &bytes.Buffer{})
	require.ErrorIs(t, svc.Run(context.Background(), ""), ErrScriptRequired)
}

func TestService_ResolveLoadErrorPropagates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "lib", "Bad.lua"), `this is not lua`)

	svc := newService(t, host.KindLua, &bytes.Buffer{})
	svc.Register(context.Background(), manifest.Entry{Namespace: "App", Version: "1.0.0", Dir: filepath.Join(root, "lib")})

	_, err := svc.Resolve(context.Background(), `App\Bad`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Bad.lua")
}

func TestService_ResolveFileCreatedAfterDecline(t *testing.T) {
	base := t.TempDir()
	svc := newService(t, host.KindLua, &bytes.Buffer{})
	ctx := context.Background()
	svc.Register(ctx, manifest.Entry{Namespace: "Foo", Version: "1.0.0", Dir: base})

	res, err := svc.Resolve(ctx, `Foo\Bar\Baz`)
	require.NoError(t, err)
	require.False(t, res.Loaded)

	writeFile(t, filepath.Join(base, "Bar", "Baz.lua"), "baz = true")

	res, err = svc.Resolve(ctx, `Foo\Bar\Baz`)
	require.NoError(t, err)
	require.True(t, res.Loaded)
	require.Equal(t, filepath.Join(base, "Bar", "Baz.lua"), res.Path)
}

func TestService_ResolveFileRemovedAfterHitDeclines(t *testing.T) {
	base := t.TempDir()
	gone := filepath.Join(base, "Gone.lua")
	writeFile(t, gone, "gone = true")

	svc := newService(t, host.KindLua, &bytes.Buffer{})
	ctx := context.Background()
	svc.Register(ctx, manifest.Entry{Namespace: "Foo", Version: "1.0.0", Dir: base})

	path, ok := svc.Candidate(ctx, `Foo\Gone`)
	require.True(t, ok)
	require.Equal(t, gone, path)

	require.NoError(t, os.Remove(gone))

	res, err := svc.Resolve(ctx, `Foo\Gone`)
	require.NoError(t, err)
	require.False(t, res.Loaded)

	_, ok = svc.Candidate(ctx, `Foo\Gone`)
	require.False(t, ok)
}

func TestService_ReloadPicksUpNewerVersion(t *testing.T) {
	root := t.TempDir()
	manifests := filepath.Join(root, "manifests")
	writeFile(t, filepath.Join(manifests, "a.yaml"), "autoload:\n  - {namespace: App, version: 1.0.0, dir: ../v1}\n")

	svc := newService(t, host.KindLua, &bytes.Buffer{})
	ctx := context.Background()
	_, err := svc.Apply(ctx, Sources{Dirs: []string{manifests}})
	require.NoError(t, err)

	_, ok := svc.Candidate(ctx, `App\Main`)
	require.False(t, ok)

	writeFile(t, filepath.Join(manifests, "b.yaml"), "autoload:\n  - {namespace: App, version: 2.0.0, dir: ../v2}\n")
	writeFile(t, filepath.Join(root, "v2", "Main.lua"), "x = 1")

	sum, err := svc.Reload(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Registered)
	require.Equal(t, 1, sum.Skipped)

	v, _ := svc.Registry().GetVersion("App")
	require.Equal(t, "2.0.0", v)
	_, ok = svc.Candidate(ctx, `App\Main`)
	require.True(t, ok)

	// Removing the manifest never removes the registration.
	require.NoError(t, os.Remove(filepath.Join(manifests, "b.yaml")))
	_, err = svc.Reload(ctx)
	require.NoError(t, err)
	v, _ = svc.Registry().GetVersion("App")
	require.Equal(t, "2.0.0", v)
}

func TestService_Events(t *testing.T) {
	svc := newService(t, host.KindLua, &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := svc.Subscribe(ctx)
	svc.Register(ctx, manifest.Entry{Namespace: "A", Version: "1.0.0", Dir: "/a"})
	svc.Register(ctx, manifest.Entry{Namespace: "A", Version: "0.9.0", Dir: "/old"})
	_, err := svc.Reload(ctx)
	require.NoError(t, err)

	want := []pubsub.EventType{pubsub.RegisteredEvent, pubsub.SkippedEvent, pubsub.ReloadedEvent}
	for i, typ := range want {
		select {
		case ev := <-events:
			require.Equal(t, typ, ev.Type, "event %d", i)
			if typ == pubsub.SkippedEvent {
				require.Equal(t, "1.0.0", ev.Payload.Previous.Version())
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestService_EventsDroppedAreLogged(t *testing.T) {
	var logs bytes.Buffer
	log.InitWriter(&logs, log.LevelDebug)
	t.Cleanup(log.Reset)

	svc, err := NewService(Options{Runtime: host.KindLua, Output: &bytes.Buffer{}, EventBuffer: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := svc.Subscribe(ctx)

	svc.Register(ctx, manifest.Entry{Namespace: "A", Version: "1.0.0", Dir: "/a"})
	require.NotContains(t, logs.String(), "dropped registry event")

	svc.Register(ctx, manifest.Entry{Namespace: "B", Version: "1.0.0", Dir: "/b"})
	require.Contains(t, logs.String(), "dropped registry event")
	require.Contains(t, logs.String(), `namespace=B\`)

	ev := <-events
	require.Equal(t, `A\`, ev.Payload.Registration.Namespace())
}

func TestService_WatchDirs(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "m", "x.yaml")
	writeFile(t, file, "autoload:\n  - {namespace: A, version: 1.0.0, dir: /srv/a}\n")

	svc := newService(t, host.KindLua, &bytes.Buffer{})
	_, err := svc.Apply(context.Background(), Sources{
		Dirs:  []string{filepath.Join(root, "m"), ""},
		Files: []string{file},
	})
	require.NoError(t, err)

	require.ElementsMatch(t, []string{filepath.Join(root, "m"), "/srv/a"}, svc.WatchDirs())
}

func TestService_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Point.lua"), "x = 1")

	svc, err := NewService(Options{Output: &bytes.Buffer{}, Loader: loader.DefaultConfig(), Tracer: provider.Tracer("test")})
	require.NoError(t, err)
	defer svc.Close()

	ctx := context.Background()
	svc.Register(ctx, manifest.Entry{Namespace: "Geo", Version: "1.0.0", Dir: root})
	_, err = svc.Resolve(ctx, `Geo\Point`)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	require.ElementsMatch(t, []string{"autoload.register", "autoload.load", "autoload.resolve"}, names)
}
