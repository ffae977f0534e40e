package autoload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	domain "github.com/zjrosen/autoload/internal/domain/autoload"
	"github.com/zjrosen/autoload/internal/host"
	"github.com/zjrosen/autoload/internal/loader"
	"github.com/zjrosen/autoload/internal/log"
	"github.com/zjrosen/autoload/internal/manifest"
	"github.com/zjrosen/autoload/internal/pubsub"
	"github.com/zjrosen/autoload/internal/tracing"
)

// Service errors
var (
	ErrScriptRequired = errors.New("script path is required")
)

// Options configures a Service.
type Options struct {
	Runtime host.Kind
	// Output receives script print output. Defaults to os.Stdout.
	Output io.Writer
	Loader loader.Config
	Tracer trace.Tracer
	// EventBuffer is the per-subscriber event buffer. Zero uses the broker
	// default.
	EventBuffer int
}

// Sources lists where registrations come from. Dirs are scanned for
// manifests, Files are individual manifests and Entries are applied last.
type Sources struct {
	Dirs    []string
	Files   []string
	Entries []manifest.Entry
}

// Summary counts the outcome of applying registrations.
type Summary struct {
	Registered int
	Skipped    int
}

func (s *Summary) add(won bool) {
	if won {
		s.Registered++
	} else {
		s.Skipped++
	}
}

// Service owns the registry and the runtime it loads files into.
type Service struct {
	registry *domain.Registry
	loader   *loader.FileLoader
	host     host.Host
	broker   *pubsub.Broker[domain.Event]
	tracer   trace.Tracer

	mu      sync.Mutex
	sources Sources
}

var _ pubsub.Subscriber[domain.Event] = (*Service)(nil)

// NewService creates the host, loader and registry and wires them together.
func NewService(opts Options) (*Service, error) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}

	h, err := host.New(opts.Runtime, out)
	if err != nil {
		return nil, fmt.Errorf("create host: %w", err)
	}

	fl := loader.New(h, opts.Loader, loader.WithTracer(tracer))
	reg, err := domain.NewRegistry(fl)
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}
	h.SetResolver(reg)

	s := &Service{
		registry: reg,
		loader:   fl,
		host:     h,
		broker:   newBroker(opts.EventBuffer),
		tracer:   tracer,
	}
	reg.Subscribe(s.onEvent)

	log.Info(log.CatRuntime, "service ready", "runtime", h.Name(), "ext", h.Extension())
	return s, nil
}

func (s *Service) onEvent(ev domain.Event) {
	reg := ev.Registration
	switch ev.Kind {
	case domain.EventRegistered:
		log.Info(log.CatRegistry, "registered",
			"namespace", reg.Namespace(), "version", reg.Version(), "dir", reg.BaseDir(),
			"previous", ev.Previous.Version())
		s.publish(pubsub.RegisteredEvent, ev)
	case domain.EventSkipped:
		log.Debug(log.CatRegistry, "skipped stale registration",
			"namespace", reg.Namespace(), "version", reg.Version(), "current", ev.Previous.Version())
		s.publish(pubsub.SkippedEvent, ev)
	}
}

func newBroker(size int) *pubsub.Broker[domain.Event] {
	if size > 0 {
		return pubsub.NewBrokerWithBuffer[domain.Event](size)
	}
	return pubsub.NewBroker[domain.Event]()
}

// publish sends ev to subscribers and logs when a full subscriber buffer
// drops it.
func (s *Service) publish(eventType pubsub.EventType, ev domain.Event) {
	subscribers := s.broker.SubscriberCount()
	if delivered := s.broker.Publish(eventType, ev); delivered < subscribers {
		log.Warn(log.CatRegistry, "dropped registry event",
			"type", eventType, "namespace", ev.Registration.Namespace(),
			"delivered", delivered, "subscribers", subscribers)
	}
}

// Registry returns the underlying registry.
func (s *Service) Registry() *domain.Registry {
	return s.registry
}

// Runtime returns the host runtime name.
func (s *Service) Runtime() string {
	return s.host.Name()
}

// Extension returns the source file extension of the runtime.
func (s *Service) Extension() string {
	return s.host.Extension()
}

// Register applies a single entry and reports whether it won.
func (s *Service) Register(ctx context.Context, e manifest.Entry) bool {
	_, span := s.tracer.Start(ctx, tracing.SpanRegister, trace.WithAttributes(
		attribute.String(tracing.AttrNamespace, e.Namespace),
		attribute.String(tracing.AttrVersion, e.Version),
		attribute.String(tracing.AttrBaseDir, e.Dir),
	))
	defer span.End()

	won := s.registry.Register(e.Namespace, e.Version, e.Dir)
	span.SetAttributes(attribute.Bool(tracing.AttrWon, won))
	return won
}

// Apply registers everything src declares and remembers src for Reload.
// A manifest listed in Files that cannot be read is an error. Invalid
// manifests found while scanning Dirs are skipped.
func (s *Service) Apply(ctx context.Context, src Sources) (Summary, error) {
	s.mu.Lock()
	s.sources = src
	s.mu.Unlock()
	return s.apply(ctx, src)
}

// RegisterManifests applies the manifest files at paths.
func (s *Service) RegisterManifests(ctx context.Context, paths ...string) (Summary, error) {
	var sum Summary
	for _, path := range paths {
		entries, err := manifest.Load(path)
		if err != nil {
			return sum, err
		}
		for _, e := range entries {
			sum.add(s.Register(ctx, e))
		}
	}
	return sum, nil
}

func (s *Service) apply(ctx context.Context, src Sources) (Summary, error) {
	var sum Summary
	for _, dir := range src.Dirs {
		entries, err := manifest.LoadDir(dir)
		if err != nil {
			return sum, fmt.Errorf("manifest dir: %w", err)
		}
		for _, e := range entries {
			sum.add(s.Register(ctx, e))
		}
	}

	fileSum, err := s.RegisterManifests(ctx, src.Files...)
	sum.Registered += fileSum.Registered
	sum.Skipped += fileSum.Skipped
	if err != nil {
		return sum, err
	}

	for _, e := range src.Entries {
		if err := e.Validate(); err != nil {
			return sum, fmt.Errorf("registration %s: %w", e.Namespace, err)
		}
		sum.add(s.Register(ctx, e))
	}

	log.Info(log.CatManifest, "applied registrations", "registered", sum.Registered, "skipped", sum.Skipped)
	return sum, nil
}

// Reload flushes the probe cache and re-applies the last Sources. Higher
// versions found on disk replace their namespace; nothing is removed.
func (s *Service) Reload(ctx context.Context) (Summary, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanReload)
	defer span.End()

	if err := s.loader.Flush(ctx); err != nil {
		span.RecordError(err)
		return Summary{}, err
	}

	s.mu.Lock()
	src := s.sources
	s.mu.Unlock()

	sum, err := s.apply(ctx, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sum, err
	}
	span.SetAttributes(attribute.Int(tracing.AttrCount, sum.Registered))
	s.publish(pubsub.ReloadedEvent, domain.Event{})
	return sum, nil
}

// Resolve resolves symbol through the registry, loading its file.
func (s *Service) Resolve(ctx context.Context, symbol string) (domain.Resolution, error) {
	ctx, span := s.tracer.Start(ctx, tracing.SpanResolve,
		trace.WithAttributes(attribute.String(tracing.AttrSymbol, symbol)))
	defer span.End()

	res, err := s.registry.Resolve(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatResolve, "resolve failed", err, "symbol", symbol)
		return res, err
	}

	span.SetAttributes(attribute.Bool(tracing.AttrLoaded, res.Loaded))
	if res.Loaded {
		span.SetAttributes(attribute.String(tracing.AttrPath, res.Path))
		log.Debug(log.CatResolve, "resolved", "symbol", symbol, "path", res.Path)
	} else {
		log.Debug(log.CatResolve, "declined", "symbol", symbol)
	}
	return res, nil
}

// Candidate returns the file Resolve would load for symbol without loading it.
func (s *Service) Candidate(ctx context.Context, symbol string) (string, bool) {
	return s.registry.Candidate(ctx, symbol)
}

// Run executes an entry script. Its imports resolve through the registry.
func (s *Service) Run(ctx context.Context, script string) error {
	if script == "" {
		return ErrScriptRequired
	}
	path, err := filepath.Abs(script)
	if err != nil {
		return fmt.Errorf("resolve script path: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, tracing.SpanRun, trace.WithAttributes(
		attribute.String(tracing.AttrPath, path),
		attribute.String(tracing.AttrRuntime, s.host.Name()),
	))
	defer span.End()

	if err := s.host.Run(ctx, path); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// List returns all registrations sorted by namespace.
func (s *Service) List() []domain.Registration {
	return s.registry.List()
}

// WatchDirs returns the directories whose changes should trigger a reload:
// manifest dirs, the dirs holding manifest files and every base dir.
func (s *Service) WatchDirs() []string {
	s.mu.Lock()
	src := s.sources
	s.mu.Unlock()

	dirs := make([]string, 0, len(src.Dirs)+len(src.Files))
	for _, d := range src.Dirs {
		if d != "" {
			dirs = append(dirs, filepath.Clean(d))
		}
	}
	for _, f := range src.Files {
		dirs = append(dirs, filepath.Dir(f))
	}
	for _, d := range s.registry.BaseDirs() {
		dirs = append(dirs, filepath.Clean(d))
	}
	slices.Sort(dirs)
	return slices.Compact(dirs)
}

// Subscribe returns a channel of registry events. The channel closes when
// ctx is cancelled or the service is closed.
func (s *Service) Subscribe(ctx context.Context) <-chan pubsub.Event[domain.Event] {
	return s.broker.Subscribe(ctx)
}

// Close shuts down the event broker and the host.
func (s *Service) Close() error {
	s.broker.Close()
	return s.host.Close()
}
