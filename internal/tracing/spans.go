package tracing

// Span names
const (
	SpanRegister = "autoload.register"
	SpanResolve  = "autoload.resolve"
	SpanLoad     = "autoload.load"
	SpanRun      = "autoload.run"
	SpanReload   = "autoload.reload"
)

// Span attribute keys
const (
	AttrNamespace = "autoload.namespace"
	AttrVersion   = "autoload.version"
	AttrBaseDir   = "autoload.base_dir"
	AttrSymbol    = "autoload.symbol"
	AttrPath      = "autoload.path"
	AttrLoaded    = "autoload.loaded"
	AttrWon       = "autoload.won"
	AttrRuntime   = "autoload.runtime"
	AttrCount     = "autoload.count"
)
