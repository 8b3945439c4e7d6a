package sandbox

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"scriptbox/internal/logging"
	"scriptbox/internal/metrics"
	"scriptbox/internal/tracing"
)

// entryName is the conventional entry point every script must declare.
const entryName = "run"

// Options bounds and labels one Execute call.
type Options struct {
	TimeoutMS   int64
	MemoryBytes int64
	RequestID   string
}

// Executor runs the full state machine: validate, build sandbox, load
// source, marshal input, run under the governor, marshal output. One
// Executor instance is process-wide and safe for concurrent use — each
// Execute call gets its own interpreter state.
type Executor struct {
	allowedHosts     map[string]bool
	essentialKeys    map[string]bool
	httpClient       *http.Client
	maxRespBytes     int64
	log              *zap.Logger
	metrics          *metrics.Registry
	toolsLogsEnabled bool
}

// NewExecutor builds an Executor from process-wide configuration.
// toolsLogsEnabled gates the tool-mediator's own log category (e.g. HTTP
// request tracing) independently of the executor's outcome logs, per
// LoggingConfig.IsCategoryEnabled("tools").
func NewExecutor(allowedHosts, essentialKeys []string, maxRespBytes int64, log *zap.Logger, reg *metrics.Registry, toolsLogsEnabled bool) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	ah := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		ah[h] = true
	}
	ek := make(map[string]bool, len(essentialKeys))
	for _, k := range essentialKeys {
		ek[k] = true
	}
	return &Executor{
		allowedHosts:     ah,
		essentialKeys:    ek,
		httpClient:       &http.Client{Timeout: 15 * time.Second},
		maxRespBytes:     maxRespBytes,
		log:              log,
		metrics:          reg,
		toolsLogsEnabled: toolsLogsEnabled,
	}
}

// Execute runs source against context under opts, following the
// validate/build/load/marshal-in/run/marshal-out state machine.
func (ex *Executor) Execute(ctx context.Context, source string, input Bag, opts Options) (result Bag, execErr *Error) {
	if opts.RequestID == "" {
		opts.RequestID = uuid.NewString()
	}
	lim := DefaultLimits()
	if opts.TimeoutMS > 0 {
		lim.TimeoutMS = opts.TimeoutMS
	}
	if opts.MemoryBytes > 0 {
		lim.MemoryBytes = opts.MemoryBytes
	}

	start := time.Now()
	ctx, rootSpan := tracing.StartSpan(ctx, "sandbox.execute", attribute.String("request_id", opts.RequestID))
	outcome := "ok"
	defer func() {
		var spanErr error
		if execErr != nil {
			outcome = string(execErr.Kind)
			spanErr = execErr
		}
		ex.metrics.ObserveExecution(outcome, time.Since(start).Seconds())
		tracing.EndSpan(rootSpan, spanErr)
	}()

	log := ex.log.With(zap.String("request_id", opts.RequestID))

	// validated?
	_, vspan := tracing.StartSpan(ctx, "sandbox.validate")
	if _, vErr := validate(source); vErr != nil {
		vspan.End()
		log.Info("script rejected by validator", zap.String("kind", string(vErr.Kind)))
		return Bag{}, vErr
	}
	vspan.End()

	// sandbox_built?
	_, bspan := tracing.StartSpan(ctx, "sandbox.build")
	med := newMediator(ex.httpClient, ex.allowedHosts, ex.essentialKeys, ex.maxRespBytes, logging.ForCategory(ex.log, logging.CategoryTools, ex.toolsLogsEnabled))
	sb, buildErr := build(med)
	if buildErr != nil {
		bspan.End()
		ex.metrics.ObserveSandboxBuild("failed")
		log.Error("sandbox build failed", zap.Error(buildErr))
		return Bag{}, buildErr
	}
	ex.metrics.ObserveSandboxBuild("ok")
	bspan.End()
	defer sb.Close()

	// source_loaded? — compile only. The chunk is not executed here: running
	// it (which registers `run` as a side effect) happens inside runBounded,
	// alongside the `run` call itself, so neither can escape the governor.
	_, lspan := tracing.StartSpan(ctx, "sandbox.load")
	chunk, loadErr := sb.L.LoadString(source)
	lspan.End()
	if loadErr != nil {
		log.Info("script failed to compile", zap.Error(loadErr))
		return Bag{}, newErr(KindLoadFailed, "%s", loadErr.Error())
	}

	// input_marshalled?
	_, mspan := tracing.StartSpan(ctx, "sandbox.marshal_input")
	luaInput := toLua(sb.L, input.Clone())
	mspan.End()

	// run_bounded — executes the compiled chunk (registering `run`) and then
	// calls `run`, both under the timeout/memory governor.
	rctx, rspan := tracing.StartSpan(ctx, "sandbox.run")
	values, runErr := runBounded(rctx, sb, chunk, []lua.LValue{luaInput}, lim)
	rspan.End()
	if runErr != nil {
		log.Info("script execution failed", zap.String("kind", string(runErr.Kind)))
		return Bag{}, runErr
	}

	// output_marshalled?
	_, ospan := tracing.StartSpan(ctx, "sandbox.marshal_output")
	defer ospan.End()
	if len(values) == 0 {
		return Null(), nil
	}
	out, convErr := fromLua(values[0], make(map[*lua.LTable]int))
	if convErr != nil {
		return Bag{}, newErr(KindConvertFailed, "%s", convErr.Error())
	}
	return out, nil
}

// Validate exposes the static validator as a standalone operation.
func (ex *Executor) Validate(source string) *Error {
	return Validate(source)
}
