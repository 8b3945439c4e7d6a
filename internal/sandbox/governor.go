package sandbox

import (
	"context"
	"runtime"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Limits bounds a single run_bounded call.
type Limits struct {
	TimeoutMS    int64
	MemoryBytes  int64
}

// DefaultLimits returns the built-in defaults: 30s wall-clock, 10MB of
// heap growth across the call.
func DefaultLimits() Limits {
	return Limits{TimeoutMS: 30_000, MemoryBytes: 10_000_000}
}

// runResult carries the outcome of the interpreter worker back to runBounded.
type runResult struct {
	values []lua.LValue
	err    error
}

// runBounded runs chunk (the compiled top-level script) and then the `run`
// entry point it registers, both under one timeout/memory window — nothing
// script-supplied, compiled or not, executes outside the governor.
//
// Cancellation does not wait for the worker: if the deadline fires first,
// runBounded returns Timeout at once and the goroutine is abandoned. The
// interpreter state carries ctx (SetContext), so gopher-lua aborts the Lua
// loop when it next checks the context, but the caller never waits for that
// to happen. The result channel is buffered so that goroutine's eventual
// send does not block forever and leak; an abandoned goroutine is an
// accepted cost here rather than a bug.
func runBounded(parent context.Context, sb *Sandbox, chunk *lua.LFunction, args []lua.LValue, lim Limits) ([]lua.LValue, *Error) {
	ctx, cancel := context.WithTimeout(parent, time.Duration(lim.TimeoutMS)*time.Millisecond)
	defer cancel()
	sb.L.SetContext(ctx)

	var before runtime.MemStats
	runtime.ReadMemStats(&before)

	resultCh := make(chan runResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- runResult{err: newErr(KindRuntimeError, "panic during execution: %v", r)}
			}
		}()

		sb.L.Push(chunk)
		if err := sb.L.PCall(0, 0, nil); err != nil {
			resultCh <- runResult{err: newErr(KindLoadFailed, "%s", err.Error())}
			return
		}

		entryFn, ok := sb.L.GetGlobal(entryName).(*lua.LFunction)
		if !ok {
			resultCh <- runResult{err: newErr(KindMissingEntry, "entry function %q not found after load", entryName)}
			return
		}

		n := sb.L.GetTop()
		sb.L.Push(entryFn)
		for _, a := range args {
			sb.L.Push(a)
		}
		if err := sb.L.PCall(len(args), lua.MultRet, nil); err != nil {
			resultCh <- runResult{err: err}
			return
		}
		top := sb.L.GetTop()
		out := make([]lua.LValue, 0, top-n)
		for i := n + 1; i <= top; i++ {
			out = append(out, sb.L.Get(i))
		}
		resultCh <- runResult{values: out}
	}()

	select {
	case res := <-resultCh:
		var after runtime.MemStats
		runtime.ReadMemStats(&after)
		if breached(before, after, lim.MemoryBytes) {
			return nil, newErr(KindMemoryExceeded, "memory ceiling of %d bytes exceeded", lim.MemoryBytes)
		}
		if res.err != nil {
			if asErr, ok := res.err.(*Error); ok {
				return nil, asErr
			}
			return nil, newErr(KindRuntimeError, "%s", res.err.Error())
		}
		return res.values, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, newErr(KindTimeout, "execution exceeded %d ms", lim.TimeoutMS)
		}
		return nil, newErr(KindTimeout, "execution cancelled: %s", ctx.Err())
	}
}

// breached reports whether the heap grew beyond memBytes across the call.
// Sampling is approximate: HeapAlloc is the process-wide Go heap, not
// isolated per invocation, and resident set size is not sampled, so this is
// a best-effort signal, not a byte-exact ceiling.
func breached(before, after runtime.MemStats, memBytes int64) bool {
	if memBytes <= 0 {
		return false
	}
	if after.HeapAlloc <= before.HeapAlloc {
		return false
	}
	return int64(after.HeapAlloc-before.HeapAlloc) > memBytes
}
