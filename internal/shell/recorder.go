// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"context"
	"strings"
	"sync"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

type (
	// RecordedCall is one intercepted external command invocation.
	RecordedCall struct {
		// Args is the full argv, command name first.
		Args []string
		// Dir is the interpreter's working directory at invocation time.
		Dir string
		// Env is the environment visible to the command.
		Env map[string]string
	}

	// Recorder intercepts external commands at the interpreter's exec
	// boundary and records each invocation instead of spawning it. It is
	// the seam tests use to pin command contracts (order, argv, env,
	// working directory) without touching the host.
	//
	// The interpreter may execute pipeline members concurrently, so the
	// recorder is safe for concurrent use.
	Recorder struct {
		mu    sync.Mutex
		calls []RecordedCall

		// Stub decides the outcome of an intercepted command; nil means
		// every command succeeds. Return interp.ExitStatus to simulate a
		// non-zero exit.
		Stub func(call RecordedCall) error
	}
)

// Middleware returns the exec handler middleware that records and
// swallows external commands. Pass it to WithExecHandler.
func (r *Recorder) Middleware() func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			hc := interp.HandlerCtx(ctx)
			call := RecordedCall{
				Args: append([]string(nil), args...),
				Dir:  hc.Dir,
				Env:  captureEnv(hc.Env),
			}

			r.mu.Lock()
			r.calls = append(r.calls, call)
			stub := r.Stub
			r.mu.Unlock()

			if stub != nil {
				return stub(call)
			}
			return nil
		}
	}
}

// Calls returns a copy of the recorded invocations in order.
func (r *Recorder) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedCall(nil), r.calls...)
}

// Commands returns each recorded invocation joined into a single line,
// in order. Convenient for asserting command sequences.
func (r *Recorder) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, call := range r.calls {
		out[i] = strings.Join(call.Args, " ")
	}
	return out
}

// Reset clears the recorded invocations.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func captureEnv(env expand.Environ) map[string]string {
	out := make(map[string]string)
	env.Each(func(name string, vr expand.Variable) bool {
		if vr.IsSet() {
			out[name] = vr.String()
		}
		return true
	})
	return out
}
