// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	// Runner executes shell scripts through the embedded interpreter.
	// The zero value is not usable; construct with New. A Runner is safe
	// for sequential reuse; each Run builds a fresh interpreter.
	Runner struct {
		cfg config
	}

	// config holds interpreter settings assembled from options.
	config struct {
		dir          string
		env          map[string]string
		environ      func() []string
		stdin        io.Reader
		stdout       io.Writer
		stderr       io.Writer
		execHandlers []func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc
	}

	// Option configures a Runner or a single Run call.
	Option func(*config)

	// ExitError reports a script that ran to completion but exited non-zero.
	ExitError struct {
		Status int
	}
)

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return fmt.Sprintf("script exited with status %d", e.Status)
}

// New creates a Runner. By default scripts run in the current directory
// with the host environment and the process's standard streams.
func New(opts ...Option) *Runner {
	cfg := config{
		environ: os.Environ,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runner{cfg: cfg}
}

// WithDir sets the working directory scripts run in.
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// WithEnv adds environment variables on top of the base environment.
// Later WithEnv options override earlier ones key by key.
func WithEnv(env map[string]string) Option {
	return func(c *config) {
		if c.env == nil {
			c.env = make(map[string]string, len(env))
		}
		for k, v := range env {
			c.env[k] = v
		}
	}
}

// WithEnviron replaces the base environment source (default os.Environ).
// Tests use this to run scripts against a hermetic environment.
func WithEnviron(environ func() []string) Option {
	return func(c *config) {
		c.environ = environ
	}
}

// WithStdIO sets the standard streams for script execution.
func WithStdIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(c *config) {
		c.stdin = stdin
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithExecHandler prepends an exec handler middleware. Handlers run in the
// order added, ending at the interpreter's default handler that spawns the
// external process.
func WithExecHandler(h func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc) Option {
	return func(c *config) {
		c.execHandlers = append(c.execHandlers, h)
	}
}

// Run parses and executes a script. Per-call options override the Runner's
// configuration for this execution only.
//
// A script that exits non-zero returns *ExitError; parse failures and
// interpreter errors return a wrapped error.
func (r *Runner) Run(ctx context.Context, script string, opts ...Option) error {
	cfg := r.cfg.clone()
	for _, opt := range opts {
		opt(&cfg)
	}
	return run(ctx, script, cfg)
}

// RunCapture executes a script with stdout and stderr captured instead of
// streamed. Returns the captured output alongside any execution error.
func (r *Runner) RunCapture(ctx context.Context, script string, opts ...Option) (stdout, stderr string, err error) {
	cfg := r.cfg.clone()
	for _, opt := range opts {
		opt(&cfg)
	}

	var outBuf, errBuf bytes.Buffer
	cfg.stdin = nil
	cfg.stdout = &outBuf
	cfg.stderr = &errBuf

	err = run(ctx, script, cfg)
	return outBuf.String(), errBuf.String(), err
}

// CheckSyntax parses the script without executing it.
func CheckSyntax(script string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), "script"); err != nil {
		return fmt.Errorf("script syntax error: %w", err)
	}
	return nil
}

func run(ctx context.Context, script string, cfg config) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "script")
	if err != nil {
		return fmt.Errorf("failed to parse script: %w", err)
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(cfg.environList()...)),
		interp.StdIO(cfg.stdin, cfg.stdout, cfg.stderr),
	}
	if cfg.dir != "" {
		opts = append(opts, interp.Dir(cfg.dir))
	}
	if len(cfg.execHandlers) > 0 {
		opts = append(opts, interp.ExecHandlers(cfg.execHandlers...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return &ExitError{Status: int(exitStatus)}
		}
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

// clone copies the config so per-call options cannot leak into the Runner.
func (c config) clone() config {
	out := c
	out.env = make(map[string]string, len(c.env))
	for k, v := range c.env {
		out.env[k] = v
	}
	out.execHandlers = append([]func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc(nil), c.execHandlers...)
	return out
}

// environList flattens the base environment plus overrides into KEY=VALUE
// form. Override keys are appended last so they take precedence, in sorted
// order for deterministic behavior.
func (c config) environList() []string {
	base := c.environ()
	if len(c.env) == 0 {
		return base
	}
	keys := make([]string, 0, len(c.env))
	for k := range c.env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(base)+len(keys))
	out = append(out, base...)
	for _, k := range keys {
		out = append(out, k+"="+c.env[k])
	}
	return out
}
