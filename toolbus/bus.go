// Package toolbus routes named, string-argument tool calls to sandboxed
// implementations. A bus enforces an allow-list, binds a per-run working
// directory, and normalizes results, errors and timings into one record
// shape. Call never returns a Go error: every failure mode is encoded in
// the Result so the engine can feed it back to the model.
//
// A bus instance belongs to exactly one in-flight run. Concurrent runs
// must each construct their own bus; sharing one across runs would race
// on the working-directory binding.
package toolbus

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Result is the normalized outcome of one tool call.
type Result struct {
	OK      bool          `json:"ok"`
	Output  string        `json:"output"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"-"`
}

// Bus is the tool-invocation contract between the engine and concrete
// tool backends (local or MCP).
type Bus interface {
	// ListTools returns tool name to description, restricted to the
	// allow-list.
	ListTools() map[string]string

	// Call dispatches a tool by name. It never panics and never returns
	// a Go error; failures are encoded in the Result.
	Call(ctx context.Context, name, arg string) Result

	// SetWorkdir binds subsequent file-tool calls to a run-scoped root
	// directory. It must be set before any file tool executes.
	SetWorkdir(path string)
}

// Runtime carries the per-run execution environment passed to each tool
// invocation. The working directory is threaded through explicitly so that
// concurrent runs with separate bus instances cannot interfere.
type Runtime struct {
	Workdir     string
	HTTP        *http.Client
	SearchURL   string
	SearchLimit int
}

// Tool is a static, named capability. Invoke receives the run's runtime
// and the raw string argument; no mutable state is captured.
type Tool struct {
	Name        string
	Description string
	Invoke      func(ctx context.Context, rt *Runtime, arg string) (string, error)
}

// LocalBus executes tools in-process. It is safe for concurrent use, but
// one instance must serve at most one in-flight run.
type LocalBus struct {
	mu    sync.RWMutex
	tools map[string]Tool
	allow map[string]bool
	rt    Runtime
}

// LocalBusOption configures a LocalBus.
type LocalBusOption func(*LocalBus)

// WithAllow restricts the bus to the named tools. Without it, all
// built-in tools are allowed.
func WithAllow(names ...string) LocalBusOption {
	return func(b *LocalBus) {
		b.allow = make(map[string]bool, len(names))
		for _, n := range names {
			b.allow[n] = true
		}
	}
}

// WithWorkdir binds the initial working directory.
func WithWorkdir(path string) LocalBusOption {
	return func(b *LocalBus) {
		b.rt.Workdir = path
	}
}

// WithHTTPClient overrides the HTTP client used by network tools.
func WithHTTPClient(c *http.Client) LocalBusOption {
	return func(b *LocalBus) {
		b.rt.HTTP = c
	}
}

// WithSearchURL overrides the search endpoint. Used in tests.
func WithSearchURL(url string) LocalBusOption {
	return func(b *LocalBus) {
		b.rt.SearchURL = url
	}
}

// NewLocalBus creates a bus over the built-in tools: calculator,
// read_file, write_file, list_dir, and web_search.
func NewLocalBus(opts ...LocalBusOption) *LocalBus {
	b := &LocalBus{
		tools: make(map[string]Tool),
		rt: Runtime{
			HTTP:        &http.Client{Timeout: searchTimeout},
			SearchURL:   defaultSearchURL,
			SearchLimit: defaultSearchLimit,
		},
	}
	for _, t := range builtinTools() {
		b.tools[t.Name] = t
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.allow == nil {
		b.allow = make(map[string]bool, len(b.tools))
		for name := range b.tools {
			b.allow[name] = true
		}
	}
	return b
}

// SetWorkdir rebinds the run-scoped working directory for file tools.
func (b *LocalBus) SetWorkdir(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rt.Workdir = path
}

// ListTools returns name to description for every allowed tool.
func (b *LocalBus) ListTools() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string]string)
	for name, t := range b.tools {
		if b.allow[name] {
			out[name] = t.Description
		}
	}
	return out
}

// Names returns the allowed tool names, sorted for stable prompts.
func (b *LocalBus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.tools))
	for name := range b.tools {
		if b.allow[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Call dispatches the named tool with the given argument.
func (b *LocalBus) Call(ctx context.Context, name, arg string) Result {
	b.mu.RLock()
	allowed := b.allow[name]
	t, known := b.tools[name]
	rt := b.rt
	b.mu.RUnlock()

	if !known {
		return Result{OK: false, Error: fmt.Sprintf("tool not found: %s", name)}
	}
	if !allowed {
		return Result{OK: false, Error: fmt.Sprintf("tool not allowed: %s", name)}
	}

	start := time.Now()
	out, err := invokeSafe(ctx, t, &rt, arg)
	latency := time.Since(start)

	if err != nil {
		return Result{OK: false, Error: err.Error(), Latency: latency}
	}
	return Result{OK: true, Output: out, Latency: latency}
}

// invokeSafe shields the bus from panicking tool implementations.
func invokeSafe(ctx context.Context, t Tool, rt *Runtime, arg string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.Name, r)
		}
	}()
	return t.Invoke(ctx, rt, arg)
}

func builtinTools() []Tool {
	return []Tool{
		calculatorTool(),
		readFileTool(),
		writeFileTool(),
		listDirTool(),
		webSearchTool(),
	}
}
