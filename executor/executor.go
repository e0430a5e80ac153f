package executor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caffeineduck/snoop/hostfunc"
	"github.com/caffeineduck/snoop/language/lua"
	"github.com/caffeineduck/snoop/module"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"
)

// ErrModuleFailed marks a run whose module reported failure by returning a
// string from run().
var ErrModuleFailed = errors.New("module failed")

// Result holds the output and return value of a run.
type Result struct {
	Output   string
	Value    any
	Duration time.Duration
	Error    error
}

// Executor runs modules. It owns the wazero runtime and its compiled module
// cache. Lua modules run on a fresh interpreter per run.
type Executor struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled map[string]wazero.CompiledModule
	registry *hostfunc.Registry
	logger   *zap.Logger
	mu       sync.RWMutex
	closed   bool
}

// New creates an Executor. Functions in registry are visible to every module
// next to the host capabilities.
func New(registry *hostfunc.Registry, opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	var err error

	if cfg.diskCache {
		cacheDir := cfg.cacheDir
		if cacheDir == "" {
			cacheDir = defaultCacheDir()
		}
		cache, err = wazero.NewCompilationCacheWithDir(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	return &Executor{
		runtime:  rt,
		cache:    cache,
		compiled: make(map[string]wazero.CompiledModule),
		registry: registry,
		logger:   cfg.logger,
	}, nil
}

// Run executes mod with arg. Every run gets its own host context, so error
// sentinels and sessions are never shared between runs. Sessions are closed
// when Run returns.
func (e *Executor) Run(ctx context.Context, mod module.Module, arg any, opts ...Option) Result {
	start := time.Now()

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	host := hostfunc.NewHost(cfg.hostConfig())
	defer host.Close()

	registry := hostfunc.NewRegistry()
	if e.registry != nil {
		e.registry.CopyTo(registry)
	}
	registry.Register("time_now", func(ctx context.Context, args map[string]any) (any, error) {
		return float64(time.Now().UnixNano()) / 1e9, nil
	})
	host.Register(registry)

	var result Result
	switch mod.Kind {
	case module.KindLua:
		result = e.runLua(ctx, registry, mod, arg)
	case module.KindWASM:
		result = e.runWASM(ctx, registry, mod, arg)
	default:
		result.Error = fmt.Errorf("unsupported module kind %q", mod.Kind)
	}

	if result.Error != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.Error = fmt.Errorf("timeout after %v", cfg.timeout)
	}
	if result.Error == nil {
		if msg, ok := result.Value.(string); ok {
			result.Value = nil
			result.Error = fmt.Errorf("%w: %s", ErrModuleFailed, msg)
		}
	}
	result.Duration = time.Since(start)

	e.logger.Debug("module finished",
		zap.String("module", mod.Canonical()),
		zap.Duration("duration", result.Duration),
		zap.Error(result.Error),
	)
	return result
}

func (e *Executor) runLua(ctx context.Context, registry *hostfunc.Registry, mod module.Module, arg any) Result {
	var out bytes.Buffer
	rt, err := lua.New(registry, lua.WithOutput(&out), lua.WithLogger(e.logger))
	if err != nil {
		return Result{Error: err}
	}
	defer rt.Close()

	if err := rt.Load(ctx, string(mod.Code)); err != nil {
		return Result{Output: out.String(), Error: fmt.Errorf("execution failed: %w", err)}
	}
	value, err := rt.Call(ctx, "run", arg)
	if err != nil {
		return Result{Output: out.String(), Error: fmt.Errorf("execution failed: %w", err)}
	}
	return Result{Output: out.String(), Value: value}
}

func (e *Executor) runWASM(ctx context.Context, registry *hostfunc.Registry, mod module.Module, arg any) Result {
	compiled, err := e.getCompiled(ctx, mod)
	if err != nil {
		return Result{Error: err}
	}

	argJSON, err := json.Marshal(arg)
	if err != nil {
		return Result{Error: fmt.Errorf("encode argument: %w", err)}
	}

	var stdout bytes.Buffer
	stdinReader, stdinWriter := io.Pipe()
	protocol := newProtocolHandler(ctx, registry, stdinWriter, e.logger)

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(&stdout).
		WithStderr(protocol).
		WithStdin(stdinReader).
		WithArgs(mod.Name, string(argJSON)).
		WithName("")

	errCh := make(chan error, 1)
	go func() {
		m, err := e.runtime.InstantiateModule(ctx, compiled, moduleConfig)
		if m != nil {
			m.Close(context.Background())
		}
		stdinWriter.Close()
		errCh <- err
	}()

	err = <-errCh

	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 0 {
		err = nil
	}

	result := Result{Output: stdout.String() + protocol.Stderr()}
	if err != nil {
		result.Error = fmt.Errorf("execution failed: %w", err)
		return result
	}
	result.Value, _ = protocol.Result()
	return result
}

// getCompiled returns a cached compiled module, compiling if necessary.
// Entries are keyed by a digest of the module code.
func (e *Executor) getCompiled(ctx context.Context, mod module.Module) (wazero.CompiledModule, error) {
	sum := sha256.Sum256(mod.Code)
	key := hex.EncodeToString(sum[:])

	e.mu.RLock()
	if compiled, ok := e.compiled[key]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if compiled, ok := e.compiled[key]; ok {
		return compiled, nil
	}

	compiled, err := e.runtime.CompileModule(ctx, mod.Code)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", mod.Canonical(), err)
	}

	e.compiled[key] = compiled
	return compiled, nil
}

// Close releases all resources held by the Executor.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "snoop")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "snoop")
	}
	return filepath.Join(os.TempDir(), "snoop-cache")
}
