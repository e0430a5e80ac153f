// Package lua runs guest modules written in Lua on the gopher-lua interpreter
// and binds host functions from a [hostfunc.Registry] as Lua globals.
package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/caffeineduck/snoop/hostfunc"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

var ErrNoFunction = errors.New("function not defined")

// Globals removed after the base library is opened. They would let a module
// read files or compile code outside the loaded source.
var unsafeGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// Runtime is one Lua state. It is not safe for concurrent use.
type Runtime struct {
	L      *lua.LState
	out    io.Writer
	logger *zap.Logger
}

type Option func(*Runtime)

// WithOutput sets the writer that print() writes to.
func WithOutput(w io.Writer) Option {
	return func(r *Runtime) {
		r.out = w
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// New creates a Lua state with the safe standard libraries and every function
// of registry bound as a global.
func New(registry *hostfunc.Registry, opts ...Option) (*Runtime, error) {
	r := &Runtime{
		out:    io.Discard,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := r.L.CallByParam(lua.P{Fn: r.L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			r.L.Close()
			return nil, fmt.Errorf("open %s library: %w", lib.name, err)
		}
	}
	for _, name := range unsafeGlobals {
		r.L.SetGlobal(name, lua.LNil)
	}
	r.L.SetGlobal("print", r.L.NewFunction(r.print))

	if registry != nil {
		for _, name := range registry.List() {
			fn, _ := registry.Get(name)
			r.bind(name, fn, registry.Params(name))
		}
	}
	return r, nil
}

// Load executes code at the top level, defining the module's functions.
func (r *Runtime) Load(ctx context.Context, code string) error {
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

// Call invokes the global function fn and returns its first result.
func (r *Runtime) Call(ctx context.Context, fn string, args ...any) (any, error) {
	f, ok := r.L.GetGlobal(fn).(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoFunction, fn)
	}

	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	largs := make([]lua.LValue, 0, len(args))
	for _, a := range args {
		largs = append(largs, ToLua(r.L, a))
	}
	if err := r.L.CallByParam(lua.P{Fn: f, NRet: 1, Protect: true}, largs...); err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)
	return ToGo(ret), nil
}

func (r *Runtime) Close() {
	r.L.Close()
}

// bind exposes fn as a Lua global. Positional arguments are named by params.
// Functions without params receive their first table argument as the args map.
func (r *Runtime) bind(name string, fn hostfunc.Func, params []string) {
	r.L.SetGlobal(name, r.L.NewFunction(func(L *lua.LState) int {
		args := make(map[string]any, len(params))
		if len(params) == 0 {
			if m, ok := ToGo(L.Get(1)).(map[string]any); ok {
				args = m
			}
		}
		for i, p := range params {
			if v := ToGo(L.Get(i + 1)); v != nil {
				args[p] = v
			}
		}

		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		result, err := fn(ctx, args)
		if err != nil {
			r.logger.Debug("host function raised", zap.String("fn", name), zap.Error(err))
			L.RaiseError("%s: %v", name, err)
			return 0
		}
		L.Push(ToLua(L, result))
		return 1
	}))
}

func (r *Runtime) print(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	fmt.Fprintln(r.out, strings.Join(parts, "\t"))
	return 0
}
