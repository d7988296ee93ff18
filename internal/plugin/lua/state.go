package lua

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single DoString or Call.
const DefaultExecutionTimeout = time.Second

// State wraps a sandboxed gopher-lua state.
//
// gopher-lua's LState is not goroutine-safe; the mutex serializes calls
// made from Go.
type State struct {
	L *lua.LState

	mu               sync.Mutex
	executionTimeout time.Duration
	closed           bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the deadline of each call. Zero disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	s := &State{executionTimeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)
	installSandbox(s.L)
	return s
}

// DoString executes a Lua chunk.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.run(func() error {
		return s.L.DoString(code)
	})
}

// Call calls a global Lua function and returns its first result, or
// LNil when it returns nothing.
func (s *State) Call(fn string, args ...lua.LValue) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil, ErrStateClosed
	}

	fnVal := s.L.GetGlobal(fn)
	if fnVal.Type() != lua.LTFunction {
		return lua.LNil, fmt.Errorf("%q is not a function (got %s)", fn, fnVal.Type())
	}

	var ret lua.LValue = lua.LNil
	err := s.run(func() error {
		if err := s.L.CallByParam(lua.P{Fn: fnVal, NRet: 1, Protect: true}, args...); err != nil {
			return err
		}
		ret = s.L.Get(-1)
		s.L.Pop(1)
		return nil
	})
	return ret, err
}

// run executes fn under the execution deadline with panic recovery.
func (s *State) run(fn func() error) (err error) {
	if s.executionTimeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.executionTimeout)
		defer cancel()
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
		defer func() {
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
			}
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// Close releases all resources associated with the Lua state.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
