package scripting

import (
	"fmt"
	"log"

	lua "github.com/yuin/gopher-lua"
)

// VM wraps a Lua state with arcade-specific configuration. A VM is not safe
// for concurrent use.
type VM struct {
	L *lua.LState
}

// NewVM creates a new Lua VM with the standard libraries loaded.
func NewVM() *VM {
	L := lua.NewState(lua.Options{
		CallStackSize: 120,
		RegistrySize:  120 * 20,
	})

	return &VM{L: L}
}

// Close shuts down the Lua VM.
func (vm *VM) Close() {
	vm.L.Close()
}

// LoadScript loads and executes a Lua script file.
func (vm *VM) LoadScript(path string) error {
	if err := vm.L.DoFile(path); err != nil {
		return fmt.Errorf("load script %s: %w", path, err)
	}
	return nil
}

// LoadString executes Lua source. Used for inline scripts and tests.
func (vm *VM) LoadString(src string) error {
	if err := vm.L.DoString(src); err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	return nil
}

// HasFunction reports whether a global function is defined.
func (vm *VM) HasFunction(name string) bool {
	_, ok := vm.L.GetGlobal(name).(*lua.LFunction)
	return ok
}

// CallString calls a global function and returns its first result as a
// string. A missing function or a nil result yields "".
func (vm *VM) CallString(name string, args ...lua.LValue) (string, error) {
	fn, ok := vm.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return "", nil
	}

	if err := vm.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, args...); err != nil {
		return "", fmt.Errorf("call %s: %w", name, err)
	}

	ret := vm.L.Get(-1)
	vm.L.Pop(1)
	if ret == lua.LNil {
		return "", nil
	}
	return lua.LVAsString(ret), nil
}

// SetGlobal sets a global value in the Lua state.
func (vm *VM) SetGlobal(name string, value lua.LValue) {
	vm.L.SetGlobal(name, value)
}

// RegisterModule registers a table of functions as a Lua module.
func (vm *VM) RegisterModule(name string, funcs map[string]lua.LGFunction) {
	mod := vm.L.NewTable()
	for fname, fn := range funcs {
		mod.RawSetString(fname, vm.L.NewFunction(fn))
	}
	vm.L.SetGlobal(name, mod)
}

// LogError logs a Lua error with context.
func LogError(context string, err error) {
	if err != nil {
		log.Printf("Lua error [%s]: %v", context, err)
	}
}
