package modguard

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/verist/tg-guard/lib/modcheck"
)

// LuaRule is an optional operator-provided suspicion rule written in Lua.
// The script must define a "check" function taking a request table and
// returning a boolean (suspicious) and a string (details). A positive rule
// result marks the message as a classifier candidate, it can never clear one.
//
// Lua state is not thread-safe, calls are serialized with a mutex.
type LuaRule struct {
	vm   *lua.LState
	fn   *lua.LFunction
	lock sync.Mutex
}

// NewLuaRule loads a rule script from the given path.
func NewLuaRule(path string) (*LuaRule, error) {
	vm := lua.NewState()
	if err := vm.DoFile(path); err != nil {
		vm.Close()
		return nil, fmt.Errorf("failed to load lua rule %s: %w", path, err)
	}

	checkFunc := vm.GetGlobal("check")
	if checkFunc.Type() != lua.LTFunction {
		vm.Close()
		return nil, fmt.Errorf("lua rule %s must define a 'check' function", path)
	}

	return &LuaRule{vm: vm, fn: checkFunc.(*lua.LFunction)}, nil
}

// Check runs the rule against the request.
func (r *LuaRule) Check(req modcheck.Request) (suspicious bool, details string, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	reqTable := r.vm.NewTable()
	reqTable.RawSetString("msg", lua.LString(req.Msg))
	reqTable.RawSetString("user_id", lua.LNumber(req.UserID))
	reqTable.RawSetString("user_name", lua.LString(req.UserName))
	reqTable.RawSetString("mass_mention", lua.LBool(req.MassMention))

	if err := r.vm.CallByParam(lua.P{Fn: r.fn, NRet: 2, Protect: true}, reqTable); err != nil {
		return false, "", fmt.Errorf("error executing lua rule: %w", err)
	}

	suspicious = r.vm.ToBool(-2)
	details = r.vm.ToString(-1)
	r.vm.Pop(2)
	return suspicious, details, nil
}

// Close cleans up the Lua state.
func (r *LuaRule) Close() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.vm.Close()
}
