package sandbox

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// dangerousGlobals maps each capability the sandbox strips to the
// concrete Lua global(s) that expose it. "code-loader" covers both `load`
// and its Lua 5.1 alias `loadstring`.
var dangerousGlobals = map[string][]string{
	"os-facade":          {"os"},
	"io-facade":          {"io"},
	"module-loader":      {"require"},
	"code-loader":        {"load", "loadstring"},
	"file-loader":        {"loadfile"},
	"file-code-loader":   {"dofile"},
	"environment-get":    {"getfenv"},
	"environment-set":    {"setfenv"},
	"debug-facade":       {"debug"},
}

// Sandbox wraps one fresh interpreter state plus the tool mediator installed
// into it. It is created per invocation and dropped on every terminal state.
type Sandbox struct {
	L        *lua.LState
	mediator *mediator
}

// build constructs a fresh interpreter state: bare interpreter, dangerous
// globals nulled, http/json tool tables installed, computational facilities
// (arithmetic, strings, tables, control flow) left intact.
func build(m *mediator) (sb *Sandbox, buildErr *Error) {
	defer func() {
		if r := recover(); r != nil {
			sb = nil
			buildErr = newErr(KindSandboxBuildFailed, "panic during sandbox construction: %v", r)
		}
	}()

	L := lua.NewState(lua.Options{
		CallStackSize:       256,
		RegistrySize:        1024 * 8,
		SkipOpenLibs:        false,
		IncludeGoStackTrace: false,
	})

	for _, names := range dangerousGlobals {
		for _, name := range names {
			L.SetGlobal(name, lua.LNil)
		}
	}

	installHTTPTable(L, m)
	installJSONTable(L, m)

	return &Sandbox{L: L, mediator: m}, nil
}

// Close releases the interpreter state. No state survives an invocation.
func (sb *Sandbox) Close() {
	sb.L.Close()
}

// globalIsStripped reports whether name currently resolves to nil in sb,
// used by sandbox-tightness tests.
func (sb *Sandbox) globalIsStripped(name string) bool {
	return sb.L.GetGlobal(name) == lua.LNil
}

func installHTTPTable(L *lua.LState, m *mediator) {
	tbl := L.NewTable()
	tbl.RawSetString("get", L.NewFunction(func(L *lua.LState) int {
		url := L.CheckString(1)
		result := m.httpGet(L.Context(), url)
		L.Push(lua.LString(result))
		return 1
	}))
	tbl.RawSetString("post", L.NewFunction(func(L *lua.LState) int {
		url := L.CheckString(1)
		var headers map[string]string
		var body string
		if L.GetTop() >= 2 {
			if opts, ok := L.Get(2).(*lua.LTable); ok {
				if h, ok := opts.RawGetString("headers").(*lua.LTable); ok {
					headers = make(map[string]string)
					h.ForEach(func(k, v lua.LValue) {
						headers[k.String()] = lua.LVAsString(v)
					})
				}
				if b, ok := opts.RawGetString("body").(lua.LString); ok {
					body = string(b)
				}
			}
		}
		result := m.httpPost(L.Context(), url, headers, body)
		L.Push(lua.LString(result))
		return 1
	}))
	L.SetGlobal("http", tbl)
}

func installJSONTable(L *lua.LState, m *mediator) {
	tbl := L.NewTable()
	tbl.RawSetString("decode", L.NewFunction(func(L *lua.LState) int {
		s := L.CheckString(1)
		v, errStr := m.jsonDecode(s)
		if errStr != "" {
			L.Push(lua.LString(errStr))
			return 1
		}
		L.Push(toLua(L, v))
		return 1
	}))
	tbl.RawSetString("encode", L.NewFunction(func(L *lua.LState) int {
		visited := make(map[*lua.LTable]int)
		v, err := fromLua(L.Get(1), visited)
		if err != nil {
			L.Push(lua.LString(fmt.Sprintf("JSON encode error: %v", err)))
			return 1
		}
		s, errStr := m.jsonEncode(v)
		if errStr != "" {
			L.Push(lua.LString(errStr))
			return 1
		}
		L.Push(lua.LString(s))
		return 1
	}))
	L.SetGlobal("json", tbl)
}
