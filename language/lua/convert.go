package lua

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// ToGo converts a Lua value into a bridge value: nil, bool, float64, string,
// map[string]any or []any. Tables with keys exactly 1..n become lists; every
// other table, including the empty one, becomes a map. Functions, userdata
// and threads convert to nil.
func ToGo(v lua.LValue) any {
	return toGo(v, make(map[*lua.LTable]bool))
}

func toGo(v lua.LValue, seen map[*lua.LTable]bool) any {
	switch x := v.(type) {
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		return float64(x)
	case lua.LString:
		return string(x)
	case *lua.LTable:
		if seen[x] {
			return nil
		}
		seen[x] = true
		defer delete(seen, x)
		return tableToGo(x, seen)
	}
	return nil
}

func tableToGo(t *lua.LTable, seen map[*lua.LTable]bool) any {
	n := t.MaxN()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })

	if n > 0 && n == count {
		list := make([]any, 0, n)
		for i := 1; i <= n; i++ {
			list = append(list, toGo(t.RawGetInt(i), seen))
		}
		return list
	}

	m := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kk := k.(type) {
		case lua.LString:
			key = string(kk)
		case lua.LNumber:
			key = kk.String()
		default:
			key = fmt.Sprint(k)
		}
		m[key] = toGo(v, seen)
	})
	return m
}

// ToLua converts a bridge value into a Lua value.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case float64:
		return lua.LNumber(x)
	case float32:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case []any:
		t := L.CreateTable(len(x), 0)
		for _, item := range x {
			t.Append(ToLua(L, item))
		}
		return t
	case []string:
		t := L.CreateTable(len(x), 0)
		for _, item := range x {
			t.Append(lua.LString(item))
		}
		return t
	case map[string]any:
		t := L.CreateTable(0, len(x))
		for _, k := range sortedKeys(x) {
			t.RawSetString(k, ToLua(L, x[k]))
		}
		return t
	case map[string]string:
		t := L.CreateTable(0, len(x))
		for k, val := range x {
			t.RawSetString(k, lua.LString(val))
		}
		return t
	}
	return lua.LString(fmt.Sprint(v))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
