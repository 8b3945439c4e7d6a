package sandbox

import (
	"fmt"
	"math"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// circularRefKey is the fixed key name of the circular-reference placeholder
// emitted by fromLua instead of descending into an already-visited table.
const circularRefKey = "__circular_ref"

// toLua converts a host Bag into an interpreter value.
//
// An identifier-vs-bracketed key distinction only matters when a marshaller
// generates Lua *source text*.
// Here composite values are built directly through gopher-lua's table API
// (RawSetString / RawSet), which accepts any string or value as a key
// without any syntax restriction — so the identifier-vs-bracketed rule is
// satisfied automatically and round-trips special-character keys
// (`com.example.key`, `X-Header`) with no separate quoting logic needed.
func toLua(L *lua.LState, b Bag) lua.LValue {
	switch b.Kind {
	case KindNull:
		return lua.LNil
	case KindBool:
		return lua.LBool(b.Bool)
	case KindInt:
		return lua.LNumber(b.Int)
	case KindFloat:
		return lua.LNumber(b.Float)
	case KindString:
		return lua.LString(b.String)
	case KindSequence:
		tbl := L.NewTable()
		for i, v := range b.Sequence {
			tbl.RawSetInt(i+1, toLua(L, v))
		}
		return tbl
	case KindMapping:
		tbl := L.NewTable()
		for k, v := range b.Mapping {
			tbl.RawSetString(k, toLua(L, v))
		}
		return tbl
	default:
		return lua.LNil
	}
}

// fromLua converts an interpreter value back into a host Bag. visited tracks
// table identity (pointer equality) along the current descent path so a
// second encounter of the same table yields the circular-reference
// placeholder instead of infinite recursion.
func fromLua(v lua.LValue, visited map[*lua.LTable]int) (Bag, error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return Null(), nil
	case lua.LBool:
		return BoolOf(bool(val)), nil
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return IntOf(int64(f)), nil
		}
		return FloatOf(f), nil
	case lua.LString:
		return StringOf(string(val)), nil
	case *lua.LTable:
		return tableToBag(val, visited)
	default:
		return Bag{}, fmt.Errorf("non-marshallable interpreter value of type %T", v)
	}
}

func tableToBag(tbl *lua.LTable, visited map[*lua.LTable]int) (Bag, error) {
	if id, seen := visited[tbl]; seen {
		return MappingOf(map[string]Bag{circularRefKey: IntOf(int64(id))}), nil
	}
	id := len(visited)
	visited[tbl] = id
	defer delete(visited, tbl) // only guard the active descent path, not the whole marshal call

	type pair struct {
		key lua.LValue
		val lua.LValue
	}
	var pairs []pair
	key := lua.LValue(lua.LNil)
	for {
		k, v := tbl.Next(key)
		if k == lua.LNil {
			break
		}
		pairs = append(pairs, pair{k, v})
		key = k
	}

	// Sequence promotion: keys are exactly the integers 1..N, no gaps, no
	// other keys.
	intKeys := make(map[int64]lua.LValue, len(pairs))
	allInt := true
	for _, p := range pairs {
		n, ok := p.key.(lua.LNumber)
		if !ok || float64(n) != math.Trunc(float64(n)) {
			allInt = false
			break
		}
		intKeys[int64(n)] = p.val
	}
	if allInt && len(intKeys) == len(pairs) {
		n := int64(len(intKeys))
		complete := true
		for i := int64(1); i <= n; i++ {
			if _, ok := intKeys[i]; !ok {
				complete = false
				break
			}
		}
		if complete && n > 0 {
			seq := make([]Bag, n)
			for i := int64(1); i <= n; i++ {
				elem, err := fromLua(intKeys[i], visited)
				if err != nil {
					return Bag{}, err
				}
				seq[i-1] = elem
			}
			return SequenceOf(seq), nil
		}
		if n == 0 {
			// Empty table: ambiguous between empty sequence and empty
			// mapping. Treat as an empty mapping — there is no key
			// information to promote from.
			return MappingOf(map[string]Bag{}), nil
		}
	}

	// Otherwise: a mapping with stringified keys. Null values are omitted.
	out := make(map[string]Bag, len(pairs))
	for _, p := range pairs {
		elem, err := fromLua(p.val, visited)
		if err != nil {
			return Bag{}, err
		}
		if elem.IsNull() {
			continue
		}
		out[stringifyKey(p.key)] = elem
	}
	return MappingOf(out), nil
}

// stringifyKey renders a non-string Lua key (integer, float, boolean) as its
// string form.
func stringifyKey(v lua.LValue) string {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case lua.LBool:
		if bool(val) {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", v)
	}
}
