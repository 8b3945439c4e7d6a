package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_AcceptsWellFormedEntry(t *testing.T) {
	assert.Nil(t, Validate("function run(c) return c end"))
	assert.Nil(t, Validate("function run (c)\n  return c\nend"))
}

func TestValidate_RejectsMissingEntry(t *testing.T) {
	err := Validate("function other(c) return c end")
	if assert.NotNil(t, err) {
		assert.Equal(t, KindMissingEntry, err.Kind)
	}
}

func TestValidate_RejectsDangerousConstructs(t *testing.T) {
	cases := []string{
		"function run(c) os.execute('x') return c end",
		"function run(c) io.write('x') return c end",
		"function run(c) require('socket') return c end",
		"function run(c) local f = load('return 1') return c end",
		"function run(c) loadstring('return 1') return c end",
		"function run(c) dofile('x.lua') return c end",
		"function run(c) loadfile('x.lua') return c end",
		"function run(c) getfenv(0) return c end",
		"function run(c) setfenv(1, {}) return c end",
		"function run(c) debug.getinfo(1) return c end",
		"function run(c) local g = _G return c end",
		"function run(c) rawget(_G, 'os') return c end",
		"function run(c) rawset(_G, 'x', 1) return c end",
		"function run(c) getmetatable(_G) return c end",
	}
	for _, src := range cases {
		err := Validate(src)
		if assert.NotNilf(t, err, "expected rejection for: %s", src) {
			assert.Equal(t, KindDangerousConstruct, err.Kind)
		}
	}
}

func TestValidate_RejectsStringConcatObfuscation(t *testing.T) {
	err := Validate(`function run(c) local n = ("o") .. ("s") return c end`)
	if assert.NotNil(t, err) {
		assert.Equal(t, KindDangerousConstruct, err.Kind)
	}
}

func TestValidate_IsPure(t *testing.T) {
	src := "function run(c) return c end"
	first := Validate(src)
	second := Validate(src)
	assert.Equal(t, first, second)
}
