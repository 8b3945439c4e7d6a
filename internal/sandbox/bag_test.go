package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBag_CloneIsDeep(t *testing.T) {
	orig := MappingOf(map[string]Bag{
		"nums": SequenceOf([]Bag{IntOf(1), IntOf(2)}),
	})
	clone := orig.Clone()

	clone.Mapping["nums"].Sequence[0] = IntOf(99)
	assert.Equal(t, int64(1), orig.Mapping["nums"].Sequence[0].Int, "mutating the clone must not affect the original")
}

func TestBag_IsNull(t *testing.T) {
	assert.True(t, Null().IsNull())
	assert.False(t, IntOf(0).IsNull())
	assert.False(t, StringOf("").IsNull())
}

func TestBag_GoString(t *testing.T) {
	assert.Equal(t, "null", Null().GoString())
	assert.Equal(t, `"hi"`, StringOf("hi").GoString())
	assert.Equal(t, "true", BoolOf(true).GoString())
}
