package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_Defaults(t *testing.T) {
	anchor, ok := Get(AnchorTypeID)
	assert.True(t, ok)
	assert.True(t, anchor.Extendable)
	assert.Equal(t, 10, anchor.MaxExtendLength)
	assert.True(t, anchor.AllowMultipleChains)

	def, ok := Get(DefaultTypeID)
	assert.True(t, ok)
	assert.False(t, def.Extendable)

	assert.False(t, IsValidTypeID(TypeID(999)))
}

func TestHandle_Nil(t *testing.T) {
	assert.True(t, Nil.IsNil())
	assert.False(t, Handle{Index: 0, Gen: 1}.IsNil())
	assert.Equal(t, "block(3:2)", Handle{Index: 3, Gen: 2}.String())
}
