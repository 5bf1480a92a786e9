package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromBytes(t *testing.T) {
	raw := make([]byte, 48)
	for i := range raw {
		raw[i] = byte(i)
	}
	k, ok := FromBytes(raw)
	require.True(t, ok)
	assert.Equal(t, raw, k.Bytes())

	_, ok = FromBytes(raw[:47])
	assert.False(t, ok, "wrong-length input must be rejected")
}

func TestValidatorKey_String(t *testing.T) {
	raw := make([]byte, 48)
	k, ok := FromBytes(raw)
	require.True(t, ok)
	assert.Equal(t, "0x", k.String()[:2])
	assert.Len(t, k.String(), 2+96)
}

func TestValidatorKey_ShortString(t *testing.T) {
	raw := make([]byte, 48)
	for i := range raw {
		raw[i] = byte(i)
	}
	k, _ := FromBytes(raw)
	short := k.ShortString()
	assert.Contains(t, short, "...")
	assert.True(t, len(short) < len(k.String()))
}

func TestValidatorKey_Less(t *testing.T) {
	a, _ := FromBytes(append([]byte{0x01}, make([]byte, 47)...))
	b, _ := FromBytes(append([]byte{0x02}, make([]byte, 47)...))
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))
}

func TestSort(t *testing.T) {
	a, _ := FromBytes(append([]byte{0x03}, make([]byte, 47)...))
	b, _ := FromBytes(append([]byte{0x01}, make([]byte, 47)...))
	c, _ := FromBytes(append([]byte{0x02}, make([]byte, 47)...))

	ks := []ValidatorKey{a, b, c}
	Sort(ks)
	assert.Equal(t, []ValidatorKey{b, c, a}, ks)
}
