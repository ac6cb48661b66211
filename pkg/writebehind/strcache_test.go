package writebehind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStringAdapterComposition tests apply, split, completion and resync
// merging on the character-sequence value
func TestStringAdapterComposition(t *testing.T) {
	a := StringAdapter{}

	v, err := a.ValueFromStorage("k", []byte("base"))
	require.NoError(t, err)
	assert.Equal(t, "base", v.String())

	v = a.ApplyUpdate(v, 'x')
	v = a.ApplyUpdate(v, 'y')
	assert.Equal(t, "basexy", v.String())

	split := a.SplitForWrite("k", v)
	require.True(t, split.HasPayload)
	assert.Equal(t, "xy", string(split.Payload))
	// The view survives the split unchanged
	assert.Equal(t, "basexy", split.Retained.String())

	// Nothing new accumulated: no payload
	again := a.SplitForWrite("k", split.Retained)
	assert.False(t, again.HasPayload)

	done := a.WriteCompleted(split.Retained, split.Payload)
	assert.Equal(t, "basexy", done.String())

	// A refresh read replaces the base; local tail rides on top
	merged, err := a.MergeWithResync("k", []byte("base###"), split.Retained, nil)
	require.NoError(t, err)
	assert.Equal(t, "base###xy", merged.String())
}

// TestStringAdapterMergeFailedWrites tests failed-write payload merging
func TestStringAdapterMergeFailedWrites(t *testing.T) {
	a := StringAdapter{}
	merged := a.MergeFailedWrites([]byte("ab"), []byte("cd"))
	assert.Equal(t, "abcd", string(merged))
}

// TestStringAdapterSplitAfterPartialCompletion tests interleaved splits
// and completions
func TestStringAdapterSplitAfterPartialCompletion(t *testing.T) {
	a := StringAdapter{}
	v, _ := a.ValueFromStorage("k", nil)

	v = a.ApplyUpdate(v, 'a')
	first := a.SplitForWrite("k", v)
	v = first.Retained

	v = a.ApplyUpdate(v, 'b')
	second := a.SplitForWrite("k", v)
	v = second.Retained

	assert.Equal(t, "a", string(first.Payload))
	assert.Equal(t, "b", string(second.Payload))
	assert.Equal(t, "ab", v.String())

	v = a.WriteCompleted(v, first.Payload)
	v = a.WriteCompleted(v, second.Payload)
	assert.Equal(t, "ab", v.String())
}
