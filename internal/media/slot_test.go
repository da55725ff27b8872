package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// encodeLE packs samples the way the wire carries them.
func encodeLE(samples ...int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[2*i] = byte(s)
		data[2*i+1] = byte(s >> 8)
	}
	return data
}

func TestSlotEmptyYieldsSilence(t *testing.T) {
	slot := NewPlaybackSlot()

	out := make([]int16, 8)
	for i := range out {
		out[i] = 99 // stale data that must be cleared
	}

	assert.False(t, slot.ReadInto(out))
	assert.Equal(t, make([]int16, 8), out)
}

func TestSlotLastWriterWins(t *testing.T) {
	slot := NewPlaybackSlot()
	slot.Write(encodeLE(1, 1, 1, 1))
	slot.Write(encodeLE(2, 2, 2, 2))

	out := make([]int16, 4)
	assert.True(t, slot.ReadInto(out))
	assert.Equal(t, []int16{2, 2, 2, 2}, out)
}

func TestSlotReadDrains(t *testing.T) {
	slot := NewPlaybackSlot()
	slot.Write(encodeLE(7, 7))

	out := make([]int16, 2)
	assert.True(t, slot.ReadInto(out))
	assert.False(t, slot.ReadInto(out), "second read should find the slot empty")
	assert.Equal(t, []int16{0, 0}, out)
}

func TestSlotShortFrameIsZeroPadded(t *testing.T) {
	slot := NewPlaybackSlot()
	slot.Write(encodeLE(5, 6))

	out := make([]int16, 4)
	assert.True(t, slot.ReadInto(out))
	assert.Equal(t, []int16{5, 6, 0, 0}, out)
}

func TestSlotLongFrameIsTruncated(t *testing.T) {
	slot := NewPlaybackSlot()
	slot.Write(encodeLE(1, 2, 3, 4, 5, 6))

	out := make([]int16, 3)
	assert.True(t, slot.ReadInto(out))
	assert.Equal(t, []int16{1, 2, 3}, out)
}

func TestSlotNegativeSamplesSurviveDecoding(t *testing.T) {
	slot := NewPlaybackSlot()
	slot.Write(encodeLE(-32768, -1, 32767))

	out := make([]int16, 3)
	assert.True(t, slot.ReadInto(out))
	assert.Equal(t, []int16{-32768, -1, 32767}, out)
}
