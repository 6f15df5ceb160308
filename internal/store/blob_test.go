package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobLayout(t *testing.T) {
	slots := make([]*FaceRecord, 2)
	slots[1] = &FaceRecord{Name: "Bob"}
	slots[1].Feature[0] = 1.0

	blob := encodeBlob(slots)
	require.Len(t, blob, 2*RecordSize)

	// Slot 0 is free and fully zeroed.
	for _, b := range blob[:RecordSize] {
		require.Zero(t, b)
	}

	rec := blob[RecordSize:]
	assert.Equal(t, []byte("Bob\x00"), rec[:4])
	// 1.0f little endian
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3F}, rec[NameSize:NameSize+4])
	assert.Equal(t, byte(1), rec[RecordSize-1])
}

func TestDecodeBlob_InUseFlagWins(t *testing.T) {
	slots := []*FaceRecord{{Name: "Alice"}}
	blob := encodeBlob(slots)
	blob[RecordSize-1] = 0

	got, err := decodeBlob(blob, 1)
	require.NoError(t, err)
	assert.Nil(t, got[0], "name bytes without in_use are a free slot")
}
