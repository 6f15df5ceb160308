package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/andresmejia3/kiosk/internal/types"
)

// RecordSize is the encoded size of one slot: name, feature, in_use flag.
const RecordSize = NameSize + types.FeatureSize*4 + 1

// BlobSize is the encoded size of a store with capacity slots.
func BlobSize(capacity int) int {
	return capacity * RecordSize
}

// encodeBlob lays the slots out back to back. Free slots are all zero.
func encodeBlob(slots []*FaceRecord) []byte {
	buf := make([]byte, BlobSize(len(slots)))
	for i, r := range slots {
		if r == nil {
			continue
		}
		rec := buf[i*RecordSize : (i+1)*RecordSize]
		copy(rec[:NameSize-1], r.Name)
		off := NameSize
		for _, v := range r.Feature {
			binary.LittleEndian.PutUint32(rec[off:], math.Float32bits(v))
			off += 4
		}
		rec[off] = 1
	}
	return buf
}

func decodeBlob(data []byte, capacity int) ([]*FaceRecord, error) {
	if len(data) != BlobSize(capacity) {
		return nil, fmt.Errorf("blob is %d bytes, want %d for %d slots", len(data), BlobSize(capacity), capacity)
	}
	slots := make([]*FaceRecord, capacity)
	for i := range slots {
		rec := data[i*RecordSize : (i+1)*RecordSize]
		if rec[RecordSize-1] == 0 {
			continue
		}
		name := rec[:NameSize]
		if n := bytes.IndexByte(name, 0); n >= 0 {
			name = name[:n]
		}
		r := &FaceRecord{Name: string(name)}
		off := NameSize
		for j := range r.Feature {
			r.Feature[j] = math.Float32frombits(binary.LittleEndian.Uint32(rec[off:]))
			off += 4
		}
		slots[i] = r
	}
	return slots, nil
}
