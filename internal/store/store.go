// Package store keeps the bounded set of enrolled faces.
//
// Slots are addressed by index and a slot's index is the record's identity.
// The whole slot array is persisted as one fixed-size blob after every
// mutation.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/andresmejia3/kiosk/internal/kv"
	"github.com/andresmejia3/kiosk/internal/types"
	"github.com/rs/zerolog/log"
)

const (
	// MaxFaces is the default slot capacity.
	MaxFaces = 3
	// NameSize is the on-disk name field, including the NUL terminator.
	NameSize = 32
	// MaxNameLen is the longest name that survives a round trip.
	MaxNameLen = NameSize - 1
	// BlobKey is the key the slot array is stored under.
	BlobKey = "faces"
)

var (
	// ErrInvalidIndex is returned by Delete for an out-of-range or free slot.
	ErrInvalidIndex = errors.New("invalid face slot")
	// ErrPersist wraps backend failures. The in-memory mutation stands.
	ErrPersist = errors.New("persist faces")
)

// FaceRecord is one enrolled face.
type FaceRecord struct {
	Name    string
	Feature types.Feature
}

// Entry is a used slot together with its index.
type Entry struct {
	Slot int
	FaceRecord
}

// FaceStore is safe for concurrent use: the recognition matcher reads it
// from the camera goroutine while the UI mutates it.
type FaceStore struct {
	backend kv.Store

	mu    sync.RWMutex
	slots []*FaceRecord // nil is a free slot
}

// New returns an empty store with capacity slots backed by backend.
func New(backend kv.Store, capacity int) *FaceStore {
	if capacity <= 0 {
		capacity = MaxFaces
	}
	return &FaceStore{backend: backend, slots: make([]*FaceRecord, capacity)}
}

// Load replaces the slots with the persisted blob. A missing blob leaves the
// store empty and is not an error. A blob of the wrong size is ignored.
func (s *FaceStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.slots)
	data, err := s.backend.Get(ctx, BlobKey)
	if errors.Is(err, kv.ErrNotFound) {
		log.Info().Msg("No stored faces, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load faces: %w", err)
	}

	slots, err := decodeBlob(data, len(s.slots))
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring stored faces")
		return nil
	}
	s.slots = slots
	log.Info().Int("count", s.countLocked()).Msg("Loaded faces")
	return nil
}

// Enroll stores name with an empty feature. See EnrollWithFeature.
func (s *FaceStore) Enroll(ctx context.Context, name string) (int, error) {
	return s.EnrollWithFeature(ctx, name, types.Feature{})
}

// EnrollWithFeature writes name into the first free slot. When every slot is
// used, the first used slot in scan order is overwritten instead. This is not
// an LRU: slot order, not enrollment time, picks the victim.
// Names longer than MaxNameLen are truncated.
func (s *FaceStore) EnrollWithFeature(ctx context.Context, name string, feature types.Feature) (int, error) {
	name = truncateName(name)
	if name == "" {
		return -1, errors.New("empty face name")
	}

	s.mu.Lock()
	slot := s.firstFreeLocked()
	if slot < 0 {
		slot = s.firstUsedLocked()
		log.Warn().Int("slot", slot).Str("evicted", s.slots[slot].Name).Str("name", name).Msg("Face store full, overwriting")
	}
	s.slots[slot] = &FaceRecord{Name: name, Feature: feature}
	blob := encodeBlob(s.slots)
	s.mu.Unlock()

	log.Info().Int("slot", slot).Str("name", name).Msg("Face enrolled")
	return slot, s.persist(ctx, blob)
}

// Delete frees slot i. Deleting a free or out-of-range slot only logs.
func (s *FaceStore) Delete(ctx context.Context, i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.slots) || s.slots[i] == nil {
		s.mu.Unlock()
		log.Warn().Int("slot", i).Msg("Delete of unused face slot ignored")
		return fmt.Errorf("%w: %d", ErrInvalidIndex, i)
	}
	name := s.slots[i].Name
	s.slots[i] = nil
	blob := encodeBlob(s.slots)
	s.mu.Unlock()

	log.Info().Int("slot", i).Str("name", name).Msg("Face deleted")
	return s.persist(ctx, blob)
}

// Reset frees every slot and persists the empty array.
func (s *FaceStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	clear(s.slots)
	blob := encodeBlob(s.slots)
	s.mu.Unlock()
	return s.persist(ctx, blob)
}

func (s *FaceStore) persist(ctx context.Context, blob []byte) error {
	if err := s.backend.Set(ctx, BlobKey, blob); err != nil {
		log.Error().Err(err).Msg("Failed to stage faces")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := s.backend.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to commit faces")
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// IsFull reports whether every slot is used.
func (s *FaceStore) IsFull() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstFreeLocked() < 0
}

// Count is the number of used slots.
func (s *FaceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked()
}

// Capacity is the number of slots.
func (s *FaceStore) Capacity() int {
	return len(s.slots)
}

// Get returns the record in slot i.
func (s *FaceStore) Get(i int) (FaceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.slots) || s.slots[i] == nil {
		return FaceRecord{}, false
	}
	return *s.slots[i], true
}

// Entries returns a copy of the used slots in slot order.
func (s *FaceStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.slots))
	for i, r := range s.slots {
		if r != nil {
			out = append(out, Entry{Slot: i, FaceRecord: *r})
		}
	}
	return out
}

func (s *FaceStore) countLocked() int {
	n := 0
	for _, r := range s.slots {
		if r != nil {
			n++
		}
	}
	return n
}

func (s *FaceStore) firstFreeLocked() int {
	for i, r := range s.slots {
		if r == nil {
			return i
		}
	}
	return -1
}

func (s *FaceStore) firstUsedLocked() int {
	for i, r := range s.slots {
		if r != nil {
			return i
		}
	}
	return -1
}

func truncateName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	if len(name) > MaxNameLen {
		// Cut on a rune boundary so the stored name stays valid UTF-8.
		cut := MaxNameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name
}
