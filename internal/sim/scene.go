// Package sim stands in for the camera and the face detector so the kiosk
// can run end to end without hardware.
package sim

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/andresmejia3/kiosk/internal/types"
)

// Embedding is the feature vector of name. The same name always yields the
// same unit vector, and distinct names are close to orthogonal.
func Embedding(name string) types.Feature {
	h := fnv.New64a()
	h.Write([]byte(name))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))

	var f types.Feature
	var norm float64
	for i := range f {
		v := r.NormFloat64()
		f[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range f {
		f[i] = float32(float64(f[i]) / norm)
	}
	return f
}

// Scene is who stands in front of the camera.
type Scene struct {
	mu  sync.RWMutex
	who string
}

// Enter puts name in front of the camera.
func (s *Scene) Enter(name string) {
	s.mu.Lock()
	s.who = name
	s.mu.Unlock()
}

// Leave empties the scene.
func (s *Scene) Leave() {
	s.Enter("")
}

// Who is the current visitor, empty when nobody is there.
func (s *Scene) Who() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.who
}

// Fill paints an RGB565 frame: a moving gradient, tinted while someone is
// in the scene.
func (s *Scene) Fill(seq int, buf []byte) {
	tint := uint16(0)
	if s.Who() != "" {
		tint = 0x1F << 11
	}
	for i := 0; i+1 < len(buf); i += 2 {
		px := uint16(i/2+seq)&0x07FF | tint
		buf[i] = byte(px)
		buf[i+1] = byte(px >> 8)
	}
}

// Detector reports the scene's visitor as a single face.
type Detector struct {
	Scene *Scene
}

func (d *Detector) Detect(f types.Frame) ([]types.Candidate, error) {
	who := d.Scene.Who()
	if who == "" {
		return nil, nil
	}
	feature := Embedding(who)
	box := types.Region{f.Height / 4, 3 * f.Width / 4, 3 * f.Height / 4, f.Width / 4}
	return []types.Candidate{{Loc: box, Vec: feature[:], Score: 0.99}}, nil
}
