package physics

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

const DefaultGravity = -9.81

// Hit is a body found by a radius query.
type Hit struct {
	Body     *RigidBody
	Distance float64
}

// World owns the rigid bodies and the pitch. It is not safe for concurrent
// use; the match loop is its only caller.
type World struct {
	Gravity mgl64.Vec3
	Pitch   Pitch
	bodies  []*RigidBody
}

func NewWorld(pitch Pitch) *World {
	return &World{
		Gravity: mgl64.Vec3{0, DefaultGravity, 0},
		Pitch:   pitch,
	}
}

func (w *World) Add(b *RigidBody) {
	if b == nil || slices.Contains(w.bodies, b) {
		return
	}
	w.bodies = append(w.bodies, b)
}

func (w *World) Remove(b *RigidBody) {
	w.bodies = slices.DeleteFunc(w.bodies, func(o *RigidBody) bool { return o == b })
}

func (w *World) Len() int { return len(w.bodies) }

// Step integrates every body by dt seconds and resolves pitch contacts.
func (w *World) Step(dt float64) {
	if dt <= 0 {
		return
	}
	for _, b := range w.bodies {
		b.integrate(w.Gravity, dt)
		w.Pitch.collide(b, dt)
	}
}

// Within returns the bodies whose centers lie within radius of center,
// nearest first.
func (w *World) Within(center mgl64.Vec3, radius float64) []Hit {
	var hits []Hit
	for _, b := range w.bodies {
		d := b.pos.Sub(center).Len()
		if d <= radius {
			hits = append(hits, Hit{Body: b, Distance: d})
		}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	return hits
}
