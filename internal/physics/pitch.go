package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pitch is the static collision geometry: a ground plane at y=0 and four
// boundary walls around the playing area, centered on the origin.
type Pitch struct {
	HalfWidth       float64 `mapstructure:"halfWidth"`  // x extent
	HalfLength      float64 `mapstructure:"halfLength"` // z extent
	FloorBounce     float64 `mapstructure:"floorBounce"`
	WallBounce      float64 `mapstructure:"wallBounce"`
	SettleSpeed     float64 `mapstructure:"settleSpeed"` // vertical speed below which a bounce stops
	ContactFriction float64 `mapstructure:"contactFriction"`
}

func DefaultPitch() Pitch {
	return Pitch{
		HalfWidth:       34,
		HalfLength:      52.5,
		FloorBounce:     0.6,
		WallBounce:      0.8,
		SettleSpeed:     0.5,
		ContactFriction: 0.6,
	}
}

// collide resolves a sphere against the floor and walls.
func (p Pitch) collide(b *RigidBody, dt float64) {
	r := b.Radius()
	pos, vel := b.pos, b.vel

	// Floor
	if pos[1]-r <= 0 {
		pos[1] = r
		if vel[1] < 0 {
			vel[1] = -vel[1] * p.FloorBounce
			if vel[1] < p.SettleSpeed {
				vel[1] = 0
			}
		}
		// Rolling contact bleeds spin toward the rolling rate.
		if p.ContactFriction > 0 {
			roll := Up.Cross(vel).Mul(1 / r)
			k := mgl64.Clamp(p.ContactFriction*dt*10, 0, 1)
			b.angVel = b.angVel.Add(roll.Sub(b.angVel).Mul(k))
		}
	}

	// Side walls (x)
	if p.HalfWidth > 0 {
		if pos[0]-r < -p.HalfWidth {
			pos[0] = -p.HalfWidth + r
			vel[0] = math.Abs(vel[0]) * p.WallBounce
		}
		if pos[0]+r > p.HalfWidth {
			pos[0] = p.HalfWidth - r
			vel[0] = -math.Abs(vel[0]) * p.WallBounce
		}
	}

	// End walls (z)
	if p.HalfLength > 0 {
		if pos[2]-r < -p.HalfLength {
			pos[2] = -p.HalfLength + r
			vel[2] = math.Abs(vel[2]) * p.WallBounce
		}
		if pos[2]+r > p.HalfLength {
			pos[2] = p.HalfLength - r
			vel[2] = -math.Abs(vel[2]) * p.WallBounce
		}
	}

	b.pos, b.vel = pos, vel
}

// Clamp keeps a kinematic point inside the walls with the given margin.
func (p Pitch) Clamp(pos mgl64.Vec3, margin float64) mgl64.Vec3 {
	if p.HalfWidth > 0 {
		pos[0] = mgl64.Clamp(pos[0], -p.HalfWidth+margin, p.HalfWidth-margin)
	}
	if p.HalfLength > 0 {
		pos[2] = mgl64.Clamp(pos[2], -p.HalfLength+margin, p.HalfLength-margin)
	}
	return pos
}
