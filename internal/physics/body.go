package physics

import "github.com/go-gl/mathgl/mgl64"

// Up is the world up axis.
var Up = mgl64.Vec3{0, 1, 0}

// Body is the rigid-body surface the gameplay core drives. Velocity may be
// overwritten directly; impulses and torques are applied through the
// primitives so mass and inertia stay the body's concern.
type Body interface {
	Position() mgl64.Vec3
	Velocity() mgl64.Vec3
	AngularVelocity() mgl64.Vec3
	SetVelocity(v mgl64.Vec3)
	AddImpulse(j mgl64.Vec3)
	AddTorque(t mgl64.Vec3)
	AddTorqueImpulse(t mgl64.Vec3)
}

// BodyConfig describes a sphere body.
type BodyConfig struct {
	Mass               float64 `mapstructure:"mass"`
	Radius             float64 `mapstructure:"radius"`
	AngularDrag        float64 `mapstructure:"angularDrag"`
	MaxAngularVelocity float64 `mapstructure:"maxAngularVelocity"`
}

// DefaultBallBody matches a size-5 arcade ball at a 1 unit = 1 m scale.
func DefaultBallBody() BodyConfig {
	return BodyConfig{
		Mass:               1,
		Radius:             0.5,
		AngularDrag:        0.05,
		MaxAngularVelocity: 100,
	}
}

// RigidBody is a solid sphere integrated by World.
type RigidBody struct {
	cfg      BodyConfig
	pos      mgl64.Vec3
	vel      mgl64.Vec3
	angVel   mgl64.Vec3
	torque   mgl64.Vec3
	invMass  float64
	invInert float64
}

func NewRigidBody(cfg BodyConfig, pos mgl64.Vec3) *RigidBody {
	if cfg.Mass <= 0 {
		cfg.Mass = 1
	}
	if cfg.Radius <= 0 {
		cfg.Radius = 0.5
	}
	// I = 2/5 m r² for a solid sphere
	inertia := 0.4 * cfg.Mass * cfg.Radius * cfg.Radius
	return &RigidBody{
		cfg:      cfg,
		pos:      pos,
		invMass:  1 / cfg.Mass,
		invInert: 1 / inertia,
	}
}

func (b *RigidBody) Position() mgl64.Vec3        { return b.pos }
func (b *RigidBody) Velocity() mgl64.Vec3        { return b.vel }
func (b *RigidBody) AngularVelocity() mgl64.Vec3 { return b.angVel }
func (b *RigidBody) Radius() float64             { return b.cfg.Radius }
func (b *RigidBody) Mass() float64               { return b.cfg.Mass }

func (b *RigidBody) SetVelocity(v mgl64.Vec3) { b.vel = v }

// SetPosition teleports the body. Velocity is left alone.
func (b *RigidBody) SetPosition(p mgl64.Vec3) { b.pos = p }

func (b *RigidBody) AddImpulse(j mgl64.Vec3) {
	b.vel = b.vel.Add(j.Mul(b.invMass))
}

// AddTorque accumulates a continuous torque applied on the next Step.
func (b *RigidBody) AddTorque(t mgl64.Vec3) {
	b.torque = b.torque.Add(t)
}

func (b *RigidBody) AddTorqueImpulse(t mgl64.Vec3) {
	b.angVel = b.clampSpin(b.angVel.Add(t.Mul(b.invInert)))
}

func (b *RigidBody) integrate(gravity mgl64.Vec3, dt float64) {
	b.vel = b.vel.Add(gravity.Mul(dt))
	b.pos = b.pos.Add(b.vel.Mul(dt))

	b.angVel = b.angVel.Add(b.torque.Mul(b.invInert * dt))
	b.torque = mgl64.Vec3{}
	if b.cfg.AngularDrag > 0 {
		b.angVel = b.angVel.Mul(mgl64.Clamp(1-b.cfg.AngularDrag*dt, 0, 1))
	}
	b.angVel = b.clampSpin(b.angVel)
}

func (b *RigidBody) clampSpin(w mgl64.Vec3) mgl64.Vec3 {
	limit := b.cfg.MaxAngularVelocity
	if limit <= 0 {
		return w
	}
	if l := w.Len(); l > limit {
		return w.Mul(limit / l)
	}
	return w
}

// Normalize returns the unit vector of v, or the zero vector when v is too
// short to carry a direction.
func Normalize(v mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return mgl64.Vec3{}
	}
	return v.Mul(1 / l)
}
