package game

import "time"

// Simulation rates
const (
	FixedRate = 50 // physics steps per second
	FrameRate = 60 // presentation frames per second

	FixedDT = time.Second / FixedRate
	FrameDT = time.Second / FrameRate

	MaxPossessionStrength = 100.0
)

// BallTuning holds every ball constant. Field names are the config keys.
type BallTuning struct {
	MaxSpeed           float64 `mapstructure:"maxSpeed"`
	Drag               float64 `mapstructure:"drag"`
	FrictionHeight     float64 `mapstructure:"frictionHeight"`
	FrictionMinSpeed   float64 `mapstructure:"frictionMinSpeed"`
	PossessionRecovery float64 `mapstructure:"possessionRecovery"` // per second

	MagnetStrength    float64 `mapstructure:"magnetStrength"`
	DribbleDistance   float64 `mapstructure:"dribbleDistance"`
	DribbleSideOffset float64 `mapstructure:"dribbleSideOffset"`
	DribbleHeight     float64 `mapstructure:"dribbleHeight"`
	SwayFrequency     float64 `mapstructure:"swayFrequency"`
	MagnetBlend       float64 `mapstructure:"magnetBlend"`
	CarryFactor       float64 `mapstructure:"carryFactor"`
	SnapDistance      float64 `mapstructure:"snapDistance"`
	SnapCarryFactor   float64 `mapstructure:"snapCarryFactor"`
	RollSpinSpeed     float64 `mapstructure:"rollSpinSpeed"`
	RollTorque        float64 `mapstructure:"rollTorque"`

	KickSpin       float64 `mapstructure:"kickSpin"`
	LoftMin        float64 `mapstructure:"loftMin"`
	PassLift       float64 `mapstructure:"passLift"`
	KnockbackSpeed float64 `mapstructure:"knockbackSpeed"`
	KnockbackLift  float64 `mapstructure:"knockbackLift"`

	ReleaseWindow    time.Duration `mapstructure:"releaseWindow"`
	TackleWindow     time.Duration `mapstructure:"tackleWindow"`
	SkillResumeDelay time.Duration `mapstructure:"skillResumeDelay"`
}

func DefaultBallTuning() BallTuning {
	return BallTuning{
		MaxSpeed:           30,
		Drag:               2,
		FrictionHeight:     0.6,
		FrictionMinSpeed:   0.1,
		PossessionRecovery: 50,

		MagnetStrength:    15,
		DribbleDistance:   1.2,
		DribbleSideOffset: 0.3,
		DribbleHeight:     0.5,
		SwayFrequency:     3,
		MagnetBlend:       0.5,
		CarryFactor:       0.3,
		SnapDistance:      0.1,
		SnapCarryFactor:   0.8,
		RollSpinSpeed:     0.5,
		RollTorque:        2,

		KickSpin:       0.1,
		LoftMin:        0.5,
		PassLift:       0.1,
		KnockbackSpeed: 5,
		KnockbackLift:  0.2,

		ReleaseWindow:    500 * time.Millisecond,
		TackleWindow:     300 * time.Millisecond,
		SkillResumeDelay: 300 * time.Millisecond,
	}
}

// PlayerTuning holds every player constant.
type PlayerTuning struct {
	WalkSpeed     float64 `mapstructure:"walkSpeed"`
	RunSpeed      float64 `mapstructure:"runSpeed"`
	DribbleSpeed  float64 `mapstructure:"dribbleSpeed"`
	RotationSpeed float64 `mapstructure:"rotationSpeed"`
	Height        float64 `mapstructure:"height"`

	KickPower       float64 `mapstructure:"kickPower"`
	StrongKickPower float64 `mapstructure:"strongKickPower"`
	PassPower       float64 `mapstructure:"passPower"`
	ChipPower       float64 `mapstructure:"chipPower"`
	ShootLift       float64 `mapstructure:"shootLift"`
	PowerShotLift   float64 `mapstructure:"powerShotLift"`
	ChipLift        float64 `mapstructure:"chipLift"`

	DetectionRange float64 `mapstructure:"detectionRange"`
	DribbleRange   float64 `mapstructure:"dribbleRange"`

	SkillMoveSpeed     float64       `mapstructure:"skillMoveSpeed"`
	SkillForwardScale  float64       `mapstructure:"skillForwardScale"`
	SkillBackwardScale float64       `mapstructure:"skillBackwardScale"`
	SkillMoveCooldown  time.Duration `mapstructure:"skillMoveCooldown"`

	TackleRange      float64       `mapstructure:"tackleRange"`
	TackleStrength   float64       `mapstructure:"tackleStrength"`
	TackleCooldown   time.Duration `mapstructure:"tackleCooldown"`
	PickupRetryDelay time.Duration `mapstructure:"pickupRetryDelay"`

	KickDelay      time.Duration `mapstructure:"kickDelay"`
	PassDelay      time.Duration `mapstructure:"passDelay"`
	ChipDelay      time.Duration `mapstructure:"chipDelay"`
	ActionRecovery time.Duration `mapstructure:"actionRecovery"` // kick to end of action
}

func DefaultPlayerTuning() PlayerTuning {
	return PlayerTuning{
		WalkSpeed:     5,
		RunSpeed:      8,
		DribbleSpeed:  3.5,
		RotationSpeed: 10,
		Height:        1,

		KickPower:       15,
		StrongKickPower: 25,
		PassPower:       10,
		ChipPower:       12,
		ShootLift:       0.3,
		PowerShotLift:   0.4,
		ChipLift:        0.6,

		DetectionRange: 2.5,
		DribbleRange:   1.5,

		SkillMoveSpeed:     8,
		SkillForwardScale:  1.5,
		SkillBackwardScale: 0.8,
		SkillMoveCooldown:  time.Second,

		TackleRange:      2,
		TackleStrength:   60,
		TackleCooldown:   1500 * time.Millisecond,
		PickupRetryDelay: 400 * time.Millisecond,

		KickDelay:      300 * time.Millisecond,
		PassDelay:      200 * time.Millisecond,
		ChipDelay:      300 * time.Millisecond,
		ActionRecovery: 100 * time.Millisecond,
	}
}
