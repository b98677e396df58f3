package game

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultCountdown is the pause between matchmaking and kick-off.
const DefaultCountdown = 3 * time.Second

type GamePhase uint8

const (
	PhaseWaiting GamePhase = iota
	PhaseCountdown
	PhasePlaying
)

type AnimState uint8

const (
	AnimIdle AnimState = iota
	AnimRun
	AnimDribble
	AnimKick
)

// Input is one player's control state for a frame. Movement axes are
// world-space; the boolean fields and Skill are single-frame edges.
type Input struct {
	MoveX     float64 `json:"moveX"`
	MoveZ     float64 `json:"moveZ"`
	Sprint    bool    `json:"sprint"`
	Shoot     bool    `json:"shoot"`
	PowerShot bool    `json:"powerShot"`
	Pass      bool    `json:"pass"`
	Chip      bool    `json:"chip"`
	Release   bool    `json:"release"`
	Skill     uint8   `json:"skill"` // 0 none, 1..4 preset
	Tackle    bool    `json:"tackle"`
	Tick      uint32  `json:"tick"`
}

// Merge folds a newer input into a pending one: axes take the newer value,
// edges stay set until consumed.
func (in Input) Merge(next Input) Input {
	out := next
	out.Shoot = in.Shoot || next.Shoot
	out.PowerShot = in.PowerShot || next.PowerShot
	out.Pass = in.Pass || next.Pass
	out.Chip = in.Chip || next.Chip
	out.Release = in.Release || next.Release
	out.Tackle = in.Tackle || next.Tackle
	if next.Skill == 0 {
		out.Skill = in.Skill
	}
	return out
}

// Clamped limits the movement axes to [-1, 1]. A non-finite axis reads as
// no movement.
func (in Input) Clamped() Input {
	in.MoveX = clampAxis(in.MoveX)
	in.MoveZ = clampAxis(in.MoveZ)
	return in
}

func clampAxis(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return mgl64.Clamp(v, -1, 1)
}

// Edges clears the single-frame fields, keeping movement.
func (in Input) Edges() Input {
	return Input{MoveX: in.MoveX, MoveZ: in.MoveZ, Sprint: in.Sprint, Tick: in.Tick}
}

type PlayerState struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	X          float32   `json:"x"`
	Y          float32   `json:"y"`
	Z          float32   `json:"z"`
	Yaw        float32   `json:"yaw"`
	HasBall    bool      `json:"hasBall"`
	Performing bool      `json:"performing"`
	Anim       AnimState `json:"anim"`
}

type BallState struct {
	X         float32 `json:"x"`
	Y         float32 `json:"y"`
	Z         float32 `json:"z"`
	VX        float32 `json:"vx"`
	VY        float32 `json:"vy"`
	VZ        float32 `json:"vz"`
	Phase     string  `json:"phase"`
	Possessed bool    `json:"possessed"`
	Holder    string  `json:"holder,omitempty"`
	Strength  float32 `json:"strength"`
	LooseMS   uint16  `json:"looseMs"`
}

// Event types emitted to the presentation layer.
const (
	EventKick       = "kick"
	EventSkillMove  = "skill_move"
	EventPossession = "possession"
	EventTackle     = "tackle"
)

// Event is a fire-and-forget presentation trigger.
type Event struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId,omitempty"`
	Action   string `json:"action,omitempty"`
	Skill    int    `json:"skill,omitempty"` // 1-based preset
	Tick     uint32 `json:"tick"`
}

type GameState struct {
	Tick       uint32        `json:"tick"`
	Phase      GamePhase     `json:"phase"`
	PhaseTimer float32       `json:"phaseTimer"`
	Players    []PlayerState `json:"players"`
	Ball       BallState     `json:"ball"`
	Events     []Event       `json:"events,omitempty"`
}
