package game

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_NewMatchPlacesBallOnCenterSpot(t *testing.T) {
	m := newTestMatch(t, nil)
	assert.Equal(t, "test", m.ID)
	assert.Equal(t, mgl64.Vec3{0, 0.5, 0}, m.Ball().Position())
	assert.Equal(t, BallFree, m.Ball().Phase())
	assert.Zero(t, m.Now())
}

func TestMatch_AdvanceRunsFixedStepsBeforeFrame(t *testing.T) {
	m := newTestMatch(t, nil)

	m.Advance(FrameDT, nil)
	assert.Zero(t, m.Now())
	assert.Equal(t, uint32(1), m.Frame())

	m.Advance(FrameDT, nil)
	assert.Equal(t, FixedDT, m.Now())

	m.Advance(FrameDT, nil)
	assert.Equal(t, 2*FixedDT, m.Now())

	for i := 3; i < FrameRate; i++ {
		m.Advance(FrameDT, nil)
	}
	assert.Equal(t, uint32(FrameRate), m.Frame())
	assert.Equal(t, 49*FixedDT, m.Now(), "60 frames of 16.666666ms leave the 50th step pending")

	m.Advance(100*time.Millisecond, nil)
	assert.Equal(t, 54*FixedDT, m.Now())
}

func TestMatch_AddPlayerIsIdempotent(t *testing.T) {
	m := newTestMatch(t, nil)
	a := m.AddPlayer("a", "A", mgl64.Vec3{}, 0)
	assert.Same(t, a, m.AddPlayer("a", "Other", mgl64.Vec3{5, 0, 5}, 0))
	assert.Len(t, m.Players(), 1)
	assert.Equal(t, "A", a.Name())
}

func TestMatch_RemovePlayer(t *testing.T) {
	m, home, away := withHolder(t, nil)

	m.RemovePlayer("home")
	m.RemovePlayer("missing")

	assert.Equal(t, []*Player{away}, m.Players())
	assert.False(t, m.Ball().HeldBy(home))
	assert.True(t, m.Ball().IsLoose())
}

func TestMatch_PossessionEvents(t *testing.T) {
	m := newTestMatch(t, nil)
	m.AddPlayer("p", "P", mgl64.Vec3{0, 0, -1}, 0)

	m.Advance(FrameDT, nil)
	ev := eventsOf(m.DrainEvents(), EventPossession)
	require.Len(t, ev, 1)
	assert.Equal(t, "p", ev[0].PlayerID)
	assert.Equal(t, uint32(1), ev[0].Tick)

	m.Advance(FrameDT, nil)
	assert.Empty(t, m.DrainEvents(), "no change, no event")

	m.Advance(FrameDT, map[string]Input{"p": {Release: true}})
	ev = eventsOf(m.DrainEvents(), EventPossession)
	require.Len(t, ev, 1)
	assert.Empty(t, ev[0].PlayerID)
}

func TestMatch_SnapshotDrainsEvents(t *testing.T) {
	m := newTestMatch(t, nil)
	m.AddPlayer("p", "P", mgl64.Vec3{0, 0, -1}, 0)
	m.AddPlayer("q", "Q", mgl64.Vec3{0, 0, 10}, math.Pi)

	m.Advance(FrameDT, map[string]Input{"p": {Shoot: true}})
	s := m.Snapshot()

	assert.Equal(t, uint32(1), s.Tick)
	require.Len(t, s.Players, 2)
	assert.Equal(t, "p", s.Players[0].ID)
	assert.Equal(t, "q", s.Players[1].ID)
	assert.True(t, s.Players[0].HasBall)
	assert.True(t, s.Players[0].Performing)
	assert.Equal(t, "possessed", s.Ball.Phase)
	assert.Equal(t, "p", s.Ball.Holder)

	kicks := eventsOf(s.Events, EventKick)
	require.Len(t, kicks, 1)
	assert.Equal(t, "shoot", kicks[0].Action)

	assert.Empty(t, m.Snapshot().Events)
}

func TestMatch_CheckPossessionFlagsControlOutOfRange(t *testing.T) {
	m, home, _ := withHolder(t, nil)
	require.NoError(t, m.checkPossession())

	home.SetPosition(mgl64.Vec3{0, 0, -1.8})
	assert.Error(t, m.checkPossession())

	home.UpdateProximity()
	assert.NoError(t, m.checkPossession())
	assert.False(t, m.Ball().HeldBy(home))
}

func TestMatch_BallIndex(t *testing.T) {
	m := newTestMatch(t, nil)

	b, d := m.index.NearestBall(mgl64.Vec3{0, 0.5, -2}, 2.5)
	assert.Same(t, m.Ball(), b)
	assert.InDelta(t, 2, d, 1e-9)

	b, _ = m.index.NearestBall(mgl64.Vec3{0, 0.5, -3}, 2.5)
	assert.Nil(t, b)

	assert.Len(t, m.index.BallsWithin(mgl64.Vec3{}, 1), 1)
	assert.Empty(t, m.index.BallsWithin(mgl64.Vec3{10, 0, 0}, 1))
}

// Random play never breaks the possession invariants.
func TestMatch_RandomPlayKeepsInvariants(t *testing.T) {
	m := newTestMatch(t, func(c *MatchConfig) {
		// make tackles win often enough to matter
		c.Player.TackleStrength = 70
		c.Player.TackleCooldown = 300 * time.Millisecond
	})
	ids := []string{"a", "b", "c"}
	m.AddPlayer("a", "A", mgl64.Vec3{0, 0, -1}, 0)
	m.AddPlayer("b", "B", mgl64.Vec3{1, 0, 1}, math.Pi)
	m.AddPlayer("c", "C", mgl64.Vec3{-1, 0, 0.5}, math.Pi/2)

	rng := rand.New(rand.NewPCG(7, 11))
	holders := map[string]bool{}
	for frame := 0; frame < 3000; frame++ {
		inputs := make(map[string]Input, len(ids))
		for _, id := range ids {
			// steer back toward the ball so the players stay in contact
			p := m.Player(id)
			to := m.Ball().Position().Sub(p.Position())
			in := Input{
				MoveX:  mgl64.Clamp(to.X()+rng.Float64()-0.5, -1, 1),
				MoveZ:  mgl64.Clamp(to.Z()+rng.Float64()-0.5, -1, 1),
				Sprint: rng.IntN(3) == 0,
			}
			switch rng.IntN(40) {
			case 0:
				in.Shoot = true
			case 1:
				in.Pass = true
			case 2:
				in.Chip = true
			case 3:
				in.PowerShot = true
			case 4:
				in.Release = true
			case 5, 6, 7:
				in.Skill = uint8(1 + rng.IntN(SkillMoveCount))
			case 8, 9, 10, 11, 12:
				in.Tackle = true
			}
			inputs[id] = in
		}
		m.Advance(FrameDT, inputs)

		require.NoError(t, m.checkPossession(), "frame %d", frame)
		b := m.Ball()
		if b.Phase() != BallInFlight {
			require.Equal(t, b.IsPossessed(), b.Holder() != nil, "frame %d", frame)
		}
		require.GreaterOrEqual(t, b.PossessionStrength(), 0.0)
		require.LessOrEqual(t, b.PossessionStrength(), MaxPossessionStrength)
		require.GreaterOrEqual(t, b.LooseTimer(), time.Duration(0))
		if h := b.Holder(); h != nil {
			holders[h.ID()] = true
		}
		m.DrainEvents()
	}
	assert.GreaterOrEqual(t, len(holders), 2, "possession changed hands")
}
