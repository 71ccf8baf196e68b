package world

import (
	"testing"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/actor"
	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
	"github.com/jwebster45206/stealth-engine/pkg/fault"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/guard"
	"github.com/jwebster45206/stealth-engine/pkg/sandbox"
	"github.com/jwebster45206/stealth-engine/pkg/scenario"
	"github.com/jwebster45206/stealth-engine/pkg/trust"
	"github.com/jwebster45206/stealth-engine/pkg/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const step = 50 * time.Millisecond

func testScenario() *scenario.Scenario {
	return &scenario.Scenario{
		Name:     "Test Yard",
		PlayerID: "player",
		Player:   scenario.PlayerSpec{Start: geom.V(0, 0), Speed: 3},
		NPCs: []actor.NPC{{
			ID:                "clerk",
			Name:              "Mara",
			Position:          geom.V(2, 0),
			InteractionRadius: 3,
			Guard:             "g1",
			Trust:             actor.TrustSpec{Start: 40, Max: 100, Low: 32, Mid: 50, High: 80},
			Dialogue: actor.DialogueSpec{
				Timeout: dialogue.Choice{Label: "(silence)", TrustDelta: -5},
				Layers: []dialogue.Layer{
					{NPCLine: "Who sent you?", Choices: []dialogue.Choice{
						{Label: "The harbormaster.", TrustDelta: 5},
						{Label: "Nobody.", TrustDelta: -15},
					}},
					{NPCLine: "Fine.", Choices: []dialogue.Choice{
						{Label: "Thanks.", TrustDelta: 1},
					}},
				},
			},
		}},
		Guards: []actor.Guard{{
			ID:             "g1",
			Name:           "Orrin",
			Route:          []actor.Waypoint{{Pos: geom.V(30, 30)}},
			PatrolSpeed:    1,
			ChaseSpeed:     4,
			CatchRadius:    1,
			ChaseGrace:     5,
			MemoryDuration: 20,
			Vision:         actor.VisionSpec{Radius: 5, FOVDegrees: 90},
		}},
		Dialogue: scenario.DialogueSettings{LinePause: 0.1, ReactionDuration: 0.1, Seed: 1},
	}
}

func talkativeGuard() actor.Guard {
	return actor.Guard{
		ID:           "g2",
		Name:         "Tessaly",
		Route:        []actor.Waypoint{{Pos: geom.V(0, 2)}},
		PatrolSpeed:  1,
		ChaseSpeed:   4,
		CatchRadius:  0.5,
		ConfirmDelay: 10,
		Vision:       actor.VisionSpec{Radius: 5, FOVDegrees: 360, ConversationRadius: 3},
		Dialogue: &actor.DialogueSpec{
			Timeout: dialogue.Choice{Label: "(stare)", TrustDelta: -2},
			Layers: []dialogue.Layer{
				{NPCLine: "Dock's closed.", Choices: []dialogue.Choice{
					{Label: "Foreman asked me to stay.", TrustDelta: 3},
					{Label: "Step aside.", TrustDelta: -5, Hostile: true},
				}},
			},
		},
	}
}

type fixture struct {
	world    *World
	space    *sandbox.Space
	player   *sandbox.Player
	walkers  map[string]*sandbox.Walker
	rec      *sandbox.Recorder
	escalate [][2]string
	caught   []string
	endings  map[string]trust.Tier
	ended    map[string]dialogue.EndReason
	alarms   []bool
	detected int
	states   map[string][]guard.State
}

func newFixture(t *testing.T, scn *scenario.Scenario, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		space:   sandbox.NewSpace(),
		walkers: make(map[string]*sandbox.Walker),
		rec:     sandbox.NewRecorder(nil),
		endings: make(map[string]trust.Tier),
		ended:   make(map[string]dialogue.EndReason),
		states:  make(map[string][]guard.State),
	}
	f.player = sandbox.NewPlayer(f.space, scn.PlayerID, scn.Player.Start, scn.Player.Speed)
	navs := make(map[string]guard.Navigator)
	for _, g := range scn.Guards {
		if len(g.Route) == 0 {
			continue
		}
		w := sandbox.NewWalker(f.space, g.ID, g.Start(), vision.TagGuard)
		f.walkers[g.ID] = w
		navs[g.ID] = w
	}

	w, err := New(scn, Deps{Spatial: f.space, Navigators: navs, Presenter: f.rec, Player: f.player}, Hooks{
		EndingSelected:    func(npc string, tier trust.Tier) { f.endings[npc] = tier },
		SessionEnded:      func(npc string, r dialogue.EndReason) { f.ended[npc] = r },
		GuardStateChanged: func(id string, s guard.State) { f.states[id] = append(f.states[id], s) },
		PlayerDetected:    func(string) { f.detected++ },
		PlayerCaught:      func(id string) { f.caught = append(f.caught, id) },
		Escalated:         func(npc, g string) { f.escalate = append(f.escalate, [2]string{npc, g}) },
		AlarmChanged:      func(a bool) { f.alarms = append(f.alarms, a) },
	}, opts...)
	require.NoError(t, err)
	f.world = w
	return f
}

// untilTurn ticks until npcID's conversation waits for the player.
func (f *fixture) untilTurn(t *testing.T, npcID string) {
	t.Helper()
	for range 200 {
		if s, ok := f.world.engine.Session(npcID); ok && s.State == dialogue.StatePlayerTurn {
			return
		}
		f.world.Tick(step)
	}
	t.Fatalf("%s never reached the player's turn", npcID)
}

func (f *fixture) run(d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		f.world.Tick(step)
	}
}

func TestWorld_BreachSummonsGuard(t *testing.T) {
	f := newFixture(t, testScenario())
	f.world.Tick(0)

	_, err := f.world.Interact()
	require.NoError(t, err)
	f.untilTurn(t, "clerk")

	require.NoError(t, f.world.Choose("clerk", 1))

	assert.False(t, f.world.IsSessionActive("clerk"), "breach aborts the conversation at once")
	assert.Equal(t, dialogue.EndEscalated, f.ended["clerk"])
	assert.Empty(t, f.endings, "no ending after an abort")
	assert.Equal(t, [][2]string{{"clerk", "g1"}}, f.escalate)

	state, _ := f.world.GuardState("g1")
	assert.Equal(t, guard.StateChase, state)

	score, _ := f.world.Trust("clerk")
	assert.Equal(t, 25, score.Current, "remaining steps still land")

	f.world.Tick(step)
	assert.True(t, f.world.Alarmed())
	assert.Equal(t, []bool{true}, f.alarms)

	t.Run("chase ends in capture", func(t *testing.T) {
		for range 400 {
			if caught, _ := f.world.Caught(); caught {
				break
			}
			f.world.Tick(step)
		}
		caught, by := f.world.Caught()
		require.True(t, caught)
		assert.Equal(t, "g1", by)
		assert.Equal(t, []string{"g1"}, f.caught)
		assert.True(t, f.player.Frozen())
		assert.True(t, f.rec.CaughtShown)
		assert.Equal(t, []guard.State{guard.StateChase, guard.StateCaught}, f.states["g1"])
		assert.Positive(t, f.detected)

		_, err := f.world.Interact()
		assert.ErrorIs(t, err, fault.ErrInvalidTransition)
	})
}

func TestWorld_SmallDeltaContinues(t *testing.T) {
	scn := testScenario()
	scn.NPCs[0].Trust.Start = 100
	f := newFixture(t, scn)
	f.world.Tick(0)

	_, err := f.world.Interact()
	require.NoError(t, err)
	f.untilTurn(t, "clerk")
	require.NoError(t, f.world.Choose("clerk", 1))

	assert.True(t, f.world.IsSessionActive("clerk"))
	f.untilTurn(t, "clerk")
	s, _ := f.world.engine.Session("clerk")
	assert.Equal(t, 2, s.LayerIndex)
	assert.Empty(t, f.escalate)

	require.NoError(t, f.world.Choose("clerk", 0))
	f.run(200 * time.Millisecond)
	assert.Equal(t, dialogue.EndCompleted, f.ended["clerk"])
	assert.Equal(t, trust.TierHigh, f.endings["clerk"])
}

func TestWorld_MidEndingSendsFollower(t *testing.T) {
	scn := testScenario()
	scn.NPCs[0].Trust.Start = 45
	f := newFixture(t, scn, WithFollowDuration(time.Second))
	f.world.Tick(0)

	_, err := f.world.Interact()
	require.NoError(t, err)
	f.untilTurn(t, "clerk")
	require.NoError(t, f.world.Choose("clerk", 0))
	f.untilTurn(t, "clerk")
	require.NoError(t, f.world.Choose("clerk", 0))
	f.run(200 * time.Millisecond)

	require.Equal(t, trust.TierMid, f.endings["clerk"])
	state, _ := f.world.GuardState("g1")
	assert.Equal(t, guard.StateFollow, state)

	f.run(time.Second)
	state, _ = f.world.GuardState("g1")
	assert.Equal(t, guard.StatePatrol, state)
}

func TestWorld_RepeatMidEndingRestartsFollow(t *testing.T) {
	f := newFixture(t, testScenario(), WithFollowDuration(time.Second))
	f.world.Tick(0)

	f.world.onEndingSelected("clerk", trust.TierMid)
	state, _ := f.world.GuardState("g1")
	require.Equal(t, guard.StateFollow, state)

	f.run(600 * time.Millisecond)
	f.world.onEndingSelected("clerk", trust.TierMid)

	f.run(600 * time.Millisecond)
	state, _ = f.world.GuardState("g1")
	assert.Equal(t, guard.StateFollow, state, "the earlier release no longer applies")

	f.run(600 * time.Millisecond)
	state, _ = f.world.GuardState("g1")
	assert.Equal(t, guard.StatePatrol, state)
}

func TestWorld_WalkingOutOfGuardConversation(t *testing.T) {
	scn := testScenario()
	scn.Guards = append(scn.Guards, talkativeGuard())
	f := newFixture(t, scn)

	f.world.Tick(0)
	require.True(t, f.world.IsSessionActive("g2"))
	f.world.EndSession("g2")
	assert.Equal(t, dialogue.EndExternal, f.ended["g2"])

	u := f.world.guards["g2"]
	assert.False(t, u.agent.Settled(), "a conversation cut short settles nothing")
	f.run(11 * time.Second)
	assert.Contains(t, f.states["g2"], guard.StateChase, "the guard confirms the sighting and gives chase")
}

func TestWorld_RangeExitEndsConversation(t *testing.T) {
	f := newFixture(t, testScenario())
	f.world.Tick(0)
	_, err := f.world.Interact()
	require.NoError(t, err)

	f.player.Teleport(geom.V(-10, 0))
	f.world.Tick(step)
	assert.False(t, f.world.IsSessionActive("clerk"))
	assert.Equal(t, dialogue.EndExternal, f.ended["clerk"])
	assert.Empty(t, f.endings)

	_, err = f.world.Interact()
	assert.ErrorIs(t, err, fault.ErrInvalidTransition, "nobody in range")

	f.player.Teleport(geom.V(0, 0))
	f.world.Tick(step)
	_, err = f.world.Interact()
	assert.NoError(t, err, "latch released on leaving range")

	f.world.EndSession("clerk")
	f.world.EndSession("clerk")
	_, err = f.world.Interact()
	assert.ErrorIs(t, err, fault.ErrInvalidTransition, "latched until the player leaves")
}

func TestWorld_GuardConversation(t *testing.T) {
	t.Run("hostile answer starts a chase", func(t *testing.T) {
		scn := testScenario()
		scn.Guards = append(scn.Guards, talkativeGuard())
		f := newFixture(t, scn)

		f.world.Tick(0)
		state, _ := f.world.GuardState("g2")
		require.Equal(t, guard.StateDialogue, state)
		require.True(t, f.world.IsSessionActive("g2"))

		_, err := f.world.StartSession("g2")
		assert.ErrorIs(t, err, fault.ErrInvalidTransition)

		f.untilTurn(t, "g2")
		require.NoError(t, f.world.Choose("g2", 1))

		assert.False(t, f.world.IsSessionActive("g2"))
		state, _ = f.world.GuardState("g2")
		assert.Equal(t, guard.StateChase, state)
	})

	t.Run("friendly answer lets the player pass", func(t *testing.T) {
		scn := testScenario()
		scn.Guards = append(scn.Guards, talkativeGuard())
		f := newFixture(t, scn)

		f.world.Tick(0)
		f.untilTurn(t, "g2")
		require.NoError(t, f.world.Choose("g2", 0))
		f.run(200 * time.Millisecond)

		assert.Equal(t, dialogue.EndCompleted, f.ended["g2"])
		state, _ := f.world.GuardState("g2")
		assert.Equal(t, guard.StatePatrol, state)

		f.run(11 * time.Second)
		state, _ = f.world.GuardState("g2")
		assert.Equal(t, guard.StatePatrol, state, "the sighting the talk settled is not chased")
	})
}

func TestWorld_DisablesBrokenEntities(t *testing.T) {
	scn := testScenario()
	scn.NPCs = append(scn.NPCs, actor.NPC{
		ID:                "broken",
		InteractionRadius: 1,
		Trust:             actor.TrustSpec{Start: 10, Max: 100, Low: 60, Mid: 50, High: 80},
		Dialogue:          scn.NPCs[0].Dialogue,
	})
	scn.Guards = append(scn.Guards, actor.Guard{ID: "lost", PatrolSpeed: 1, ChaseSpeed: 2, Vision: actor.VisionSpec{Radius: 3}})

	f := newFixture(t, scn)
	disabled := f.world.Disabled()
	assert.Contains(t, disabled, "broken")
	assert.Contains(t, disabled, "lost")
	for _, errs := range disabled {
		for _, err := range errs {
			assert.ErrorIs(t, err, fault.ErrConfiguration)
		}
	}

	_, ok := f.world.GuardState("lost")
	assert.False(t, ok)
	_, ok = f.world.GuardState("g1")
	assert.True(t, ok, "healthy guards still run")

	snap := f.world.Snapshot()
	assert.Equal(t, []string{"broken", "lost"}, snap.Disabled)
	assert.Len(t, snap.NPCs, 1)
}

func TestWorld_MissingNavigatorDisablesGuard(t *testing.T) {
	scn := testScenario()
	space := sandbox.NewSpace()
	player := sandbox.NewPlayer(space, "player", geom.V(0, 0), 3)

	w, err := New(scn, Deps{Spatial: space, Player: player}, Hooks{})
	require.NoError(t, err)
	assert.Contains(t, w.Disabled(), "g1")
}

func TestWorld_ScenarioProblemsAreFatal(t *testing.T) {
	scn := testScenario()
	scn.Player.Speed = 0
	space := sandbox.NewSpace()

	_, err := New(scn, Deps{Spatial: space, Player: sandbox.NewPlayer(space, "player", geom.V(0, 0), 3)}, Hooks{})
	assert.ErrorIs(t, err, fault.ErrConfiguration)

	_, err = New(testScenario(), Deps{}, Hooks{})
	assert.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestWorld_TrustGate(t *testing.T) {
	scn := testScenario()
	scn.TrustGate = &scenario.TrustGate{Required: 1, Threshold: 90}
	f := newFixture(t, scn)

	assert.True(t, f.world.EvaluateGlobalTrustGate(1, 40))
	assert.False(t, f.world.EvaluateGlobalTrustGate(1, 41))
	assert.False(t, f.world.GateOpen())
	assert.True(t, f.world.EvaluateGlobalTrustGate(0, 100))
}

func TestWorld_Snapshot(t *testing.T) {
	f := newFixture(t, testScenario())
	f.world.Tick(step)

	snap := f.world.Snapshot()
	assert.Equal(t, "Test Yard", snap.Scenario)
	assert.Equal(t, uint64(1), snap.Tick)
	assert.Equal(t, step, snap.Now)
	require.Len(t, snap.NPCs, 1)
	assert.True(t, snap.NPCs[0].InRange)
	assert.Equal(t, "low", snap.NPCs[0].Tier)
	require.Len(t, snap.Guards, 1)
	assert.Equal(t, "patrol", snap.Guards[0].State)
	assert.Equal(t, 1.0, snap.Player.SpeedMultiplier)
}
