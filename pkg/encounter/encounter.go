// Package encounter assembles a runnable world from a scenario using the in-memory sandbox collaborators.
package encounter

import (
	"fmt"

	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
	"github.com/jwebster45206/stealth-engine/pkg/fault"
	"github.com/jwebster45206/stealth-engine/pkg/guard"
	"github.com/jwebster45206/stealth-engine/pkg/sandbox"
	"github.com/jwebster45206/stealth-engine/pkg/scenario"
	"github.com/jwebster45206/stealth-engine/pkg/vision"
	"github.com/jwebster45206/stealth-engine/pkg/world"
)

// Encounter is a world plus the sandbox pieces behind it.
type Encounter struct {
	World   *world.World
	Space   *sandbox.Space
	Player  *sandbox.Player
	Walkers map[string]*sandbox.Walker
	// Recorder is set when New was given no presenter.
	Recorder *sandbox.Recorder
}

// New builds the space, the player and a walker per routed guard, then the world on top of them. A nil
// presenter gets a Recorder.
func New(scn *scenario.Scenario, presenter dialogue.Presenter, hooks world.Hooks, opts ...world.Option) (*Encounter, error) {
	if scn == nil {
		return nil, fmt.Errorf("%w: encounter needs a scenario", fault.ErrConfiguration)
	}
	e := &Encounter{
		Space:   sandbox.NewSpace(),
		Walkers: make(map[string]*sandbox.Walker),
	}
	for _, o := range scn.Obstacles {
		if err := e.Space.AddObstacle(o.ID, sandbox.Rect{Min: o.Min, Max: o.Max}, o.Tags...); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", scn.Name, err)
		}
	}
	for _, n := range scn.NPCs {
		e.Space.Put(vision.Entity{ID: n.ID, Pos: n.Position, Tags: []string{vision.TagNPC}})
	}

	e.Player = sandbox.NewPlayer(e.Space, scn.PlayerID, scn.Player.Start, scn.Player.Speed)
	navs := make(map[string]guard.Navigator, len(scn.Guards))
	for _, g := range scn.Guards {
		if len(g.Route) == 0 {
			continue
		}
		w := sandbox.NewWalker(e.Space, g.ID, g.Start(), vision.TagGuard)
		e.Walkers[g.ID] = w
		navs[g.ID] = w
	}

	if presenter == nil {
		e.Recorder = sandbox.NewRecorder(nil)
		presenter = e.Recorder
	}

	w, err := world.New(scn, world.Deps{
		Spatial:    e.Space,
		Navigators: navs,
		Presenter:  presenter,
		Player:     e.Player,
	}, hooks, opts...)
	if err != nil {
		return nil, err
	}
	e.World = w
	return e, nil
}

// Load reads a scenario file and builds an encounter from it.
func Load(path string, presenter dialogue.Presenter, hooks world.Hooks, opts ...world.Option) (*Encounter, error) {
	scn, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	return New(scn, presenter, hooks, opts...)
}
