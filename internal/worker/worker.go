package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/internal/observe"
	"github.com/jwebster45206/stealth-engine/internal/services/events"
	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
	"github.com/jwebster45206/stealth-engine/pkg/encounter"
	"github.com/jwebster45206/stealth-engine/pkg/guard"
	"github.com/jwebster45206/stealth-engine/pkg/queue"
	"github.com/jwebster45206/stealth-engine/pkg/scenario"
	"github.com/jwebster45206/stealth-engine/pkg/storage"
	"github.com/jwebster45206/stealth-engine/pkg/trust"
	"github.com/jwebster45206/stealth-engine/pkg/world"
	"github.com/redis/go-redis/v9"
)

const (
	lockTTL          = 30 * time.Second
	lockRefreshEvery = 10 * time.Second
	ioTimeout        = 5 * time.Second

	defaultTickInterval = 50 * time.Millisecond
)

var (
	// ErrEncounterLocked is returned by Start when another worker owns the encounter.
	ErrEncounterLocked = errors.New("encounter is locked by another worker")
	// ErrLockLost is returned by Start when the lock expired or was taken over while running.
	ErrLockLost = errors.New("encounter lock lost")
)

// Only touch the lock if we still own it.
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	refreshScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// CommandSource yields the player commands queued for an encounter.
type CommandSource interface {
	Drain(ctx context.Context, encounterID uuid.UUID) ([]*queue.Command, error)
}

// Options tune a worker. Zero values take defaults.
type Options struct {
	WorkerID     string
	EncounterID  uuid.UUID
	TickInterval time.Duration
	// SnapshotEvery saves a snapshot every N ticks; zero only saves on stop.
	SnapshotEvery int
	// Seed overrides the scenario's dialogue seed when non-zero.
	Seed uint64
}

// Deps are the services a worker reports to. Any of them may be nil.
type Deps struct {
	Redis       *redis.Client
	Commands    CommandSource
	Broadcaster *events.Broadcaster
	Storage     storage.Storage
	Metrics     *observe.Metrics
}

type pendingEvent struct {
	tick    uint64
	publish func(ctx context.Context, tick uint64) error
}

// Worker runs one encounter at a fixed tick rate.
type Worker struct {
	id          string
	encounterID uuid.UUID
	scenario    string
	opts        Options
	deps        Deps
	metrics     *observe.Metrics
	log         *slog.Logger

	mu          sync.Mutex
	enc         *encounter.Encounter
	guardStates map[string]guard.State
	pending     []pendingEvent
	lastRefresh time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds the encounter for scn. It does not start ticking until Start.
func New(scn *scenario.Scenario, opts Options, deps Deps, log *slog.Logger) (*Worker, error) {
	if scn == nil {
		return nil, errors.New("worker needs a scenario")
	}
	if log == nil {
		log = slog.Default()
	}
	if opts.WorkerID == "" {
		opts.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if opts.EncounterID == uuid.Nil {
		opts.EncounterID = uuid.New()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.Seed != 0 {
		seeded := *scn
		seeded.Dialogue.Seed = opts.Seed
		scn = &seeded
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		id:          opts.WorkerID,
		encounterID: opts.EncounterID,
		scenario:    scn.Name,
		opts:        opts,
		deps:        deps,
		metrics:     metrics,
		log:         log.With("worker_id", opts.WorkerID, "encounter_id", opts.EncounterID.String()),
		guardStates: make(map[string]guard.State),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	enc, err := encounter.New(scn, nil, w.hooks(), world.WithLogger(w.log))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build encounter: %w", err)
	}
	w.enc = enc
	return w, nil
}

func (w *Worker) ID() string {
	return w.id
}

func (w *Worker) EncounterID() uuid.UUID {
	return w.encounterID
}

// Snapshot returns the current encounter state. Safe to call while the worker runs.
func (w *Worker) Snapshot() world.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.World.Snapshot()
}

// Done is closed when Start returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Start acquires the encounter lock and ticks until Stop. A final snapshot is saved on the way out.
func (w *Worker) Start() error {
	defer close(w.done)

	locked, err := w.acquireLock(w.ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire encounter lock: %w", err)
	}
	if !locked {
		return ErrEncounterLocked
	}
	defer w.releaseLock()

	w.log.Info("Worker starting", "scenario", w.scenario, "tick_interval", w.opts.TickInterval)
	if w.deps.Broadcaster != nil {
		if err := w.deps.Broadcaster.PublishEncounterStarted(w.ctx, w.encounterID, w.scenario); err != nil {
			w.log.Error("Failed to publish start event", "error", err)
		}
	}

	ticker := time.NewTicker(w.opts.TickInterval)
	defer ticker.Stop()
	w.lastRefresh = time.Now()

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			w.saveFinal()
			return nil
		case <-ticker.C:
			w.step(w.ctx, w.opts.TickInterval)
			if time.Since(w.lastRefresh) >= lockRefreshEvery {
				if err := w.refreshLock(w.ctx); err != nil {
					w.log.Error("Stopping worker", "error", err)
					return err
				}
				w.lastRefresh = time.Now()
			}
		}
	}
}

// Stop ends the tick loop. It does not wait; use Done for that.
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

// step drains queued commands, applies them, advances the world by dt and flushes what happened.
func (w *Worker) step(ctx context.Context, dt time.Duration) {
	start := time.Now()
	cmds := w.drain(ctx)

	w.mu.Lock()
	for _, cmd := range cmds {
		w.applyLocked(ctx, cmd)
	}
	w.enc.World.Tick(dt)
	tick := w.enc.World.Ticks()
	var snap *world.Snapshot
	if w.opts.SnapshotEvery > 0 && tick%uint64(w.opts.SnapshotEvery) == 0 {
		s := w.enc.World.Snapshot()
		snap = &s
	}
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	w.flush(ctx, pending)
	if snap != nil {
		w.save(ctx, snap)
	}
	w.metrics.RecordTick(ctx, time.Since(start).Seconds())
}

func (w *Worker) drain(ctx context.Context) []*queue.Command {
	if w.deps.Commands == nil {
		return nil
	}
	cmds, err := w.deps.Commands.Drain(ctx, w.encounterID)
	if err != nil {
		w.log.Error("Failed to drain commands", "error", err)
		return nil
	}
	return cmds
}

// applyLocked runs one command against the world. Rejections are reported, never fatal.
func (w *Worker) applyLocked(ctx context.Context, cmd *queue.Command) {
	err := cmd.Validate()
	if err == nil {
		err = w.dispatch(cmd)
	}
	if err != nil {
		w.log.Info("Command rejected", "command_id", cmd.CommandID, "type", cmd.Type, "error", err)
		w.metrics.RecordCommand(ctx, string(cmd.Type), "rejected")
		reason := err.Error()
		w.enqueue(func(ctx context.Context, tick uint64) error {
			return w.deps.Broadcaster.PublishCommandRejected(ctx, w.encounterID, tick, cmd.CommandID, reason)
		})
		return
	}
	w.log.Debug("Command applied", "command_id", cmd.CommandID, "type", cmd.Type)
	w.metrics.RecordCommand(ctx, string(cmd.Type), "applied")
}

func (w *Worker) dispatch(cmd *queue.Command) error {
	switch cmd.Type {
	case queue.CommandInteract:
		_, err := w.enc.World.Interact()
		return err
	case queue.CommandChoose:
		return w.enc.World.Choose(cmd.NPCID, cmd.Choice)
	case queue.CommandMove:
		w.enc.Player.SetInput(cmd.Direction)
		return nil
	case queue.CommandEnd:
		if !w.enc.World.IsSessionActive(cmd.NPCID) {
			return fmt.Errorf("no conversation with %q", cmd.NPCID)
		}
		w.enc.World.EndSession(cmd.NPCID)
		return nil
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// enqueue defers an event until the tick's lock is released. Dropped when events are disabled.
func (w *Worker) enqueue(publish func(ctx context.Context, tick uint64) error) {
	if w.deps.Broadcaster == nil {
		return
	}
	var tick uint64
	if w.enc != nil {
		tick = w.enc.World.Ticks()
	}
	w.pending = append(w.pending, pendingEvent{tick: tick, publish: publish})
}

func (w *Worker) flush(ctx context.Context, pending []pendingEvent) {
	for _, ev := range pending {
		if err := ev.publish(ctx, ev.tick); err != nil {
			w.log.Error("Failed to publish event", "error", err)
		}
	}
}

func (w *Worker) save(ctx context.Context, snap *world.Snapshot) {
	if w.deps.Storage == nil {
		return
	}
	if err := w.deps.Storage.SaveSnapshot(ctx, w.encounterID, snap); err != nil {
		w.log.Error("Failed to save snapshot", "error", err, "tick", snap.Tick)
	}
}

func (w *Worker) saveFinal() {
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	snap := w.Snapshot()
	w.save(ctx, &snap)
}

// hooks turn world outcomes into metrics and pending events. They run on the tick goroutine with mu held.
func (w *Worker) hooks() world.Hooks {
	b := func() *events.Broadcaster { return w.deps.Broadcaster }
	return world.Hooks{
		TrustChanged: func(npcID string, value int) {
			w.metrics.RecordTrustStep(w.ctx, npcID)
			w.enqueue(func(ctx context.Context, tick uint64) error {
				return b().PublishTrustChanged(ctx, w.encounterID, tick, npcID, value)
			})
		},
		EndingSelected: func(npcID string, tier trust.Tier) {
			w.metrics.RecordDialogueEnding(w.ctx, npcID, tier.String())
			w.enqueue(func(ctx context.Context, tick uint64) error {
				return b().PublishDialogueEnding(ctx, w.encounterID, tick, npcID, tier.String())
			})
		},
		SessionEnded: func(npcID string, reason dialogue.EndReason) {
			w.enqueue(func(ctx context.Context, tick uint64) error {
				return b().PublishDialogueEnded(ctx, w.encounterID, tick, npcID, reason.String())
			})
		},
		GuardStateChanged: func(guardID string, state guard.State) {
			from, ok := w.guardStates[guardID]
			if !ok {
				from = guard.StatePatrol
			}
			w.guardStates[guardID] = state
			w.metrics.RecordGuardTransition(w.ctx, guardID, from.String(), state.String())
			w.enqueue(func(ctx context.Context, tick uint64) error {
				return b().PublishGuardState(ctx, w.encounterID, tick, guardID, state.String())
			})
		},
		PlayerDetected: func(guardID string) {
			w.metrics.RecordDetection(w.ctx, guardID)
			w.enqueue(func(ctx context.Context, tick uint64) error {
				return b().PublishPlayerDetected(ctx, w.encounterID, tick, guardID)
			})
		},
		PlayerCaught: func(guardID string) {
			w.metrics.RecordCatch(w.ctx, guardID)
			w.enqueue(func(ctx context.Context, tick uint64) error {
				return b().PublishPlayerCaught(ctx, w.encounterID, tick, guardID)
			})
		},
		Escalated: func(npcID, guardID string) {
			w.metrics.RecordEscalation(w.ctx, npcID, guardID)
			w.enqueue(func(ctx context.Context, tick uint64) error {
				return b().PublishEscalated(ctx, w.encounterID, tick, npcID, guardID)
			})
		},
		AlarmChanged: func(alarmed bool) {
			w.enqueue(func(ctx context.Context, tick uint64) error {
				return b().PublishAlarmChanged(ctx, w.encounterID, tick, alarmed)
			})
		},
	}
}

func lockKey(encounterID uuid.UUID) string {
	return fmt.Sprintf("encounter-lock:%s", encounterID.String())
}

// acquireLock claims the encounter. Without Redis there is nothing to contend with.
func (w *Worker) acquireLock(ctx context.Context) (bool, error) {
	if w.deps.Redis == nil {
		return true, nil
	}
	return w.deps.Redis.SetNX(ctx, lockKey(w.encounterID), w.id, lockTTL).Result()
}

func (w *Worker) refreshLock(ctx context.Context) error {
	if w.deps.Redis == nil {
		return nil
	}
	n, err := refreshScript.Run(ctx, w.deps.Redis, []string{lockKey(w.encounterID)}, w.id, lockTTL.Milliseconds()).Int()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to refresh encounter lock: %w", err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func (w *Worker) releaseLock() {
	if w.deps.Redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	if err := releaseScript.Run(ctx, w.deps.Redis, []string{lockKey(w.encounterID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release encounter lock", "error", err)
	}
}
