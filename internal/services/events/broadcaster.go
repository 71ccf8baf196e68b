package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeTrustChanged     EventType = "trust.changed"
	EventTypeDialogueEnding   EventType = "dialogue.ending"
	EventTypeDialogueEnded    EventType = "dialogue.ended"
	EventTypeEscalated        EventType = "dialogue.escalated"
	EventTypeGuardState       EventType = "guard.state_changed"
	EventTypePlayerDetected   EventType = "player.detected"
	EventTypePlayerCaught     EventType = "player.caught"
	EventTypeAlarmChanged     EventType = "alarm.changed"
	EventTypeCommandRejected  EventType = "command.rejected"
	EventTypeEncounterStarted EventType = "encounter.started"
)

// Event represents a generic event structure
type Event struct {
	Type        EventType      `json:"type"`
	EncounterID string         `json:"encounter_id"`
	Tick        uint64         `json:"tick"`
	Data        map[string]any `json:"data,omitempty"`
}

// Channel is the pub/sub channel carrying an encounter's events
func Channel(encounterID uuid.UUID) string {
	return fmt.Sprintf("encounter-events:%s", encounterID.String())
}

// Broadcaster publishes encounter events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

func (b *Broadcaster) PublishEncounterStarted(ctx context.Context, encounterID uuid.UUID, scenario string) error {
	return b.Publish(ctx, encounterID, 0, EventTypeEncounterStarted, map[string]any{
		"scenario": scenario,
	})
}

func (b *Broadcaster) PublishTrustChanged(ctx context.Context, encounterID uuid.UUID, tick uint64, npcID string, value int) error {
	return b.Publish(ctx, encounterID, tick, EventTypeTrustChanged, map[string]any{
		"npc_id": npcID,
		"trust":  value,
	})
}

func (b *Broadcaster) PublishDialogueEnding(ctx context.Context, encounterID uuid.UUID, tick uint64, npcID, tier string) error {
	return b.Publish(ctx, encounterID, tick, EventTypeDialogueEnding, map[string]any{
		"npc_id": npcID,
		"tier":   tier,
	})
}

func (b *Broadcaster) PublishDialogueEnded(ctx context.Context, encounterID uuid.UUID, tick uint64, npcID, reason string) error {
	return b.Publish(ctx, encounterID, tick, EventTypeDialogueEnded, map[string]any{
		"npc_id": npcID,
		"reason": reason,
	})
}

func (b *Broadcaster) PublishEscalated(ctx context.Context, encounterID uuid.UUID, tick uint64, npcID, guardID string) error {
	return b.Publish(ctx, encounterID, tick, EventTypeEscalated, map[string]any{
		"npc_id":   npcID,
		"guard_id": guardID,
	})
}

func (b *Broadcaster) PublishGuardState(ctx context.Context, encounterID uuid.UUID, tick uint64, guardID, state string) error {
	return b.Publish(ctx, encounterID, tick, EventTypeGuardState, map[string]any{
		"guard_id": guardID,
		"state":    state,
	})
}

func (b *Broadcaster) PublishPlayerDetected(ctx context.Context, encounterID uuid.UUID, tick uint64, guardID string) error {
	return b.Publish(ctx, encounterID, tick, EventTypePlayerDetected, map[string]any{
		"guard_id": guardID,
	})
}

func (b *Broadcaster) PublishPlayerCaught(ctx context.Context, encounterID uuid.UUID, tick uint64, guardID string) error {
	return b.Publish(ctx, encounterID, tick, EventTypePlayerCaught, map[string]any{
		"guard_id": guardID,
	})
}

func (b *Broadcaster) PublishAlarmChanged(ctx context.Context, encounterID uuid.UUID, tick uint64, alarmed bool) error {
	return b.Publish(ctx, encounterID, tick, EventTypeAlarmChanged, map[string]any{
		"alarmed": alarmed,
	})
}

func (b *Broadcaster) PublishCommandRejected(ctx context.Context, encounterID uuid.UUID, tick uint64, commandID, reason string) error {
	return b.Publish(ctx, encounterID, tick, EventTypeCommandRejected, map[string]any{
		"command_id": commandID,
		"error":      reason,
	})
}

// Publish publishes an event to the encounter's channel
func (b *Broadcaster) Publish(ctx context.Context, encounterID uuid.UUID, tick uint64, t EventType, data map[string]any) error {
	event := Event{
		Type:        t,
		EncounterID: encounterID.String(),
		Tick:        tick,
		Data:        data,
	}
	channel := Channel(encounterID)

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", t)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", t,
		"tick", tick,
	)

	return nil
}
