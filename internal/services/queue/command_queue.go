package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/pkg/queue"
	"github.com/redis/go-redis/v9"
)

// CommandQueue holds player commands per encounter until the worker drains them between ticks
type CommandQueue struct {
	client *Client
}

func NewCommandQueue(client *Client) *CommandQueue {
	return &CommandQueue{
		client: client,
	}
}

func queueKey(encounterID uuid.UUID) string {
	return fmt.Sprintf("encounter-commands:%s", encounterID.String())
}

// Enqueue adds a command to the end of the encounter's queue
func (q *CommandQueue) Enqueue(ctx context.Context, cmd *queue.Command) error {
	data, err := cmd.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize command: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, queueKey(cmd.EncounterID), data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue command: %w", err)
	}
	q.client.logger.Debug("Enqueued command",
		"encounter_id", cmd.EncounterID.String(),
		"command_id", cmd.CommandID,
		"type", cmd.Type)
	return nil
}

// Drain removes and returns every queued command for an encounter, oldest first. Malformed entries are
// logged and skipped.
func (q *CommandQueue) Drain(ctx context.Context, encounterID uuid.UUID) ([]*queue.Command, error) {
	key := queueKey(encounterID)

	var rng *redis.StringSliceCmd
	_, err := q.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rng = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to drain commands: %w", err)
	}

	raw := rng.Val()
	cmds := make([]*queue.Command, 0, len(raw))
	for _, r := range raw {
		cmd, err := queue.FromJSON([]byte(r))
		if err != nil {
			q.client.logger.Warn("Dropping malformed command", "encounter_id", encounterID.String(), "error", err)
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Clear removes all queued commands for an encounter
func (q *CommandQueue) Clear(ctx context.Context, encounterID uuid.UUID) error {
	if err := q.client.rdb.Del(ctx, queueKey(encounterID)).Err(); err != nil {
		return fmt.Errorf("failed to clear command queue: %w", err)
	}
	return nil
}

// Depth returns the number of commands queued for an encounter
func (q *CommandQueue) Depth(ctx context.Context, encounterID uuid.UUID) (int, error) {
	count, err := q.client.rdb.LLen(ctx, queueKey(encounterID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
