package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
)

// CommandType identifies a player command in the queue
type CommandType string

const (
	// CommandInteract opens a conversation with the nearest NPC in range
	CommandInteract CommandType = "interact"

	// CommandChoose answers the current dialogue layer
	CommandChoose CommandType = "choose"

	// CommandMove sets the player's movement input
	CommandMove CommandType = "move"

	// CommandEnd closes an NPC's conversation without an ending
	CommandEnd CommandType = "end"
)

// Command is one player input bound for a running encounter
type Command struct {
	CommandID   string      `json:"command_id"`
	Type        CommandType `json:"type"`
	EncounterID uuid.UUID   `json:"encounter_id"`

	// Choose and end
	NPCID  string `json:"npc_id,omitempty"`
	Choice int    `json:"choice,omitempty"`

	// Move
	Direction geom.Vec2 `json:"direction"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewCommand stamps a command with an ID and enqueue time
func NewCommand(encounterID uuid.UUID, t CommandType) *Command {
	return &Command{
		CommandID:   uuid.New().String(),
		Type:        t,
		EncounterID: encounterID,
		EnqueuedAt:  time.Now(),
	}
}

// Validate checks the command carries what its type needs
func (c *Command) Validate() error {
	switch c.Type {
	case CommandInteract, CommandMove:
		return nil
	case CommandChoose:
		if c.NPCID == "" {
			return errors.New("choose command needs an npc_id")
		}
		if c.Choice < 0 {
			return errors.New("choice must not be negative")
		}
		return nil
	case CommandEnd:
		if c.NPCID == "" {
			return errors.New("end command needs an npc_id")
		}
		return nil
	default:
		return fmt.Errorf("unknown command type %q", c.Type)
	}
}

// ToJSON converts the command to JSON bytes for Redis
func (c *Command) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// FromJSON parses a command from JSON bytes
func FromJSON(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}
