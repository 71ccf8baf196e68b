package queue

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_JSON(t *testing.T) {
	id := uuid.New()
	cmd := NewCommand(id, CommandMove)
	cmd.Direction = geom.V(1, 0)

	data, err := cmd.ToJSON()
	require.NoError(t, err)

	got, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, id, got.EncounterID)
	assert.Equal(t, CommandMove, got.Type)
	assert.Equal(t, geom.V(1, 0), got.Direction)
	assert.NotEmpty(t, got.CommandID)
}

func TestCommand_Validate(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"interact", Command{Type: CommandInteract, EncounterID: id}, false},
		{"choose", Command{Type: CommandChoose, NPCID: "dock_clerk", Choice: 1}, false},
		{"choose without npc", Command{Type: CommandChoose}, true},
		{"negative choice", Command{Type: CommandChoose, NPCID: "dock_clerk", Choice: -1}, true},
		{"end without npc", Command{Type: CommandEnd}, true},
		{"unknown", Command{Type: "dance"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
