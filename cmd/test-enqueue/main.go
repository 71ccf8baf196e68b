package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/internal/config"
	"github.com/jwebster45206/stealth-engine/internal/logger"
	"github.com/jwebster45206/stealth-engine/internal/services/queue"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	cmdqueue "github.com/jwebster45206/stealth-engine/pkg/queue"
)

func main() {
	encounter := flag.String("encounter", os.Getenv("ENCOUNTER_ID"), "encounter ID")
	cmdType := flag.String("type", string(cmdqueue.CommandInteract), "interact, choose, move or end")
	npc := flag.String("npc", "", "target NPC for choose and end")
	choice := flag.Int("choice", 0, "zero-based choice index")
	dx := flag.Float64("dx", 0, "move direction x")
	dy := flag.Float64("dy", 0, "move direction y")
	flag.Parse()

	encounterID, err := uuid.Parse(*encounter)
	if err != nil {
		log.Fatal("A valid -encounter ID is required: ", err)
	}

	cfg := config.Load()
	client, err := queue.NewClient(cfg.RedisURL, logger.Setup(cfg))
	if err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}
	defer client.Close()

	ctx := context.Background()
	if err := client.GetRedisClient().Ping(ctx).Err(); err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}
	fmt.Println("Connected to Redis successfully!")

	cmd := cmdqueue.NewCommand(encounterID, cmdqueue.CommandType(*cmdType))
	cmd.NPCID = *npc
	cmd.Choice = *choice
	cmd.Direction = geom.Vec2{X: *dx, Y: *dy}
	if err := cmd.Validate(); err != nil {
		log.Fatal("Invalid command: ", err)
	}

	commands := queue.NewCommandQueue(client)
	if err := commands.Enqueue(ctx, cmd); err != nil {
		log.Fatal("Failed to enqueue command: ", err)
	}
	fmt.Printf("Enqueued %s command: %s\n", cmd.Type, cmd.CommandID)

	depth, err := commands.Depth(ctx, encounterID)
	if err != nil {
		log.Fatal("Failed to get queue depth: ", err)
	}
	fmt.Printf("\nQueue depth: %d commands\n", depth)
	fmt.Println("The worker owning this encounter applies them on its next tick.")
}
