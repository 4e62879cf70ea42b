package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"

	"faceattend/internal/config"
	"faceattend/internal/queue"
	"faceattend/internal/recognize"
	"faceattend/internal/registry"
	"faceattend/internal/store"
)

// Worker consumes sample messages published by the API and stores the
// probe encodings as auxiliary face samples for the matched user.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "faceattend:samples")
	}

	repo := registry.NewRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for samples...")
	for msg := range messages {
		if msg.Type != recognize.SampleMessageType {
			continue
		}

		var payload recognize.SamplePayload
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			log.Printf("malformed sample message: %v", err)
			continue
		}
		if payload.UserID == "" || len(payload.Encoding) == 0 {
			continue
		}

		if err := repo.AddSample(ctx, payload.UserID, payload.Encoding); err != nil {
			log.Printf("store sample for %s failed: %v", payload.UserID, err)
			continue
		}
		log.Printf("stored sample for user %s from device %s", payload.UserID, payload.DeviceID)
	}

	log.Println("worker stopped")
}
