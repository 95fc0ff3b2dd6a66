package main

import (
	"context"
	"log"
	"os"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := os.Args[1]
	if direction != database.DirectionUp && direction != database.DirectionDown {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	ran, err := database.Migrate(context.Background(), db, direction)
	for _, filename := range ran {
		log.Printf("Ran migration: %s", filename)
	}
	if err != nil {
		log.Fatalf("Migrate: %v", err)
	}

	log.Printf("Successfully ran %d migration(s) %s", len(ran), direction)
}
