package main

import (
	"log"

	"clinedit-collab/internal/bootstrap"
	"clinedit-collab/internal/config"
	"clinedit-collab/internal/server"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg)

	// 3. Start the relay hub
	go container.WebSocketHub.Run()

	// 4. Initialize and run the server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
