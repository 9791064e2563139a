package main

import (
	"log"

	"docqa-be/internal/config"
	"docqa-be/internal/model"
	"docqa-be/pkg/database"
)

// Creates the sessions table used by SESSION_BACKEND=postgres.
func main() {
	cfg := config.Load()

	if cfg.Storage.DBConnection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Storage.DBConnection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Running AutoMigrate for sessions...")
	if err := db.AutoMigrate(&model.Session{}); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migration complete.")
}
