// Command wednesday-cli runs maintenance tasks against a Wednesday database
// without going through the web server: a one-shot pull-list generation and
// password resets for locked-out users.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/rhymeswithjazz/pull-list/internal/assets"
	"github.com/rhymeswithjazz/pull-list/internal/auth"
	"github.com/rhymeswithjazz/pull-list/internal/config"
	"github.com/rhymeswithjazz/pull-list/internal/core"
	"github.com/rhymeswithjazz/pull-list/internal/db"
	"github.com/rhymeswithjazz/pull-list/internal/jobs"
	"github.com/rhymeswithjazz/pull-list/internal/models"
	"github.com/rhymeswithjazz/pull-list/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "generate":
		runGenerate()
	case "reset-password":
		if len(os.Args) != 4 {
			usage()
		}
		resetPassword(os.Args[2], os.Args[3])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  wednesday-cli generate                            Run one pull-list generation now
  wednesday-cli reset-password <username> <password>  Set a user's password
`)
	os.Exit(2)
}

func runGenerate() {
	app, err := core.New("cli")
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()

	result := jobs.RunGeneration(app, models.RunTypeManual)
	if !result.Success {
		log.Fatalf("Generation failed: %s", result.Error)
	}

	log.Printf("Generation complete for week %s: %d books", result.WeekID, len(result.Items))
	if result.ReadlistName != nil {
		log.Printf("Readlist: %s", *result.ReadlistName)
	}
}

func resetPassword(username, password string) {
	// Load configuration from config.yml
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the database connection
	database, err := db.InitDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Run database migrations
	if err := db.RunMigrations(database, assets.MigrationsFS); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	st := store.New(database)
	user, err := st.GetUserByUsername(username)
	if err != nil {
		log.Fatalf("User %q not found: %v", username, err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	if err := st.UpdateUserPassword(user.ID, passwordHash); err != nil {
		log.Fatalf("Failed to update password: %v", err)
	}

	fmt.Printf("Password updated for %s.\n", username)
}
