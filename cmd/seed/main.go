// Command main fills a development database with demo confessions.
package main

import (
	"context"
	"flag"
	"log"

	"confessional/internal/bootstrap"
	"confessional/internal/config"
	"confessional/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	profiles := flag.Int("profiles", defaults.Profiles, "Number of demo profiles to create")
	confessions := flag.Int("confessions", defaults.Confessions, "Number of approved confessions to create")
	comments := flag.Int("comments", defaults.CommentsPerConfession, "Comments per approved confession")
	pending := flag.Int("pending", defaults.Pending, "Confessions left in the review queue")
	clean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("rand-seed", 0, "Seed for reproducible content (0 = random)")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d profiles, %d confessions, %d comments each, %d pending, clean=%v\n",
		*profiles, *confessions, *comments, *pending, *clean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	_, _, err = bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{
		ApplySchema: true,
		SeedDemo:    true,
		Demo: seed.Options{
			Profiles:              *profiles,
			Confessions:           *confessions,
			CommentsPerConfession: *comments,
			Pending:               *pending,
			Clean:                 *clean,
			RandSeed:              *randSeed,
		},
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}
}
