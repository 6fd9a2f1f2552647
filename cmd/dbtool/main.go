// Command dbtool creates the Postgres schema and loads a JSON seed of
// managers, drivers, orders and routes.
package main

import (
	"flag"
	"log"
	"tour-optimization-service/internal/adapters/repositories"
	"tour-optimization-service/internal/config"
	"tour-optimization-service/internal/platform/db"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	seedPath := flag.String("seed", config.Get("SEED_PATH", "data/seeds/seed.json"), "path to the JSON seed file")
	schemaOnly := flag.Bool("schema-only", false, "create the schema without seeding")
	flag.Parse()

	conn, err := db.Open(config.Get("DATABASE_URL", ""))
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(conn); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	log.Println("Schema ready.")

	if *schemaOnly {
		return
	}

	log.Printf("Seeding database path=%s", *seedPath)
	if err := repositories.SeedFromJSON(conn, *seedPath); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	log.Println("Seeding complete.")
}
