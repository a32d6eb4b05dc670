// Command migrate applies the embedded scribe schema to PostgreSQL.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/JaimeStill/scribe/internal/schema"
	"github.com/JaimeStill/scribe/pkg/database"
)

const envURL = "SCRIBE_DB_URL"

var dbEnv = &database.Env{
	Host:     "SCRIBE_DB_HOST",
	Port:     "SCRIBE_DB_PORT",
	Name:     "SCRIBE_DB_NAME",
	User:     "SCRIBE_DB_USER",
	Password: "SCRIBE_DB_PASSWORD",
	SSLMode:  "SCRIBE_DB_SSL_MODE",
}

func main() {
	var (
		dsn     = flag.String("dsn", "", "postgres:// connection URL (defaults to $SCRIBE_DB_URL, then SCRIBE_DB_* settings)")
		up      = flag.Bool("up", false, "Run all up migrations")
		down    = flag.Bool("down", false, "Run all down migrations")
		steps   = flag.Int("steps", 0, "Number of migrations (positive=up, negative=down)")
		version = flag.Bool("version", false, "Print current migration version")
		force   = flag.Int("force", -1, "Force set version (use with caution)")
	)
	flag.Parse()

	forceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			forceSet = true
		}
	})

	url, err := resolveURL(*dsn)
	if err != nil {
		log.Fatalf("resolve database url: %v", err)
	}

	m, err := database.NewMigrator(schema.Migrations(), url)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("no migrations applied")
			return
		}
		if err != nil {
			log.Fatalf("read version: %v", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	case forceSet:
		if err := m.Force(*force); err != nil {
			log.Fatalf("force version: %v", err)
		}
		fmt.Printf("forced to version %d\n", *force)
	case *up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("apply up migrations: %v", err)
		}
		fmt.Println("migrations applied")
	case *down:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("apply down migrations: %v", err)
		}
		fmt.Println("migrations reverted")
	case *steps != 0:
		if err := m.Steps(*steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("apply migration steps: %v", err)
		}
		fmt.Printf("applied %d migration steps\n", *steps)
	default:
		fmt.Println("usage: migrate [-dsn <url>] -up|-down|-steps N|-version|-force N")
		flag.PrintDefaults()
	}
}

func resolveURL(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(envURL); v != "" {
		return v, nil
	}

	cfg := database.Config{Name: "scribe", User: "scribe", Password: "scribe"}
	if err := cfg.Finalize(dbEnv); err != nil {
		return "", err
	}
	return cfg.URL(), nil
}
