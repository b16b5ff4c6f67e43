package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/fadedpez/clubwheel/pkg/db/migrations"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	createCmd := flag.NewFlagSet("create", flag.ExitOnError)
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)

	migrationsDir := createCmd.String("dir", "pkg/db/migrations/sql", "Directory to store migrations")

	dbPath := migrateCmd.String("db", "data/clubwheel.db", "Path to SQLite database")
	migrateDir := migrateCmd.String("dir", "", "Directory containing migrations (defaults to the embedded schema)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		createCmd.Parse(os.Args[2:])
		if createCmd.NArg() < 1 {
			fmt.Println("Error: Missing migration description")
			createCmd.Usage()
			os.Exit(1)
		}
		filePath, err := migrations.CreateMigration(*migrationsDir, createCmd.Arg(0))
		if err != nil {
			log.Fatalf("Error creating migration: %v", err)
		}
		fmt.Printf("Created migration file: %s\n", filePath)

	case "migrate":
		migrateCmd.Parse(os.Args[2:])
		applyMigrations(*dbPath, *migrateDir)

	case "help":
		printUsage()

	default:
		fmt.Printf("Error: Unknown command '%s'\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migration create DESCRIPTION  - Create a new migration")
	fmt.Println("  migration migrate             - Apply pending migrations")
	fmt.Println("  migration help                - Show this help")
	fmt.Println("\nExamples:")
	fmt.Println("  migration create \"add club tags\"")
	fmt.Println("  migration migrate -db data/clubwheel.db")
}

func applyMigrations(dbPath, migrationsDir string) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatalf("Error creating database directory: %v", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}
	defer conn.Close()

	var source fs.FS = migrations.Embedded()
	if migrationsDir != "" {
		source = os.DirFS(migrationsDir)
	}

	applied, err := migrations.NewMigrator(conn, source).MigrateUp(context.Background())
	if err != nil {
		log.Fatalf("Error applying migrations: %v", err)
	}

	fmt.Printf("Applied %d migration(s)\n", applied)
}
