// Applies the SQL migrations under migrations/ in order.
//
//	go run scripts/run_migrations.go up
//	go run scripts/run_migrations.go down
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/lib/pq"

	"github.com/jaee/shop-backend/internal/config"
)

func main() {
	if len(os.Args) != 2 || (os.Args[1] != "up" && os.Args[1] != "down") {
		log.Fatal("usage: go run scripts/run_migrations.go up|down")
	}
	direction := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	if err := apply(db, direction); err != nil {
		log.Fatal(err)
	}
}

func apply(db *sql.DB, direction string) error {
	pattern := filepath.Join("migrations", fmt.Sprintf("*.%s.sql", direction))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("glob %s: %w", pattern, err)
	}

	sort.Strings(files)
	if direction == "down" {
		// Down migrations run newest-first.
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		log.Printf("applying %s", filepath.Base(path))
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("apply %s: %w", path, err)
		}
	}

	log.Printf("applied %d migration(s) %s", len(files), direction)
	return nil
}
