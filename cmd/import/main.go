package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lingolens/srs-service/internal/data"
	"github.com/lingolens/srs-service/internal/dal/kv"
	"github.com/lingolens/srs-service/internal/dal/sqlite"
)

var (
	source string
	dbPath string
	userID string
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	if err := validate(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		fmt.Printf("failed to open database: %v\n", err)
		os.Exit(2)
	}
	defer db.Close()

	keyValue, err := sqlite.NewKeyValue(ctx, db)
	if err != nil {
		fmt.Printf("failed to init key-value store: %v\n", err)
		os.Exit(2)
	}
	store := kv.NewCardStore(ctx, keyValue, slog.Default())

	in, err := os.Open(source)
	if err != nil {
		fmt.Printf("failed to open source file: %v\n", err)
		os.Exit(3)
	}

	lines := make(chan data.Line)
	parseErr := make(chan error, 1)
	go func() {
		parseErr <- data.Parse(ctx, in, lines)
	}()

	imported := 0
	for line := range lines {
		// FindOrCreate keeps re-imports idempotent: an existing card only
		// gets its usage counter bumped.
		if _, err = store.FindOrCreate(ctx, userID, line.Label, line.Term, line.Pronunciation, line.Note); err != nil {
			fmt.Printf("failed to import card %q: %v\n", line.Label, err)
			os.Exit(4)
		}
		imported++
	}

	if err = <-parseErr; err != nil {
		var pErr *data.ParsingError
		if errors.As(err, &pErr) {
			fmt.Printf("imported %d cards, skipped invalid lines: %v\n", imported, pErr.InvalidLines)
			return
		}
		fmt.Printf("failed to parse source: %v\n", err)
		os.Exit(3)
	}

	fmt.Printf("imported %d cards\n", imported)
}

func validate() error {
	if source == "" {
		return errors.New("source file is required")
	}

	if dbPath == "" {
		return errors.New("database path is required")
	}

	if userID == "" {
		return errors.New("user ID is required")
	}

	return nil
}

func init() {
	flag.StringVar(&source, "source", "", "source CSV file")
	flag.StringVar(&dbPath, "db-path", "", "sqlite database path")
	flag.StringVar(&userID, "user-id", "", "user the cards are imported for")
	flag.Parse()
}
