// Package main provides a tool to seed the database with test catalog
// and suggestion data.
//
// This fills the mirror with a small fake catalog and stores a few
// suggestions so the ranking and suggestion endpoints can be exercised
// without a Calibre library or a Hardcover token.
//
// Usage:
//
//	BOOKSCOUT_DATA_PATH=~/Bookscout/data go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bookscoutapp/bookscout-server/internal/domain"
	"github.com/bookscoutapp/bookscout-server/internal/id"
	"github.com/bookscoutapp/bookscout-server/internal/store"
)

func main() {
	dataPath := os.Getenv("BOOKSCOUT_DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/Bookscout/data")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(filepath.Join(dataPath, "bookscout.db"), logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	catalog := []domain.CatalogEntry{
		{ID: 1, Title: "Dune", Authors: []string{"Frank Herbert"}, ISBNs: []string{"9780441013593"}, Tags: []string{"Science Fiction"}},
		{ID: 2, Title: "Hyperion", Authors: []string{"Dan Simmons"}, ISBNs: []string{"9780553283686"}, Tags: []string{"Science Fiction", "Space Opera"}},
		{ID: 3, Title: "The Left Hand of Darkness", Authors: []string{"Ursula K. Le Guin"}, ISBNs: []string{"9780441478125"}, Tags: []string{"Science Fiction"}},
		{ID: 4, Title: "Piranesi", Authors: []string{"Susanna Clarke"}, ISBNs: []string{"9781635575637"}, Tags: []string{"Fantasy"}},
	}

	result, err := st.ReplaceMirror(ctx, catalog, "seed")
	if err != nil {
		log.Fatalf("Failed to seed mirror: %v", err)
	}
	fmt.Printf("Mirror seeded: %d entries\n", result.Count)

	suggestions := []struct {
		book    domain.Recommendation
		reasons []string
		genres  []string
	}{
		{
			book:    domain.Recommendation{BookID: "201", Title: "Children of Dune", Slug: "children-of-dune", Authors: []string{"Frank Herbert"}, Genres: []string{"Science Fiction"}},
			reasons: []string{`found in list "Best SF" via "Dune"`},
			genres:  []string{"Science Fiction"},
		},
		{
			book:    domain.Recommendation{BookID: "202", Title: "The Fall of Hyperion", Slug: "the-fall-of-hyperion", Authors: []string{"Dan Simmons"}, Genres: []string{"Space Opera"}},
			reasons: []string{`found in list "Space Opera Essentials" via "Hyperion"`},
			genres:  []string{"Science Fiction", "Space Opera"},
		},
		{
			book:    domain.Recommendation{BookID: "203", Title: "Jonathan Strange & Mr Norrell", Slug: "jonathan-strange-mr-norrell", Authors: []string{"Susanna Clarke"}, Genres: []string{"Fantasy"}},
			reasons: []string{`found in list "Modern Fantasy" via "Piranesi"`},
			genres:  []string{"Fantasy"},
		},
	}

	inserted := 0
	for _, s := range suggestions {
		suggestionID, err := id.Generate("sug")
		if err != nil {
			log.Fatalf("Failed to generate id: %v", err)
		}
		entry := domain.SuggestedEntry{
			ID:         suggestionID,
			SourceKey:  s.book.Key(),
			Book:       s.book,
			BaseGenres: s.genres,
			Reasons:    s.reasons,
			Hidden:     domain.HiddenVisible,
		}
		ok, err := st.InsertSuggestedIfAbsent(ctx, &entry)
		if err != nil {
			log.Fatalf("Failed to insert suggestion: %v", err)
		}
		if ok {
			inserted++
		}
	}
	fmt.Printf("Suggestions seeded: %d new\n", inserted)
}
