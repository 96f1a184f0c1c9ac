// Command dbinspect dumps a summary of the crawl cache for debugging.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bookscoutapp/bookscout-server/internal/crawlcache"
	"github.com/bookscoutapp/bookscout-server/internal/domain"
)

func main() {
	dataPath := os.Getenv("BOOKSCOUT_DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/Bookscout/data")
	}
	cachePath := filepath.Join(dataPath, "crawlcache")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache, err := crawlcache.Open(cachePath, logger)
	if err != nil {
		log.Fatalf("Failed to open crawl cache: %v", err)
	}
	defer cache.Close()

	ctx := context.Background()

	fmt.Println("=== Crawl Cache Inspection ===")
	fmt.Println()

	shown := 0
	err = cache.All(ctx, func(entry *domain.CrawlCacheEntry) error {
		if shown >= 10 {
			return nil
		}
		shown++

		fmt.Printf("Catalog entry %d: %s\n", entry.CatalogID, entry.Status)
		if entry.Matched() {
			fmt.Printf("  Book: %s (id %s)\n", entry.BookTitle, entry.BookID)
			fmt.Printf("  Lists: %d, Recommendations: %d\n", entry.ListCount, entry.RecCount)
			for i, hit := range entry.ListHits {
				if i >= 3 {
					fmt.Printf("  ... and %d more lists\n", len(entry.ListHits)-3)
					break
				}
				fmt.Printf("    [%d] %s (%d books)\n", i, hit.Name, hit.BooksCount)
			}
		}
		fmt.Printf("  Last checked: %s\n", entry.LastChecked.Format("2006-01-02 15:04:05"))
		fmt.Println()
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating crawl cache: %v", err)
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		log.Fatalf("Error reading stats: %v", err)
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Total entries: %d\n", stats.Total)
	fmt.Printf("With lists: %d\n", stats.WithLists)
	fmt.Printf("Not matched: %d\n", stats.NotMatched)
	fmt.Printf("Pending: %d\n", stats.Pending)
}
