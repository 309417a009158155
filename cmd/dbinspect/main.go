// Package main reports drift between stored derived data and live records
// without changing anything.
//
// Usage:
//
//	DATA_PATH=~/catalog go run ./cmd/dbinspect
//	DATA_PATH=~/catalog go run ./cmd/dbinspect -v  # list every drifted record
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/di"
	"github.com/listenupapp/catalog-server/internal/di/providers"
	"github.com/listenupapp/catalog-server/internal/store"
)

var verbose = flag.Bool("v", false, "Print every drifted record")

type tally struct {
	records int
	drifted int
}

func (t tally) String() string {
	return fmt.Sprintf("%d records, %d drifted", t.records, t.drifted)
}

func main() {
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	injector := di.NewContainer()
	do.OverrideValue(injector, cfg)
	storeHandle, err := do.Invoke[*providers.StoreHandle](injector)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = injector.Shutdown() }()

	ctx := context.Background()
	catalog := storeHandle.Catalog

	fmt.Printf("=== Catalog Inspection (%s) ===\n\n", storeHandle.Backend)

	authors := tally{}
	for a, err := range catalog.Authors().List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list authors: %v", err)
		}
		authors.records++
		n, err := catalog.Books().Count(ctx, store.FieldAuthorID, a.ID)
		if err != nil {
			log.Fatalf("Failed to count books of author %s: %v", a.ID, err)
		}
		if n != a.BookCount {
			authors.drifted++
			report("author %s %q: book_count %d, live %d", a.ID, a.Name, a.BookCount, n)
		}
	}
	fmt.Printf("Authors:    %s\n", authors)

	categories := tally{}
	for c, err := range catalog.Categories().List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list categories: %v", err)
		}
		categories.records++
		n, err := catalog.Books().Count(ctx, store.FieldCategoryIDs, c.ID)
		if err != nil {
			log.Fatalf("Failed to count books of category %s: %v", c.ID, err)
		}
		if n != c.BookCount {
			categories.drifted++
			report("category %s %q: book_count %d, live %d", c.ID, c.Name, c.BookCount, n)
		}
	}
	fmt.Printf("Categories: %s\n", categories)

	users := tally{}
	for u, err := range catalog.Users().List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}
		users.records++
		n, err := catalog.Reviews().Count(ctx, store.FieldUserID, u.ID)
		if err != nil {
			log.Fatalf("Failed to count reviews of user %s: %v", u.ID, err)
		}
		if n != u.ReviewCount {
			users.drifted++
			report("user %s %q: review_count %d, live %d", u.ID, u.Username, u.ReviewCount, n)
		}
	}
	fmt.Printf("Users:      %s\n", users)

	books := tally{}
	for b, err := range catalog.Books().List(ctx) {
		if err != nil {
			log.Fatalf("Failed to list books: %v", err)
		}
		books.records++
		reviews, err := catalog.Reviews().FindBy(ctx, store.FieldBookID, b.ID)
		if err != nil {
			log.Fatalf("Failed to load reviews of book %s: %v", b.ID, err)
		}
		var total float64
		for _, r := range reviews {
			total += r.Rating
		}
		live := *b
		live.SetRatingAggregate(total, len(reviews))
		if live.AverageRating != b.AverageRating {
			books.drifted++
			report("book %s %q: average_rating %.1f, live %.1f", b.ID, b.Title, b.AverageRating, live.AverageRating)
		}
	}
	fmt.Printf("Books:      %s\n", books)

	if authors.drifted+categories.drifted+users.drifted+books.drifted > 0 {
		fmt.Println("\nRun ./cmd/reconcile to correct the drift.")
	}
}

func report(format string, args ...any) {
	if *verbose {
		fmt.Printf("  "+format+"\n", args...)
	}
}
