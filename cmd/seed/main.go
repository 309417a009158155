// Package main provides a tool to seed the catalog with sample data.
//
// Everything is written through the services, so book counts, review counts,
// ratings and snapshots are maintained exactly as they are for API writes.
//
// Usage:
//
//	DATA_PATH=~/catalog go run ./cmd/seed
//	DATA_PATH=~/catalog go run ./cmd/seed -books 40 -users 10
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/di"
	"github.com/listenupapp/catalog-server/internal/service"
)

var (
	numBooks = flag.Int("books", 20, "Number of books to create")
	numUsers = flag.Int("users", 5, "Number of users to create")
)

var authorNames = []string{
	"Ursula K. Le Guin",
	"Frank Herbert",
	"Octavia E. Butler",
	"Isaac Asimov",
	"N. K. Jemisin",
	"Terry Pratchett",
}

var categoryNames = []string{
	"Science Fiction",
	"Fantasy",
	"Classics",
	"Award Winners",
}

var titleWords = []string{
	"Dust", "Tower", "Winter", "Empire", "Ocean", "Shadow", "Engine", "Harbor", "Crown", "Garden",
}

func main() {
	flag.Parse()

	// Settings come from the environment and .env only; flags belong to this tool.
	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	injector := di.NewContainer()
	do.OverrideValue(injector, cfg)
	if err := di.Bootstrap(injector); err != nil {
		log.Fatalf("Failed to bootstrap: %v", err)
	}
	defer func() {
		if err := injector.Shutdown(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	ctx := context.Background()
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	run := time.Now().Format("150405")

	authors := do.MustInvoke[*service.AuthorService](injector)
	categories := do.MustInvoke[*service.CategoryService](injector)
	books := do.MustInvoke[*service.BookService](injector)
	users := do.MustInvoke[*service.UserService](injector)
	reviews := do.MustInvoke[*service.ReviewService](injector)

	fmt.Println("=== Creating authors ===")
	var authorIDs []string
	for i, name := range authorNames {
		a, err := authors.CreateAuthor(ctx, service.CreateAuthorRequest{
			Name:      name,
			BirthDate: fmt.Sprintf("19%02d-0%d-1%d", 20+i*5, 1+i%9, i%10),
		})
		if err != nil {
			log.Printf("Failed to create author %s: %v", name, err)
			continue
		}
		authorIDs = append(authorIDs, a.ID)
	}

	fmt.Println("=== Creating categories ===")
	var categoryIDs []string
	for _, name := range categoryNames {
		c, err := categories.CreateCategory(ctx, service.CreateCategoryRequest{Name: name + " " + run})
		if err != nil {
			log.Printf("Failed to create category %s: %v", name, err)
			continue
		}
		categoryIDs = append(categoryIDs, c.ID)
	}

	if len(authorIDs) == 0 {
		log.Fatal("No authors created, nothing to seed.")
	}

	fmt.Println("=== Creating books ===")
	var bookIDs []string
	for range *numBooks {
		req := service.CreateBookRequest{
			Title:           "The " + titleWords[rng.IntN(len(titleWords))] + " of " + titleWords[rng.IntN(len(titleWords))],
			PublicationDate: fmt.Sprintf("%d-0%d-15", 1950+rng.IntN(70), 1+rng.IntN(9)),
			PageCount:       150 + rng.IntN(600),
			Language:        "en",
			AuthorID:        authorIDs[rng.IntN(len(authorIDs))],
		}
		for _, cid := range categoryIDs {
			if rng.IntN(3) == 0 {
				req.CategoryIDs = append(req.CategoryIDs, cid)
			}
		}

		res, err := books.CreateBook(ctx, req)
		if err != nil {
			log.Printf("Failed to create book %q: %v", req.Title, err)
			continue
		}
		for _, w := range res.Warnings {
			log.Printf("  warning on %s: %s %s %s", res.Book.ID, w.Stage, w.Kind, w.ID)
		}
		bookIDs = append(bookIDs, res.Book.ID)
	}
	fmt.Printf("  Created %d books\n", len(bookIDs))

	fmt.Println("=== Creating users and reviews ===")
	reviewsCreated := 0
	for i := range *numUsers {
		username := fmt.Sprintf("reader%s%d", run, i)
		user, err := users.CreateUser(ctx, service.CreateUserRequest{
			Username: username,
			Email:    username + "@example.com",
			Password: "seed-password",
		})
		if err != nil {
			log.Printf("Failed to create user %s: %v", username, err)
			continue
		}

		// Each user reviews up to five distinct books.
		for _, idx := range rng.Perm(len(bookIDs))[:min(5, len(bookIDs))] {
			_, err := reviews.CreateReview(ctx, bookIDs[idx], user.ID, service.CreateReviewRequest{
				Rating: float64(1 + rng.IntN(5)),
				Title:  "Thoughts from " + username,
			})
			if err != nil {
				log.Printf("Failed to create review: %v", err)
				continue
			}
			reviewsCreated++
		}
	}
	fmt.Printf("  Created %d reviews\n", reviewsCreated)

	fmt.Println("\nSeeding complete!")
}
