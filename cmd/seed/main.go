// Package main provides a tool to seed the database with a demo catalog,
// accounts and loans.
//
// Usage:
//
//	go run ./cmd/seed
//	go run ./cmd/seed -data-path /tmp/campuslib --with-loans  # Also create overdue loans and fines
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/samber/do/v2"

	"github.com/campuslib/campuslib/internal/config"
	"github.com/campuslib/campuslib/internal/di"
	"github.com/campuslib/campuslib/internal/di/providers"
	"github.com/campuslib/campuslib/internal/domain"
	domainerrors "github.com/campuslib/campuslib/internal/errors"
	"github.com/campuslib/campuslib/internal/service"
	"github.com/campuslib/campuslib/internal/store"
)

var demoItems = []service.AddItemRequest{
	{ISBN: "9780132350884", Name: "Clean Code", Author: "Robert C. Martin", Category: "Book", Quantity: 3},
	{ISBN: "9780137081073", Name: "The Clean Coder", Author: "Robert C. Martin", Category: "Book", Quantity: 2},
	{ISBN: "9780201657883", Name: "Programming Pearls", Author: "Jon Bentley", Category: "Book", Quantity: 2},
	{ISBN: "9780134190440", Name: "The Go Programming Language", Author: "Alan Donovan", Category: "Book", Quantity: 4},
	{ISBN: "9780262033848", Name: "Introduction to Algorithms", Author: "Thomas H. Cormen", Category: "Book", Quantity: 1},
	{ISBN: "0074646935121", Name: "Kind of Blue", Author: "Miles Davis", Category: "CD", Quantity: 2},
	{ISBN: "0602498840146", Name: "A Love Supreme", Author: "John Coltrane", Category: "CD", Quantity: 1},
	{ISBN: "0888072300156", Name: "Time Out", Author: "Dave Brubeck", Category: "CD", Quantity: 1},
}

var demoUsers = []service.RegisterRequest{
	{Email: "admin@campus.edu", Role: "admin"},
	{Email: "librarian@campus.edu", Role: "librarian"},
	{Email: "alice@campus.edu", Role: "student"},
	{Email: "bob@campus.edu", Role: "student"},
	{Email: "carol@campus.edu", Role: "student"},
}

const demoPassword = "campuslib-demo"

func main() {
	seedFlags := flag.NewFlagSet("seed", flag.ExitOnError)
	withLoans := seedFlags.Bool("with-loans", false, "Create backdated loans, some overdue and some returned late")

	// Global flags come first; seed flags follow them.
	cfg, rest, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	_ = seedFlags.Parse(rest)

	ctx := context.Background()

	injector := di.NewContainer(cfg)
	defer injector.Shutdown()

	if err := di.Bootstrap(ctx, injector); err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	fmt.Printf("Seeding %s database\n", cfg.Database.Driver)

	catalog := do.MustInvoke[*service.CatalogService](injector)
	for _, req := range demoItems {
		item, err := catalog.AddItem(ctx, req)
		if domainerrors.Is(err, domainerrors.ErrAlreadyExists) {
			fmt.Printf("  item %s already present, skipping\n", req.ISBN)
			continue
		}
		if err != nil {
			log.Fatalf("Failed to add item %s: %v", req.ISBN, err)
		}
		fmt.Printf("  added %s %q\n", item.ISBN, item.Name)
	}

	users := do.MustInvoke[*service.UserService](injector)
	for _, req := range demoUsers {
		req.Password = demoPassword
		req.ConfirmPassword = demoPassword
		if _, err := users.Register(ctx, req); err != nil {
			if domainerrors.Is(err, domainerrors.ErrAlreadyExists) {
				fmt.Printf("  account %s already present, skipping\n", req.Email)
				continue
			}
			log.Fatalf("Failed to register %s: %v", req.Email, err)
		}
		fmt.Printf("  registered %s (%s)\n", req.Email, req.Role)
	}

	if *withLoans {
		storeHandle := do.MustInvoke[*providers.StoreHandle](injector)
		n, err := seedLoans(ctx, storeHandle.Store)
		if err != nil {
			log.Fatalf("Failed to seed loans: %v", err)
		}
		fmt.Printf("  created %d loans\n", n)
	}

	fmt.Printf("\nSeeding complete! Demo password: %s\n", demoPassword)
}

// seedLoans creates backdated loans straight through the store, since the
// services only ever lend as of today. Roughly half are returned, with the
// fine the return would have fixed.
func seedLoans(ctx context.Context, st store.Store) (int, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	today := domain.DateOf(time.Now())
	created := 0

	for _, u := range demoUsers {
		if u.Role != string(domain.RoleStudent) {
			continue
		}

		for range 2 {
			req := demoItems[rng.Intn(len(demoItems))]
			category, err := domain.ParseCategory(req.Category)
			if err != nil {
				return created, err
			}

			borrowed := today.AddDate(0, 0, -(5 + rng.Intn(40)))
			rec := domain.NewBorrowRecord(u.Email, req.ISBN, category, borrowed)
			returned := rng.Intn(2) == 0

			err = st.InTx(ctx, func(tx store.Tx) error {
				if _, err := tx.RecordBorrow(ctx, rec); err != nil {
					return err
				}
				ok, err := tx.DecrementQuantity(ctx, req.ISBN)
				if err != nil {
					return err
				}
				if !ok {
					return store.ErrOutOfStock
				}
				if err := tx.TouchLastBorrow(ctx, u.Email, borrowed); err != nil {
					return err
				}
				if !returned {
					return nil
				}

				rule, err := domain.FineFor(category)
				if err != nil {
					return err
				}
				if _, err := tx.MarkReturned(ctx, u.Email, req.ISBN, rule(rec.OverdueDays(today))); err != nil {
					return err
				}
				_, err = tx.IncrementQuantity(ctx, req.ISBN)
				return err
			})
			if errors.Is(err, store.ErrOutOfStock) || errors.Is(err, store.ErrAlreadyExists) {
				continue
			}
			if err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}
