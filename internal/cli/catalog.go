package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/campuslib/campuslib/internal/domain"
	"github.com/campuslib/campuslib/internal/service"
)

func itemRows(items []*domain.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ISBN,
			item.Name,
			item.Author,
			string(item.Category),
			strconv.Itoa(item.Quantity),
		})
	}
	return rows
}

var itemHeader = []string{"ISBN", "NAME", "AUTHOR", "CATEGORY", "QTY"}

func (a *App) addItem(ctx context.Context, args []string) error {
	fs, p := a.flags("add-item", "")
	var req service.AddItemRequest
	fs.StringVar(&req.ISBN, "isbn", "", "Item ISBN")
	fs.StringVar(&req.Name, "name", "", "Title")
	fs.StringVar(&req.Author, "author", "", "Author or artist")
	fs.StringVar(&req.Category, "category", "", "Book or CD")
	fs.IntVar(&req.Quantity, "quantity", 1, "Copies on the shelf")
	if err := parse(fs, args); err != nil {
		return err
	}

	item, err := a.Catalog.AddItem(ctx, req)
	if err != nil {
		return err
	}
	return p.result(item, func(w io.Writer) {
		fmt.Fprintf(w, "added %s %q (%s, %d copies)\n", item.ISBN, item.Name, item.Category, item.Quantity)
	})
}

func (a *App) restock(ctx context.Context, args []string) error {
	fs, p := a.flags("restock", "")
	isbn := fs.String("isbn", "", "Item ISBN")
	quantity := fs.Int("quantity", 1, "Copies to add")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{"isbn": *isbn}); err != nil {
		return err
	}

	item, err := a.Catalog.Restock(ctx, *isbn, *quantity)
	if err != nil {
		return err
	}
	return p.result(item, func(w io.Writer) {
		fmt.Fprintf(w, "%s now has %d copies on the shelf\n", item.ISBN, item.Quantity)
	})
}

func (a *App) removeItem(ctx context.Context, args []string) error {
	fs, p := a.flags("remove-item", "")
	isbn := fs.String("isbn", "", "Item ISBN")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireFlags(map[string]string{"isbn": *isbn}); err != nil {
		return err
	}

	if err := a.Catalog.RemoveItem(ctx, *isbn); err != nil {
		return err
	}
	return p.result(map[string]string{"removed": *isbn}, func(w io.Writer) {
		fmt.Fprintf(w, "removed %s\n", *isbn)
	})
}

func (a *App) items(ctx context.Context, args []string) error {
	fs, p := a.flags("items", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	items, err := a.Catalog.ListItems(ctx)
	if err != nil {
		return err
	}
	return p.result(items, p.table(itemHeader, itemRows(items)))
}

func (a *App) search(ctx context.Context, args []string) error {
	fs, p := a.flags("search", "[query...]")
	var params service.SearchParams
	fs.StringVar(&params.Field, "field", "any", "Field to match: name, author or any")
	fs.StringVar(&params.Category, "category", "", "Only items of this category")
	fs.IntVar(&params.Limit, "limit", 20, "Maximum results")
	if err := parse(fs, args); err != nil {
		return err
	}
	params.Query = strings.Join(fs.Args(), " ")

	items, err := a.Catalog.Search(ctx, params)
	if err != nil {
		return err
	}
	return p.result(items, func(w io.Writer) {
		if len(items) == 0 {
			fmt.Fprintln(w, "no matching items")
			return
		}
		p.table(itemHeader, itemRows(items))(w)
	})
}

func (a *App) reindex(ctx context.Context, args []string) error {
	fs, p := a.flags("reindex", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	n, err := a.Catalog.Reindex(ctx)
	if err != nil {
		return err
	}
	return p.result(map[string]int{"indexed": n}, func(w io.Writer) {
		fmt.Fprintf(w, "indexed %d items\n", n)
	})
}
