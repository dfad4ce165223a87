package domain

// Item is a catalog entry. Quantity counts the copies currently on the shelf.
type Item struct {
	ISBN     string   `json:"isbn"`
	Name     string   `json:"name"`
	Author   string   `json:"author"`
	Category Category `json:"category"`
	Quantity int      `json:"quantity"`
}

// InStock reports whether at least one copy can be lent.
func (i *Item) InStock() bool {
	return i.Quantity > 0
}
