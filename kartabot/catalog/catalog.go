// Package catalog holds the static card-of-the-day content. The catalog is
// loaded once at startup and is read-only for the process lifetime.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrEmptyCatalog = errors.New("card catalog is empty")

type Card struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Image string `json:"image"`
}

type Catalog struct {
	cards []Card
	byID  map[string]Card
}

// Load reads the JSON catalog at path. Image refs are resolved against
// imageRoot so the catalog file can keep them relative.
func Load(path string, imageRoot string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card catalog: %w", err)
	}

	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, fmt.Errorf("failed to parse card catalog: %w", err)
	}

	for i, card := range cards {
		if imageRoot != "" && card.Image != "" && !filepath.IsAbs(card.Image) {
			cards[i].Image = filepath.Join(imageRoot, card.Image)
		}
	}

	return New(cards)
}

// New builds a catalog from already loaded records.
func New(cards []Card) (*Catalog, error) {
	if len(cards) == 0 {
		return nil, ErrEmptyCatalog
	}

	byID := make(map[string]Card, len(cards))
	for i, card := range cards {
		if card.ID == "" {
			return nil, fmt.Errorf("card at index %d has no id", i)
		}
		if _, dup := byID[card.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %q", card.ID)
		}
		byID[card.ID] = card
	}

	return &Catalog{cards: cards, byID: byID}, nil
}

// Cards returns the full catalog in file order.
func (c *Catalog) Cards() []Card {
	return c.cards
}

// ByID looks up a single card.
func (c *Catalog) ByID(id string) (Card, bool) {
	card, ok := c.byID[id]
	return card, ok
}

func (c *Catalog) Size() int {
	return len(c.cards)
}
