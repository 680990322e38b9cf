// SPDX-License-Identifier: Apache-2.0

// Package prompt renders the system prompt sent to the models: a template
// with two placeholders, one for the product catalog and one for the
// running cart state.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mouhalis/voiceval/internal/domain"
)

const (
	// PlaceholderCatalog is replaced with the catalog rendered as CSV.
	PlaceholderCatalog = "{{catalog}}"
	// PlaceholderCart is replaced with the current cart rendered as JSON.
	PlaceholderCart = "{{current_cart_json}}"
)

// Build substitutes both placeholders in template. A template without
// placeholders passes through unchanged.
func Build(template string, products []domain.Product, cart []domain.CartItem) string {
	out := strings.ReplaceAll(template, PlaceholderCatalog, CatalogCSV(products))
	return strings.ReplaceAll(out, PlaceholderCart, CartJSON(cart))
}

// CatalogCSV renders the product catalog as quoted CSV, one row per
// product under a fixed header. The models are instructed to look product
// ids up in the first column.
func CatalogCSV(products []domain.Product) string {
	if len(products) == 0 {
		return "No products available"
	}

	var b strings.Builder
	b.WriteString(`"id","title","units_relation","main_unit_description","secondary_unit_description"`)
	for _, p := range products {
		p.NormalizeDefaults()
		fmt.Fprintf(&b, "\n\"%s\",\"%s\",\"%d\",\"%s\",\"%s\"",
			p.ID, p.Title, p.UnitsRelation, p.MainUnit, p.SecondaryUnit)
	}
	return b.String()
}

// cartEntry is the wire shape of one cart line inside the prompt.
type cartEntry struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Unit     string `json:"unit"`
}

// CartJSON renders the cart as indented JSON; an empty cart renders as [].
func CartJSON(items []domain.CartItem) string {
	if len(items) == 0 {
		return "[]"
	}

	entries := make([]cartEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, cartEntry{
			ID:       item.ProductID,
			Quantity: item.Quantity,
			Unit:     string(item.Unit),
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
