package domain

// Unit is the enumerated unit tag a cart quantity is expressed in.
// Values mirror the shop's catalog vocabulary and are never free text.
type Unit string

const (
	UnitBox      Unit = "KOYTA"
	UnitPiece    Unit = "ΤΕΜΑΧΙΟ"
	UnitCan      Unit = "CAN"
	UnitFivePack Unit = "ΠΕΝΤΑΔΑ"
	UnitCase     Unit = "ΚΑΣΕΤΙΝΑ"
)

// KnownUnit reports whether u is one of the enumerated unit tags.
func KnownUnit(u Unit) bool {
	switch u {
	case UnitBox, UnitPiece, UnitCan, UnitFivePack, UnitCase:
		return true
	}
	return false
}

type CartItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Unit        Unit   `json:"unit"`
}

// IndexCart indexes a cart by product id. Later entries overwrite earlier
// ones: duplicate product ids inside one cart are last-write-wins by
// contract, not by accident of map iteration.
func IndexCart(items []CartItem) map[string]CartItem {
	out := make(map[string]CartItem, len(items))
	for _, it := range items {
		out[it.ProductID] = it
	}
	return out
}
