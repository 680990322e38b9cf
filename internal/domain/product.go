// SPDX-License-Identifier: Apache-2.0

package domain

// Product is one catalog entry. Quantities for a product are expressed
// either in its main unit (single items) or its secondary unit (the retail
// grouping); UnitsRelation is how many main units one secondary unit holds.
type Product struct {
	ID            string `json:"product_id"`
	Title         string `json:"title"`
	UnitsRelation int    `json:"units_relation"`
	MainUnit      string `json:"main_unit_description"`
	SecondaryUnit string `json:"secondary_unit_description"`
}

// NormalizeDefaults fills the unit fields the catalog importer may omit.
func (p *Product) NormalizeDefaults() {
	if p.UnitsRelation == 0 {
		p.UnitsRelation = 10
	}
	if p.MainUnit == "" {
		p.MainUnit = string(UnitPiece)
	}
	if p.SecondaryUnit == "" {
		p.SecondaryUnit = string(UnitBox)
	}
}
