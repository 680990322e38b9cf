// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"

	"github.com/mouhalis/voiceval/internal/domain"
)

func (p *Postgres) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, title, units_relation, main_unit, secondary_unit
		FROM products ORDER BY id
	`)
	if err != nil {
		p.logger.Error("list products failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var prod domain.Product
		if err := rows.Scan(&prod.ID, &prod.Title, &prod.UnitsRelation, &prod.MainUnit, &prod.SecondaryUnit); err != nil {
			return nil, err
		}
		out = append(out, prod)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateProduct(ctx context.Context, prod domain.Product) (domain.Product, error) {
	prod.NormalizeDefaults()

	_, err := p.pool.Exec(ctx, `
		INSERT INTO products (id, title, units_relation, main_unit, secondary_unit)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			units_relation = EXCLUDED.units_relation,
			main_unit = EXCLUDED.main_unit,
			secondary_unit = EXCLUDED.secondary_unit
	`, prod.ID, prod.Title, prod.UnitsRelation, prod.MainUnit, prod.SecondaryUnit)
	if err != nil {
		p.logger.Error("create product failed", "product_id", prod.ID, "error", err)
		return domain.Product{}, err
	}
	return prod, nil
}

func (p *Postgres) UpdateProduct(ctx context.Context, id string, upd ProductUpdate) (domain.Product, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE products SET
			title = COALESCE($2, title),
			units_relation = COALESCE($3, units_relation),
			main_unit = COALESCE($4, main_unit),
			secondary_unit = COALESCE($5, secondary_unit)
		WHERE id=$1
	`, id, upd.Title, upd.UnitsRelation, upd.MainUnit, upd.SecondaryUnit)
	if err != nil {
		p.logger.Error("update product failed", "product_id", id, "error", err)
		return domain.Product{}, err
	}
	if tag.RowsAffected() == 0 {
		return domain.Product{}, domain.ErrProductNotFound
	}

	var prod domain.Product
	err = p.pool.QueryRow(ctx, `
		SELECT id, title, units_relation, main_unit, secondary_unit
		FROM products WHERE id=$1
	`, id).Scan(&prod.ID, &prod.Title, &prod.UnitsRelation, &prod.MainUnit, &prod.SecondaryUnit)
	if err != nil {
		return domain.Product{}, err
	}
	return prod, nil
}

func (p *Postgres) DeleteProduct(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		p.logger.Error("delete product failed", "product_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}
