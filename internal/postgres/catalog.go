package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type CatalogRepo struct {
	DB Executor
}

func NewCatalogRepo(db Executor) *CatalogRepo { return &CatalogRepo{DB: db} }

const boxColumns = `id, name, description, image, price::text, stock, active`

func (r *CatalogRepo) GetBoxWithPrizes(ctx context.Context, boxID string) (domain.BlindBox, error) {
	box, err := scanBox(r.DB.QueryRow(ctx, `SELECT `+boxColumns+` FROM blind_boxes WHERE id = $1`, boxID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BlindBox{}, &domain.BoxNotFoundError{Msg: fmt.Sprintf("blind box %s not found", boxID)}
	}
	if err != nil {
		return domain.BlindBox{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, box_id, name, image, rarity, probability, value::text
		FROM prizes WHERE box_id = $1
		ORDER BY position, id`, boxID)
	if err != nil {
		return domain.BlindBox{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p         domain.Prize
			rarity    string
			valueText string
		)
		if err := rows.Scan(&p.ID, &p.BoxID, &p.Name, &p.Image, &rarity, &p.Probability, &valueText); err != nil {
			return domain.BlindBox{}, err
		}
		if p.Rarity, err = domain.ParseRarity(rarity); err != nil {
			return domain.BlindBox{}, &domain.ProbabilityTableInvalidError{Msg: fmt.Sprintf("blind box %s prize %s: %v", boxID, p.ID, err)}
		}
		if p.Value, err = decimal.NewFromString(valueText); err != nil {
			return domain.BlindBox{}, &domain.ProbabilityTableInvalidError{Msg: fmt.Sprintf("blind box %s prize %s value %q", boxID, p.ID, valueText)}
		}
		box.Prizes = append(box.Prizes, p)
	}
	return box, rows.Err()
}

// ListBoxes returns boxes whose name contains keyword, without prizes.
func (r *CatalogRepo) ListBoxes(ctx context.Context, keyword string) ([]domain.BlindBox, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+boxColumns+` FROM blind_boxes
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY name`, strings.TrimSpace(keyword))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.BlindBox{}
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) MarkInactive(ctx context.Context, boxID, reason string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE blind_boxes SET active = false, inactive_reason = $2, updated_at = now()
		WHERE id = $1`, boxID, reason)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &domain.BoxNotFoundError{Msg: fmt.Sprintf("blind box %s not found", boxID)}
	}
	return nil
}

func scanBox(row pgx.Row) (domain.BlindBox, error) {
	var (
		b         domain.BlindBox
		priceText string
	)
	if err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Image, &priceText, &b.Stock, &b.Active); err != nil {
		return domain.BlindBox{}, err
	}
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return domain.BlindBox{}, fmt.Errorf("parse price %q: %w", priceText, err)
	}
	b.Price = price
	return b, nil
}
