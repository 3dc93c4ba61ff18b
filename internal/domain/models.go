package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Rarity string

const (
	RarityCommon Rarity = "common"
	RarityRare   Rarity = "rare"
	RaritySecret Rarity = "secret"
)

func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityRare, RaritySecret:
		return true
	}
	return false
}

// ParseRarity accepts the rarity labels case-insensitively.
func ParseRarity(s string) (Rarity, error) {
	r := Rarity(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown rarity %q", s)
	}
	return r, nil
}

type Prize struct {
	ID          string          `json:"id"`
	BoxID       string          `json:"box_id"`
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Rarity      Rarity          `json:"rarity"`
	Probability float64         `json:"probability"`
	Value       decimal.Decimal `json:"value"`
}

// BlindBox is a catalog entry. Prizes keep the order the catalog returned
// them in; the selector relies on that order.
type BlindBox struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      bool            `json:"active"`
	Prizes      []Prize         `json:"prizes"`
}

// Order is a denormalized snapshot of a committed draw. Only Status changes
// after creation.
type Order struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	UserID         string          `json:"user_id"`
	BoxID          string          `json:"box_id"`
	BoxName        string          `json:"box_name"`
	PrizeID        string          `json:"prize_id"`
	PrizeName      string          `json:"prize_name"`
	PrizeImage     string          `json:"prize_image"`
	Rarity         Rarity          `json:"rarity"`
	PricePaid      decimal.Decimal `json:"price_paid"`
	Status         OrderStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}
