package main

import (
	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/ariefcatur/go-blindbox-draws/internal/memstore"
	"github.com/shopspring/decimal"
)

// seedDemo fills the memory backend with a small catalog and two funded
// accounts for local runs.
func seedDemo(s *memstore.Store) {
	s.PutBox(domain.BlindBox{
		ID:          "forest-friends",
		Name:        "Forest Friends",
		Description: "Woodland figures, series 1",
		Image:       "forest.png",
		Price:       decimal.RequireFromString("59.90"),
		Stock:       100,
		Active:      true,
		Prizes: []domain.Prize{
			{ID: "ff-fox", BoxID: "forest-friends", Name: "Fox", Image: "fox.png", Rarity: domain.RarityCommon, Probability: 0.7, Value: decimal.RequireFromString("39.00")},
			{ID: "ff-owl", BoxID: "forest-friends", Name: "Owl", Image: "owl.png", Rarity: domain.RarityRare, Probability: 0.2, Value: decimal.RequireFromString("99.00")},
			{ID: "ff-stag", BoxID: "forest-friends", Name: "Golden Stag", Image: "stag.png", Rarity: domain.RaritySecret, Probability: 0.1, Value: decimal.RequireFromString("399.00")},
		},
	})
	s.PutBox(domain.BlindBox{
		ID:     "ocean-pals",
		Name:   "Ocean Pals",
		Image:  "ocean.png",
		Price:  decimal.RequireFromString("39.90"),
		Stock:  50,
		Active: true,
		Prizes: []domain.Prize{
			{ID: "op-crab", BoxID: "ocean-pals", Name: "Crab", Image: "crab.png", Rarity: domain.RarityCommon, Probability: 0.8, Value: decimal.RequireFromString("25.00")},
			{ID: "op-whale", BoxID: "ocean-pals", Name: "Whale", Image: "whale.png", Rarity: domain.RaritySecret, Probability: 0.2, Value: decimal.RequireFromString("199.00")},
		},
	})
	s.PutAccount("demo-user", decimal.NewFromInt(500))
	s.PutAccount("demo-user-2", decimal.NewFromInt(50))
}
