package crafting

import (
	"fmt"

	"marketwatch/internal/domain"

	"github.com/shopspring/decimal"
)

// FlipResult is the outcome of buying in one city and selling on the black market.
type FlipResult struct {
	StartCity     domain.City     `json:"start_city"`
	BuyPrice      int64           `json:"buy_price"`
	SellPrice     int64           `json:"sell_price"`
	Profit        int64           `json:"profit"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
}

// Flip compares the start city's minimum sell price with the black market's.
// Returns ErrNoPriceData when the start city has no price to divide by.
func Flip(start, blackMarket domain.PriceRecord) (FlipResult, error) {
	if start.SellPriceMin <= 0 {
		return FlipResult{}, fmt.Errorf("%s in %s: %w", start.ItemID, start.City, domain.ErrNoPriceData)
	}

	percent := decimal.NewFromInt(blackMarket.SellPriceMin).
		Div(decimal.NewFromInt(start.SellPriceMin)).
		Mul(hundred).
		Sub(hundred).
		Round(2)

	return FlipResult{
		StartCity:     domain.NormalizeCity(start.City),
		BuyPrice:      start.SellPriceMin,
		SellPrice:     blackMarket.SellPriceMin,
		Profit:        blackMarket.SellPriceMin - start.SellPriceMin,
		ProfitPercent: percent,
	}, nil
}
