package service

import (
	"math"

	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shopspring/decimal"
)

// CurrentPrice is the latest bid, or the listing price when nobody has bid.
func CurrentPrice(item *model.Item, latest *model.Bid) decimal.Decimal {
	if latest != nil {
		return latest.Price
	}
	return item.Price
}

// AcceptBid accepts amount only when it is strictly above current.
func AcceptBid(current, amount decimal.Decimal) error {
	if !amount.GreaterThan(current) {
		return ErrBidTooLow
	}
	return nil
}

// OrderTotal is price × quantity, plus delivery once when includeDelivery is set.
func OrderTotal(price, delivery decimal.Decimal, quantity, stock int, includeDelivery bool) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	if quantity > stock {
		return decimal.Zero, ErrInsufficientStock
	}
	total := price.Mul(decimal.NewFromInt(int64(quantity)))
	if includeDelivery {
		total = total.Add(delivery)
	}
	return total, nil
}

type PricedLine struct {
	Price    decimal.Decimal
	Delivery decimal.Decimal
	Quantity int
}

type Summary struct {
	Subtotal decimal.Decimal
	Delivery decimal.Decimal
	Total    decimal.Decimal
}

// CartSummary charges delivery once per line regardless of quantity.
func CartSummary(lines []PricedLine) Summary {
	s := Summary{Subtotal: decimal.Zero, Delivery: decimal.Zero}
	for _, l := range lines {
		s.Subtotal = s.Subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		s.Delivery = s.Delivery.Add(l.Delivery)
	}
	s.Total = s.Subtotal.Add(s.Delivery)
	return s
}

// RoundRating rounds to the nearest half star, ties to even.
func RoundRating(avg float64) float64 {
	return math.RoundToEven(avg*2) / 2
}

// Stars splits a rating into full, half and empty stars out of five.
func Stars(avg float64) (full, half, empty int) {
	r := RoundRating(avg)
	if r < 0 {
		r = 0
	}
	if r > 5 {
		r = 5
	}
	full = int(r)
	if r-float64(full) == 0.5 {
		half = 1
	}
	empty = 5 - full - half
	return full, half, empty
}
