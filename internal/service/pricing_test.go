package service

import (
	"errors"
	"testing"

	"github.com/shinyyama/oneauction/internal/model"
)

func TestCurrentPrice(t *testing.T) {
	item := &model.Item{Price: dec("5.00")}
	if got := CurrentPrice(item, nil); !got.Equal(dec("5")) {
		t.Fatalf("no bids: got=%s want=5", got)
	}
	latest := &model.Bid{Price: dec("7.25")}
	if got := CurrentPrice(item, latest); !got.Equal(dec("7.25")) {
		t.Fatalf("with bid: got=%s want=7.25", got)
	}
}

func TestAcceptBid(t *testing.T) {
	tests := []struct {
		current, amount string
		wantErr         error
	}{
		{"5.00", "5.01", nil},
		{"5.00", "5.00", ErrBidTooLow},
		{"5.00", "4.99", ErrBidTooLow},
		{"0", "0.01", nil},
	}
	for _, tt := range tests {
		t.Run(tt.current+"->"+tt.amount, func(t *testing.T) {
			err := AcceptBid(dec(tt.current), dec(tt.amount))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got=%v want=%v", err, tt.wantErr)
			}
		})
	}
}

func TestOrderTotal(t *testing.T) {
	tests := []struct {
		name            string
		price, delivery string
		qty, stock      int
		includeDelivery bool
		want            string
		wantErr         error
	}{
		{name: "single with delivery", price: "2.50", delivery: "1.00", qty: 1, stock: 3, includeDelivery: true, want: "3.50"},
		{name: "delivery charged once", price: "2.50", delivery: "1.00", qty: 3, stock: 3, includeDelivery: true, want: "8.50"},
		{name: "without delivery", price: "2.50", delivery: "1.00", qty: 2, stock: 3, want: "5.00"},
		{name: "exceeds stock", price: "2.50", delivery: "1.00", qty: 4, stock: 3, wantErr: ErrInsufficientStock},
		{name: "zero quantity", price: "2.50", qty: 0, stock: 3, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", price: "2.50", qty: -1, stock: 3, wantErr: ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delivery := dec("0")
			if tt.delivery != "" {
				delivery = dec(tt.delivery)
			}
			got, err := OrderTotal(dec(tt.price), delivery, tt.qty, tt.stock, tt.includeDelivery)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err got=%v want=%v", err, tt.wantErr)
			}
			if tt.wantErr == nil && !got.Equal(dec(tt.want)) {
				t.Fatalf("total got=%s want=%s", got, tt.want)
			}
		})
	}
}

func TestCartSummary(t *testing.T) {
	s := CartSummary([]PricedLine{
		{Price: dec("2.00"), Delivery: dec("1.50"), Quantity: 3},
		{Price: dec("10.00"), Delivery: dec("0"), Quantity: 1},
	})
	if !s.Subtotal.Equal(dec("16")) || !s.Delivery.Equal(dec("1.5")) || !s.Total.Equal(dec("17.5")) {
		t.Fatalf("got subtotal=%s delivery=%s total=%s", s.Subtotal, s.Delivery, s.Total)
	}
	empty := CartSummary(nil)
	if !empty.Total.IsZero() {
		t.Fatalf("empty cart total got=%s", empty.Total)
	}
}

func TestRoundRatingAndStars(t *testing.T) {
	tests := []struct {
		avg               float64
		want              float64
		full, half, empty int
	}{
		{0, 0, 0, 0, 5},
		{3.2, 3, 3, 0, 2},
		{3.3, 3.5, 3, 1, 1},
		{3.74, 3.5, 3, 1, 1},
		{3.76, 4, 4, 0, 1},
		{4.9, 5, 5, 0, 0},
	}
	for _, tt := range tests {
		if got := RoundRating(tt.avg); got != tt.want {
			t.Fatalf("RoundRating(%v) got=%v want=%v", tt.avg, got, tt.want)
		}
		full, half, empty := Stars(tt.avg)
		if full != tt.full || half != tt.half || empty != tt.empty {
			t.Fatalf("Stars(%v) got=%d/%d/%d want=%d/%d/%d", tt.avg, full, half, empty, tt.full, tt.half, tt.empty)
		}
	}
}
