package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newProfileFixture(now time.Time) (*fakeAddresses, *fakeCards, *profileService) {
	addrs, cards := &fakeAddresses{}, &fakeCards{}
	svc := NewProfileService(addrs, cards).(*profileService)
	svc.now = func() time.Time { return now }
	return addrs, cards, svc
}

func TestAddressLifecycle(t *testing.T) {
	ctx := context.Background()
	_, _, svc := newProfileFixture(time.Now())
	in := AddressInput{AddressLine1: "1 High St", Town: "Leeds", Postcode: " ls1 1aa ", Country: "gb", IsPrimary: true}

	first, err := svc.AddAddress(ctx, 1, in)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first.Postcode != "LS1 1AA" || first.Country != "GB" {
		t.Fatalf("normalised got postcode=%q country=%q", first.Postcode, first.Country)
	}
	second, err := svc.AddAddress(ctx, 1, in)
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	list, _ := svc.Addresses(ctx, 1)
	primaries := 0
	for _, a := range list {
		if a.IsPrimary {
			primaries++
			if a.ID != second.ID {
				t.Fatalf("primary got=%d want=%d", a.ID, second.ID)
			}
		}
	}
	if primaries != 1 {
		t.Fatalf("primaries got=%d want=1", primaries)
	}

	if _, err := svc.UpdateAddress(ctx, 2, first.ID, in); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update by other user: got=%v", err)
	}
	if err := svc.DeleteAddress(ctx, 2, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete by other user: got=%v", err)
	}
	if err := svc.DeleteAddress(ctx, 1, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestAddressValidation(t *testing.T) {
	_, _, svc := newProfileFixture(time.Now())
	tests := []struct {
		name string
		in   AddressInput
	}{
		{"missing town", AddressInput{AddressLine1: "1 High St", Postcode: "LS1", Country: "GB"}},
		{"long country", AddressInput{AddressLine1: "1 High St", Town: "Leeds", Postcode: "LS1", Country: "GBR"}},
		{"digit country", AddressInput{AddressLine1: "1 High St", Town: "Leeds", Postcode: "LS1", Country: "G1"}},
		{"long postcode", AddressInput{AddressLine1: "1 High St", Town: "Leeds", Postcode: "12345678901234567", Country: "GB"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *ValidationError
			if _, err := svc.AddAddress(context.Background(), 1, tt.in); !errors.As(err, &ve) {
				t.Fatalf("got=%v want ValidationError", err)
			}
		})
	}
}

func TestPaymentMethods(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	_, cards, svc := newProfileFixture(now)
	valid := PaymentMethodInput{Number: "4111 1111 1111 1111", Name: "A Lovelace", CVV: "123", ExpMonth: 3, ExpYear: 2026}

	tests := []struct {
		name   string
		mutate func(*PaymentMethodInput)
		ok     bool
	}{
		{"valid current month", func(in *PaymentMethodInput) {}, true},
		{"five years ahead", func(in *PaymentMethodInput) { in.ExpYear = 2031 }, true},
		{"past month", func(in *PaymentMethodInput) { in.ExpMonth = 2 }, false},
		{"beyond five years", func(in *PaymentMethodInput) { in.ExpMonth, in.ExpYear = 4, 2031 }, false},
		{"bad month", func(in *PaymentMethodInput) { in.ExpMonth = 13 }, false},
		{"short number", func(in *PaymentMethodInput) { in.Number = "4111" }, false},
		{"letters in number", func(in *PaymentMethodInput) { in.Number = "4111x11111111111" }, false},
		{"short cvv", func(in *PaymentMethodInput) { in.CVV = "12" }, false},
		{"no name", func(in *PaymentMethodInput) { in.Name = " " }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			p, err := svc.AddPaymentMethod(ctx, 1, in)
			if tt.ok {
				if err != nil {
					t.Fatalf("add: %v", err)
				}
				if p.MaskedNumber() != "**** **** **** 1111" {
					t.Fatalf("masked got=%q", p.MaskedNumber())
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got=%v want ValidationError", err)
			}
		})
	}

	if len(cards.list) != 2 {
		t.Fatalf("stored cards got=%d want=2", len(cards.list))
	}
	name, primary := "Ada L", true
	updated, err := svc.UpdatePaymentMethod(ctx, 1, cards.list[0].ID, PaymentMethodUpdate{Name: &name, IsPrimary: &primary})
	if err != nil || updated.Name != "Ada L" || !updated.IsPrimary {
		t.Fatalf("update got=%+v err=%v", updated, err)
	}
	if _, err := svc.UpdatePaymentMethod(ctx, 2, cards.list[0].ID, PaymentMethodUpdate{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update by other user: got=%v", err)
	}
	if err := svc.DeletePaymentMethod(ctx, 1, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing: got=%v", err)
	}
}
