package service

import (
	"context"
	"strings"
	"time"

	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/repository"
)

const cardValidYears = 5

type AddressInput struct {
	AddressLine1 string
	AddressLine2 string
	Town         string
	County       string
	Postcode     string
	Country      string
	IsPrimary    bool
}

type PaymentMethodInput struct {
	Number    string
	Name      string
	CVV       string
	ExpMonth  int
	ExpYear   int
	IsPrimary bool
}

// PaymentMethodUpdate holds the mutable card fields; nil leaves a field unchanged.
type PaymentMethodUpdate struct {
	Name      *string
	IsPrimary *bool
}

type ProfileService interface {
	Addresses(ctx context.Context, userID uint64) ([]model.Address, error)
	AddAddress(ctx context.Context, userID uint64, in AddressInput) (*model.Address, error)
	UpdateAddress(ctx context.Context, userID, id uint64, in AddressInput) (*model.Address, error)
	DeleteAddress(ctx context.Context, userID, id uint64) error
	PaymentMethods(ctx context.Context, userID uint64) ([]model.PaymentMethod, error)
	AddPaymentMethod(ctx context.Context, userID uint64, in PaymentMethodInput) (*model.PaymentMethod, error)
	UpdatePaymentMethod(ctx context.Context, userID, id uint64, in PaymentMethodUpdate) (*model.PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, userID, id uint64) error
}

type profileService struct {
	addresses repository.AddressRepository
	cards     repository.PaymentMethodRepository
	now       func() time.Time
}

func NewProfileService(addresses repository.AddressRepository, cards repository.PaymentMethodRepository) ProfileService {
	return &profileService{addresses: addresses, cards: cards, now: time.Now}
}

func (s *profileService) Addresses(ctx context.Context, userID uint64) ([]model.Address, error) {
	return s.addresses.ListByUser(ctx, userID)
}

func (s *profileService) AddAddress(ctx context.Context, userID uint64, in AddressInput) (*model.Address, error) {
	a := &model.Address{UserID: userID}
	if err := applyAddress(a, in); err != nil {
		return nil, err
	}
	if err := s.addresses.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *profileService) UpdateAddress(ctx context.Context, userID, id uint64, in AddressInput) (*model.Address, error) {
	a, err := s.addresses.FindByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	if err := applyAddress(a, in); err != nil {
		return nil, err
	}
	if err := s.addresses.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *profileService) DeleteAddress(ctx context.Context, userID, id uint64) error {
	ok, err := s.addresses.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func applyAddress(a *model.Address, in AddressInput) error {
	line1 := strings.TrimSpace(in.AddressLine1)
	town := strings.TrimSpace(in.Town)
	postcode := strings.ToUpper(strings.TrimSpace(in.Postcode))
	country := strings.ToUpper(strings.TrimSpace(in.Country))
	if line1 == "" || town == "" || postcode == "" || country == "" {
		return invalid("Address line 1, town, postcode and country are required.")
	}
	if len(postcode) > 16 {
		return invalid("Enter a valid postcode.")
	}
	if !isCountryCode(country) {
		return invalid("Select a valid country.")
	}
	a.AddressLine1 = line1
	a.AddressLine2 = strings.TrimSpace(in.AddressLine2)
	a.Town = town
	a.County = strings.TrimSpace(in.County)
	a.Postcode = postcode
	a.Country = country
	a.IsPrimary = in.IsPrimary
	return nil
}

func isCountryCode(c string) bool {
	if len(c) != 2 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (s *profileService) PaymentMethods(ctx context.Context, userID uint64) ([]model.PaymentMethod, error) {
	return s.cards.ListByUser(ctx, userID)
}

func (s *profileService) AddPaymentMethod(ctx context.Context, userID uint64, in PaymentMethodInput) (*model.PaymentMethod, error) {
	number := strings.ReplaceAll(strings.TrimSpace(in.Number), " ", "")
	name := strings.TrimSpace(in.Name)
	if !allDigits(number, 16) {
		return nil, invalid("Card number must be 16 digits.")
	}
	if !allDigits(strings.TrimSpace(in.CVV), 3) {
		return nil, invalid("CVV must be 3 digits.")
	}
	if name == "" {
		return nil, invalid("Name on card is required.")
	}
	exp, err := s.expiration(in.ExpMonth, in.ExpYear)
	if err != nil {
		return nil, err
	}
	p := &model.PaymentMethod{
		UserID:     userID,
		Number:     number,
		Name:       name,
		Expiration: exp,
		IsPrimary:  in.IsPrimary,
	}
	if err := s.cards.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *profileService) UpdatePaymentMethod(ctx context.Context, userID, id uint64, in PaymentMethodUpdate) (*model.PaymentMethod, error) {
	p, err := s.cards.FindByID(ctx, userID, id)
	if err != nil {
		return nil, notFound(err)
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, invalid("Name on card is required.")
		}
		p.Name = name
	}
	if in.IsPrimary != nil {
		p.IsPrimary = *in.IsPrimary
	}
	if err := s.cards.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *profileService) DeletePaymentMethod(ctx context.Context, userID, id uint64) error {
	ok, err := s.cards.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// expiration accepts months from the current one up to five years ahead.
func (s *profileService) expiration(month, year int) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, invalid("Enter a valid expiry month.")
	}
	now := s.now().UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	exp := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	if exp.Before(current) || exp.After(current.AddDate(cardValidYears, 0, 0)) {
		return time.Time{}, invalid("Card expiry must be within the next 5 years.")
	}
	return exp, nil
}

func allDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
