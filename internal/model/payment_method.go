package model

import "time"

// PaymentMethod stores a card. The CVV is checked on input and never stored.
type PaymentMethod struct {
	Base
	UserID     uint64    `gorm:"column:user_id;not null;index"`
	Number     string    `gorm:"size:16;not null"`
	Name       string    `gorm:"size:255;not null"`
	Expiration time.Time `gorm:"not null"`
	IsPrimary  bool      `gorm:"column:is_primary;not null;default:false"`
}

func (PaymentMethod) TableName() string {
	return "payment_methods"
}

func (p *PaymentMethod) MaskedNumber() string {
	if len(p.Number) < 4 {
		return p.Number
	}
	return "**** **** **** " + p.Number[len(p.Number)-4:]
}
