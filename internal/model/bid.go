package model

import "github.com/shopspring/decimal"

// Bid is append-only; the latest row per item holds the current price.
type Bid struct {
	Base
	ItemID   uint64          `gorm:"column:item_id;not null;index"`
	BidderID uint64          `gorm:"column:bidder_id;not null;index"`
	Price    decimal.Decimal `gorm:"type:decimal(9,2);not null"`

	Item   *Item `gorm:"foreignKey:ItemID"`
	Bidder *User `gorm:"foreignKey:BidderID"`
}

func (Bid) TableName() string {
	return "bids"
}
