package model

import "github.com/shopspring/decimal"

type Order struct {
	Base
	ItemID   uint64          `gorm:"column:item_id;not null;index"`
	BuyerID  uint64          `gorm:"column:buyer_id;not null;index"`
	Total    decimal.Decimal `gorm:"type:decimal(9,2);not null"`
	Quantity int             `gorm:"not null;default:1"`
	Tracking *string         `gorm:"size:255"`
	Number   string          `gorm:"size:32;not null;uniqueIndex:uk_orders_number"`

	Item     *Item         `gorm:"foreignKey:ItemID"`
	Buyer    *User         `gorm:"foreignKey:BuyerID"`
	Statuses []OrderStatus `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string {
	return "orders"
}
