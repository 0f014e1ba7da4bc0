package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemType string

const (
	ItemTypeBuyItNow ItemType = "BUY_IT_NOW"
	ItemTypeAuction  ItemType = "AUCTION"
)

func (t ItemType) Display() string {
	switch t {
	case ItemTypeBuyItNow:
		return "Buy It Now"
	case ItemTypeAuction:
		return "Auction"
	}
	return string(t)
}

type Condition string

const (
	ConditionNew             Condition = "NEW"
	ConditionOpenedNeverUsed Condition = "OPENED_NEVER_USED"
	ConditionUsed            Condition = "USED"
	ConditionForParts        Condition = "FOR_PARTS_OR_NOT_WORKING"
)

var Conditions = []Condition{ConditionNew, ConditionOpenedNeverUsed, ConditionUsed, ConditionForParts}

func (c Condition) Valid() bool {
	for _, v := range Conditions {
		if c == v {
			return true
		}
	}
	return false
}

func (c Condition) Display() string {
	switch c {
	case ConditionNew:
		return "New"
	case ConditionOpenedNeverUsed:
		return "Opened - never used"
	case ConditionUsed:
		return "Used"
	case ConditionForParts:
		return "For parts or not working"
	}
	return string(c)
}

type Item struct {
	Base
	SellerID       uint64              `gorm:"column:seller_id;not null;index"`
	Title          string              `gorm:"size:1024;not null"`
	Description    string              `gorm:"type:text"`
	Price          decimal.Decimal     `gorm:"type:decimal(9,2);not null"`
	DeliveryCharge decimal.NullDecimal `gorm:"column:delivery_charge;type:decimal(9,2)"`
	Type           ItemType            `gorm:"size:16;not null;default:BUY_IT_NOW;index"`
	Condition      Condition           `gorm:"size:32;not null;default:NEW"`
	Stock          int                 `gorm:"not null;default:1"`
	ExpireDate     *time.Time          `gorm:"column:expire_date;index"`

	Seller *User   `gorm:"foreignKey:SellerID"`
	Images []Image `gorm:"foreignKey:ItemID"`
}

func (Item) TableName() string {
	return "items"
}

func (i *Item) IsExpired(now time.Time) bool {
	return i.ExpireDate != nil && !now.Before(*i.ExpireDate)
}

// Delivery returns the delivery charge, zero when delivery is free.
func (i *Item) Delivery() decimal.Decimal {
	if i.DeliveryCharge.Valid {
		return i.DeliveryCharge.Decimal
	}
	return decimal.Zero
}
