package service

import (
	"time"

	"github.com/shinyyama/oneauction/internal/model"
)

const (
	StatusNotSold    = "NOT SOLD"
	StatusSold       = "SOLD"
	StatusInAuction  = "IN AUCTION"
	StatusOutOfStock = "OUT OF STOCK"
	StatusListed     = "LISTED"
)

// ItemStatus derives the listing badge from type, expiry, stock and order count.
func ItemStatus(item *model.Item, orders int64, now time.Time) (string, error) {
	switch item.Type {
	case model.ItemTypeAuction:
		if item.ExpireDate == nil {
			return "", ErrUnknownStatus
		}
		if !item.IsExpired(now) {
			return StatusInAuction, nil
		}
		if orders > 0 {
			return StatusSold, nil
		}
		return StatusNotSold, nil
	case model.ItemTypeBuyItNow:
		switch {
		case item.Stock == 0:
			return StatusOutOfStock, nil
		case item.Stock > 0:
			return StatusListed, nil
		}
	}
	return "", ErrUnknownStatus
}
