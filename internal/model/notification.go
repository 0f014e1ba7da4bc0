package model

import "time"

type NotificationType string

const (
	NotificationOutbid      NotificationType = "OUTBID"
	NotificationItemSold    NotificationType = "ITEM_SOLD"
	NotificationAuctionWon  NotificationType = "AUCTION_WON"
	NotificationOrderStatus NotificationType = "ORDER_STATUS"
)

func (t NotificationType) Display() string {
	switch t {
	case NotificationOutbid:
		return "Outbid"
	case NotificationItemSold:
		return "Item sold"
	case NotificationAuctionWon:
		return "Auction won"
	case NotificationOrderStatus:
		return "Order update"
	}
	return string(t)
}

// Notification is an inbox entry for one user. The inbox index serves the
// unread filter and the newest-first listing.
type Notification struct {
	Base
	RecipientID uint64           `gorm:"column:recipient_id;not null;index:idx_notifications_inbox,priority:1"`
	Kind        NotificationType `gorm:"column:kind;size:32;not null"`
	Subject     string           `gorm:"column:subject;size:255;not null"`
	Message     string           `gorm:"column:message;type:text"`
	ItemID      *uint64          `gorm:"column:item_id;index"`
	OrderID     *uint64          `gorm:"column:order_id;index"`
	IsRead      bool             `gorm:"column:is_read;not null;default:false;index:idx_notifications_inbox,priority:2"`
	ReadDttm    *time.Time       `gorm:"column:read_dttm"`
}

func (Notification) TableName() string {
	return "notifications"
}
