package model

type Status string

const (
	StatusOrdered         Status = "ORDERED"
	StatusProcessing      Status = "PROCESSING"
	StatusDispatched      Status = "DISPATCHED"
	StatusDelivered       Status = "DELIVERED"
	StatusCancelled       Status = "CANCELLED"
	StatusReturnRequested Status = "RETURN_REQUESTED"
	StatusReturned        Status = "RETURNED"
	StatusRefunded        Status = "REFUNDED"
)

var Statuses = []Status{
	StatusOrdered, StatusProcessing, StatusDispatched, StatusDelivered,
	StatusCancelled, StatusReturnRequested, StatusReturned, StatusRefunded,
}

// DeliveryStatuses are the steps shown on the delivery progress track.
var DeliveryStatuses = []Status{StatusOrdered, StatusProcessing, StatusDispatched, StatusDelivered}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) Display() string {
	switch s {
	case StatusOrdered:
		return "Ordered"
	case StatusProcessing:
		return "Processing"
	case StatusDispatched:
		return "Dispatched"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	case StatusReturnRequested:
		return "Return requested"
	case StatusReturned:
		return "Returned"
	case StatusRefunded:
		return "Refunded"
	}
	return string(s)
}

type OrderStatus struct {
	Base
	OrderID     uint64 `gorm:"column:order_id;not null;index"`
	Status      Status `gorm:"size:32;not null"`
	Description string `gorm:"type:text"`
}

func (OrderStatus) TableName() string {
	return "order_statuses"
}
