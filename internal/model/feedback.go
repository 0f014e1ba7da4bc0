package model

type Review struct {
	Base
	OrderID     uint64 `gorm:"column:order_id;not null;index"`
	Summary     string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Rating      int    `gorm:"not null"`

	Order *Order `gorm:"foreignKey:OrderID"`
}

func (Review) TableName() string {
	return "reviews"
}

type Note struct {
	Base
	OrderID     uint64 `gorm:"column:order_id;not null;index"`
	Summary     string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
}

func (Note) TableName() string {
	return "notes"
}
