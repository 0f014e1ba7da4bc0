package model

type Address struct {
	Base
	UserID       uint64 `gorm:"column:user_id;not null;index"`
	AddressLine1 string `gorm:"column:address_line1;size:255;not null"`
	AddressLine2 string `gorm:"column:address_line2;size:255"`
	Town         string `gorm:"size:120;not null"`
	County       string `gorm:"size:120"`
	Postcode     string `gorm:"size:16;not null"`
	Country      string `gorm:"size:2;not null"`
	IsPrimary    bool   `gorm:"column:is_primary;not null;default:false"`
}

func (Address) TableName() string {
	return "addresses"
}
