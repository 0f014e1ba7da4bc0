package model

type Image struct {
	Base
	ItemID    uint64 `gorm:"column:item_id;not null;index:idx_images_item_id"`
	ObjectKey string `gorm:"column:object_key;size:512;not null"`
	URL       string `gorm:"column:url;size:1024;not null"`
}

func (Image) TableName() string {
	return "images"
}
