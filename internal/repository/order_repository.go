package repository

import (
	"context"

	"github.com/shinyyama/oneauction/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartLine is one item and the quantity bought at checkout.
type CartLine struct {
	ItemID   uint64
	Quantity int
}

// OrderBuilder prices an order for the freshly loaded item.
type OrderBuilder func(item *model.Item, quantity int) (*model.Order, error)

type OrderRepository interface {
	Checkout(ctx context.Context, lines []CartLine, build OrderBuilder) ([]model.Order, error)
	SettleAuction(ctx context.Context, order *model.Order) (bool, error)
	FindByID(ctx context.Context, id uint64) (*model.Order, error)
	ListByBuyer(ctx context.Context, buyerID uint64, terms []string, limit, offset int) ([]model.Order, int64, error)
	ListBySeller(ctx context.Context, sellerID uint64, terms []string, limit, offset int) ([]model.Order, int64, error)
	CountByItems(ctx context.Context, itemIDs []uint64) (map[uint64]int64, error)
	AddStatus(ctx context.Context, status *model.OrderStatus, tracking *string) error
	Count(ctx context.Context) (int64, error)
	SetDB(db *gorm.DB)
}

type orderRepository struct {
	conn
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	r := &orderRepository{}
	r.SetDB(db)
	return r
}

// Checkout creates one order per line in a single transaction. Stock is
// decremented with a conditional update; a line that no longer fits rolls
// everything back with ErrStockConflict.
func (r *orderRepository) Checkout(ctx context.Context, lines []CartLine, build OrderBuilder) ([]model.Order, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	orders := make([]model.Order, 0, len(lines))
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			var item model.Item
			if err := tx.Where("delete_fl = ?", false).First(&item, line.ItemID).Error; err != nil {
				return err
			}
			order, err := build(&item, line.Quantity)
			if err != nil {
				return err
			}
			res := tx.Model(&model.Item{}).
				Where("id = ? AND stock >= ?", item.ID, line.Quantity).
				Updates(map[string]interface{}{
					"stock":      gorm.Expr("stock - ?", line.Quantity),
					"version_no": gorm.Expr("version_no + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrStockConflict
			}
			if err := createWithStatus(tx, order); err != nil {
				return err
			}
			orders = append(orders, *order)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SettleAuction creates the winning order unless the item already has one.
func (r *orderRepository) SettleAuction(ctx context.Context, order *model.Order) (bool, error) {
	db := r.get()
	if db == nil {
		return false, ErrDBNotReady
	}
	created := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.Item
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, order.ItemID).Error; err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&model.Order{}).Where("item_id = ?", order.ItemID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := createWithStatus(tx, order); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func createWithStatus(tx *gorm.DB, order *model.Order) error {
	statuses := order.Statuses
	order.Statuses = nil
	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	if len(statuses) == 0 {
		statuses = []model.OrderStatus{{Status: model.StatusOrdered}}
	}
	for i := range statuses {
		statuses[i].OrderID = order.ID
	}
	if err := tx.Create(&statuses).Error; err != nil {
		return err
	}
	order.Statuses = statuses
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uint64) (*model.Order, error) {
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var o model.Order
	if err := db.WithContext(ctx).
		Where("delete_fl = ?", false).
		Preload("Item").
		Preload("Item.Images").
		Preload("Item.Seller").
		Preload("Buyer").
		Preload("Statuses", func(db *gorm.DB) *gorm.DB { return db.Order("order_statuses.id asc") }).
		First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uint64, terms []string, limit, offset int) ([]model.Order, int64, error) {
	return r.list(ctx, "orders.buyer_id = ?", buyerID, terms, limit, offset)
}

func (r *orderRepository) ListBySeller(ctx context.Context, sellerID uint64, terms []string, limit, offset int) ([]model.Order, int64, error) {
	return r.list(ctx, "items.seller_id = ?", sellerID, terms, limit, offset)
}

func (r *orderRepository) list(ctx context.Context, cond string, userID uint64, terms []string, limit, offset int) ([]model.Order, int64, error) {
	db := r.get()
	if db == nil {
		return nil, 0, ErrDBNotReady
	}
	var (
		orders []model.Order
		total  int64
	)
	q := apply(db.WithContext(ctx).Model(&model.Order{}), OrderSearch(terms), func(db *gorm.DB) *gorm.DB {
		return db.Where(cond, userID)
	})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Preload("Item").
		Preload("Item.Images").
		Preload("Statuses", func(db *gorm.DB) *gorm.DB { return db.Order("order_statuses.id asc") }).
		Order("orders.created_dttm desc").
		Order("orders.id desc").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) CountByItems(ctx context.Context, itemIDs []uint64) (map[uint64]int64, error) {
	out := make(map[uint64]int64, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	db := r.get()
	if db == nil {
		return nil, ErrDBNotReady
	}
	var rows []struct {
		ItemID uint64
		N      int64
	}
	if err := db.WithContext(ctx).
		Model(&model.Order{}).
		Select("item_id, COUNT(*) AS n").
		Where("item_id IN ? AND delete_fl = ?", itemIDs, false).
		Group("item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ItemID] = row.N
	}
	return out, nil
}

func (r *orderRepository) AddStatus(ctx context.Context, status *model.OrderStatus, tracking *string) error {
	db := r.get()
	if db == nil {
		return ErrDBNotReady
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(status).Error; err != nil {
			return err
		}
		if tracking == nil {
			return nil
		}
		return tx.Model(&model.Order{}).
			Where("id = ?", status.OrderID).
			Updates(map[string]interface{}{
				"tracking":   *tracking,
				"version_no": gorm.Expr("version_no + 1"),
			}).Error
	})
}

func (r *orderRepository) Count(ctx context.Context) (int64, error) {
	db := r.get()
	if db == nil {
		return 0, ErrDBNotReady
	}
	var n int64
	err := db.WithContext(ctx).Model(&model.Order{}).Where("delete_fl = ?", false).Count(&n).Error
	return n, err
}
