package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/reqctx"
	"github.com/shinyyama/oneauction/internal/repository"
	"github.com/shopspring/decimal"
)

type CartLineView struct {
	Item     model.Item
	Quantity int
	Subtotal decimal.Decimal
}

type CartView struct {
	Lines   []CartLineView
	Summary Summary
}

type CartService interface {
	View(ctx context.Context, sess *model.Session) (*CartView, error)
	Add(ctx context.Context, sess *model.Session, userID, itemID uint64, quantity int) error
	Increase(ctx context.Context, sess *model.Session, itemID uint64) error
	Decrease(ctx context.Context, sess *model.Session, itemID uint64) error
	Remove(ctx context.Context, sess *model.Session, itemID uint64) error
	Checkout(ctx context.Context, sess *model.Session, buyerID uint64) ([]model.Order, error)
}

type cartService struct {
	sessions repository.SessionRepository
	items    repository.ItemRepository
	orders   repository.OrderRepository
	notifier Notifier
}

func NewCartService(sessions repository.SessionRepository, items repository.ItemRepository, orders repository.OrderRepository, notifier Notifier) CartService {
	return &cartService{sessions: sessions, items: items, orders: orders, notifier: notifier}
}

func (s *cartService) View(ctx context.Context, sess *model.Session) (*CartView, error) {
	ids := cartItemIDs(sess.Cart)
	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	view := &CartView{Lines: make([]CartLineView, 0, len(ids))}
	priced := make([]PricedLine, 0, len(ids))
	stale := false
	for _, id := range ids {
		item, ok := items[id]
		if !ok {
			delete(sess.Cart, id)
			stale = true
			continue
		}
		qty := sess.Cart[id]
		line := PricedLine{Price: item.Price, Delivery: item.Delivery(), Quantity: qty}
		priced = append(priced, line)
		view.Lines = append(view.Lines, CartLineView{
			Item:     item,
			Quantity: qty,
			Subtotal: item.Price.Mul(decimal.NewFromInt(int64(qty))),
		})
	}
	view.Summary = CartSummary(priced)
	if stale {
		if err := s.sessions.Save(ctx, sess); err != nil {
			log.Printf("%sprune cart: %v", reqctx.Prefix(ctx), err)
		}
	}
	return view, nil
}

func (s *cartService) Add(ctx context.Context, sess *model.Session, userID, itemID uint64, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return notFound(err)
	}
	if item.Type != model.ItemTypeBuyItNow {
		return invalid("Only Buy It Now items can be added to the cart.")
	}
	if item.SellerID == userID {
		return invalid("You cannot buy your own item.")
	}
	if sess.Cart == nil {
		sess.Cart = model.Cart{}
	}
	if sess.Cart[itemID]+quantity > item.Stock {
		return ErrInsufficientStock
	}
	sess.Cart[itemID] += quantity
	return s.sessions.Save(ctx, sess)
}

func (s *cartService) Increase(ctx context.Context, sess *model.Session, itemID uint64) error {
	qty, ok := sess.Cart[itemID]
	if !ok {
		return ErrNotFound
	}
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return notFound(err)
	}
	if qty+1 > item.Stock {
		return nil
	}
	sess.Cart[itemID] = qty + 1
	return s.sessions.Save(ctx, sess)
}

func (s *cartService) Decrease(ctx context.Context, sess *model.Session, itemID uint64) error {
	qty, ok := sess.Cart[itemID]
	if !ok {
		return ErrNotFound
	}
	if qty <= 1 {
		delete(sess.Cart, itemID)
	} else {
		sess.Cart[itemID] = qty - 1
	}
	return s.sessions.Save(ctx, sess)
}

func (s *cartService) Remove(ctx context.Context, sess *model.Session, itemID uint64) error {
	if _, ok := sess.Cart[itemID]; !ok {
		return ErrNotFound
	}
	delete(sess.Cart, itemID)
	return s.sessions.Save(ctx, sess)
}

// Checkout turns every cart line into an order in one transaction, then empties the cart.
func (s *cartService) Checkout(ctx context.Context, sess *model.Session, buyerID uint64) ([]model.Order, error) {
	if buyerID == 0 {
		return nil, ErrUnauthenticated
	}
	if len(sess.Cart) == 0 {
		return nil, ErrEmptyCart
	}
	if gone, err := s.pruneGone(ctx, sess); err != nil {
		return nil, err
	} else if gone {
		return nil, invalid(MsgCartItemGone)
	}
	ids := cartItemIDs(sess.Cart)
	lines := make([]repository.CartLine, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, repository.CartLine{ItemID: id, Quantity: sess.Cart[id]})
	}
	sellers := make(map[uint64]uint64, len(ids))
	titles := make(map[uint64]string, len(ids))
	orders, err := s.orders.Checkout(ctx, lines, func(item *model.Item, quantity int) (*model.Order, error) {
		if item.Type != model.ItemTypeBuyItNow {
			return nil, invalid(fmt.Sprintf("%s can no longer be bought.", item.Title))
		}
		if item.SellerID == buyerID {
			return nil, invalid("You cannot buy your own item.")
		}
		total, err := OrderTotal(item.Price, item.Delivery(), quantity, item.Stock, true)
		if err != nil {
			return nil, err
		}
		sellers[item.ID] = item.SellerID
		titles[item.ID] = item.Title
		return &model.Order{
			ItemID:   item.ID,
			BuyerID:  buyerID,
			Total:    total,
			Quantity: quantity,
			Number:   NewOrderNumber(),
		}, nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrStockConflict) {
			return nil, ErrInsufficientStock
		}
		// A line was withdrawn after the check above.
		if errors.Is(notFound(err), ErrNotFound) {
			if gone, perr := s.pruneGone(ctx, sess); perr == nil && gone {
				return nil, invalid(MsgCartItemGone)
			}
		}
		return nil, notFound(err)
	}
	sess.Cart = model.Cart{}
	if err := s.sessions.Save(ctx, sess); err != nil {
		log.Printf("%sclear cart after checkout: %v", reqctx.Prefix(ctx), err)
	}
	for _, o := range orders {
		s.notifier.Notify(ctx, Notice{
			RecipientID: sellers[o.ItemID],
			Kind:        model.NotificationItemSold,
			Subject:     "You made a sale",
			Message:     fmt.Sprintf("%d × %s sold, order %s", o.Quantity, titles[o.ItemID], o.Number),
			ItemID:      uint64Ptr(o.ItemID),
			OrderID:     uint64Ptr(o.ID),
		})
	}
	return orders, nil
}

// pruneGone drops cart lines whose item was withdrawn and saves the cart when
// anything was dropped.
func (s *cartService) pruneGone(ctx context.Context, sess *model.Session) (bool, error) {
	ids := cartItemIDs(sess.Cart)
	items, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return false, err
	}
	gone := false
	for _, id := range ids {
		if _, ok := items[id]; !ok {
			delete(sess.Cart, id)
			gone = true
		}
	}
	if gone {
		if err := s.sessions.Save(ctx, sess); err != nil {
			return true, err
		}
	}
	return gone, nil
}

func cartItemIDs(cart model.Cart) []uint64 {
	ids := make([]uint64, 0, len(cart))
	for id := range cart {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
