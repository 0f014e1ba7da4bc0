package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/repository"
	"github.com/shopspring/decimal"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID      uint64
	IsStaff bool
}

type OrderPage struct {
	Orders []model.Order
	Page   Page
}

type OrderDetail struct {
	Order         model.Order
	UnitPrice     decimal.Decimal
	CurrentStatus model.Status
	Notes         []model.Note
	Reviews       []model.Review
	IsBuyer       bool
	IsSeller      bool
}

type StatusInput struct {
	Status      string
	Description string
	Tracking    *string
}

type ReviewInput struct {
	Summary     string
	Description string
	Rating      int
}

type OrderService interface {
	ListPurchases(ctx context.Context, buyerID uint64, query string, page int) (*OrderPage, error)
	ListSales(ctx context.Context, sellerID uint64, query string, page int) (*OrderPage, error)
	Detail(ctx context.Context, actor Actor, orderID uint64) (*OrderDetail, error)
	AddStatus(ctx context.Context, actor Actor, orderID uint64, in StatusInput) (*model.OrderStatus, error)
	AddNote(ctx context.Context, actor Actor, orderID uint64, summary, description string) (*model.Note, error)
	AddReview(ctx context.Context, actor Actor, orderID uint64, in ReviewInput) (*model.Review, error)
}

type orderService struct {
	orders   repository.OrderRepository
	bids     repository.BidRepository
	feedback repository.FeedbackRepository
	notifier Notifier
}

func NewOrderService(orders repository.OrderRepository, bids repository.BidRepository, feedback repository.FeedbackRepository, notifier Notifier) OrderService {
	return &orderService{orders: orders, bids: bids, feedback: feedback, notifier: notifier}
}

// NewOrderNumber returns 12 upper-case hex characters taken from a random UUID.
func NewOrderNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
}

func (s *orderService) ListPurchases(ctx context.Context, buyerID uint64, query string, page int) (*OrderPage, error) {
	return s.page(ctx, page, func(limit, offset int) ([]model.Order, int64, error) {
		return s.orders.ListByBuyer(ctx, buyerID, SearchTerms(query), limit, offset)
	})
}

func (s *orderService) ListSales(ctx context.Context, sellerID uint64, query string, page int) (*OrderPage, error) {
	return s.page(ctx, page, func(limit, offset int) ([]model.Order, int64, error) {
		return s.orders.ListBySeller(ctx, sellerID, SearchTerms(query), limit, offset)
	})
}

func (s *orderService) page(ctx context.Context, number int, fetch func(limit, offset int) ([]model.Order, int64, error)) (*OrderPage, error) {
	if number < 1 {
		number = 1
	}
	orders, total, err := fetch(DefaultPageSize, (number-1)*DefaultPageSize)
	if err != nil {
		return nil, err
	}
	p := NewPage(number, DefaultPageSize, total)
	if p.Number != number {
		if orders, total, err = fetch(DefaultPageSize, p.Offset()); err != nil {
			return nil, err
		}
		p = NewPage(p.Number, DefaultPageSize, total)
	}
	return &OrderPage{Orders: orders, Page: p}, nil
}

func (s *orderService) Detail(ctx context.Context, actor Actor, orderID uint64) (*OrderDetail, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	isBuyer, isSeller := roles(order, actor)
	if !isBuyer && !isSeller && !actor.IsStaff {
		return nil, ErrForbidden
	}
	unit := order.Item.Price
	if order.Item.Type == model.ItemTypeAuction {
		latest, err := s.bids.Latest(ctx, order.ItemID)
		if err != nil {
			return nil, err
		}
		unit = CurrentPrice(order.Item, latest)
	}
	notes, err := s.feedback.ListNotes(ctx, orderID)
	if err != nil {
		return nil, err
	}
	reviews, err := s.feedback.ListReviews(ctx, orderID)
	if err != nil {
		return nil, err
	}
	d := &OrderDetail{
		Order:     *order,
		UnitPrice: unit,
		Notes:     notes,
		Reviews:   reviews,
		IsBuyer:   isBuyer,
		IsSeller:  isSeller,
	}
	if n := len(order.Statuses); n > 0 {
		d.CurrentStatus = order.Statuses[n-1].Status
	}
	return d, nil
}

func (s *orderService) AddStatus(ctx context.Context, actor Actor, orderID uint64, in StatusInput) (*model.OrderStatus, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, isSeller := roles(order, actor); !isSeller && !actor.IsStaff {
		return nil, ErrForbidden
	}
	status := model.Status(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !status.Valid() {
		return nil, invalid("Select a valid status.")
	}
	var tracking *string
	if in.Tracking != nil {
		t := strings.TrimSpace(*in.Tracking)
		if len(t) > 255 {
			return nil, invalid("Tracking must be at most 255 characters.")
		}
		if t != "" {
			tracking = &t
		}
	}
	st := &model.OrderStatus{
		OrderID:     orderID,
		Status:      status,
		Description: strings.TrimSpace(in.Description),
	}
	if err := s.orders.AddStatus(ctx, st, tracking); err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, Notice{
		RecipientID: order.BuyerID,
		Kind:        model.NotificationOrderStatus,
		Message:     fmt.Sprintf("Order %s is now %s", order.Number, status.Display()),
		ItemID:      uint64Ptr(order.ItemID),
		OrderID:     uint64Ptr(order.ID),
	})
	return st, nil
}

func (s *orderService) AddNote(ctx context.Context, actor Actor, orderID uint64, summary, description string) (*model.Note, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if isBuyer, _ := roles(order, actor); !isBuyer {
		return nil, ErrForbidden
	}
	summary, description = strings.TrimSpace(summary), strings.TrimSpace(description)
	if summary == "" || description == "" {
		return nil, invalid("Summary and description are required.")
	}
	if len(summary) > 255 {
		return nil, invalid("Summary must be at most 255 characters.")
	}
	n := &model.Note{OrderID: orderID, Summary: summary, Description: description}
	if err := s.feedback.CreateNote(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *orderService) AddReview(ctx context.Context, actor Actor, orderID uint64, in ReviewInput) (*model.Review, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if isBuyer, _ := roles(order, actor); !isBuyer {
		return nil, ErrForbidden
	}
	summary, description := strings.TrimSpace(in.Summary), strings.TrimSpace(in.Description)
	if summary == "" || description == "" {
		return nil, invalid("Summary and description are required.")
	}
	if len(summary) > 255 {
		return nil, invalid("Summary must be at most 255 characters.")
	}
	if in.Rating < 1 || in.Rating > 5 {
		return nil, invalid("Rating must be between 1 and 5.")
	}
	rv := &model.Review{OrderID: orderID, Summary: summary, Description: description, Rating: in.Rating}
	if err := s.feedback.CreateReview(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *orderService) load(ctx context.Context, orderID uint64) (*model.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFound(err)
	}
	if order.Item == nil {
		return nil, ErrNotFound
	}
	return order, nil
}

func roles(order *model.Order, actor Actor) (isBuyer, isSeller bool) {
	return order.BuyerID == actor.ID, order.Item != nil && order.Item.SellerID == actor.ID
}
