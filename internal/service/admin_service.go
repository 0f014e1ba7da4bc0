package service

import (
	"context"

	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/repository"
)

type Stats struct {
	Users  int64
	Items  int64
	Bids   int64
	Orders int64
}

type AdminService interface {
	Stats(ctx context.Context) (*Stats, error)
	Users(ctx context.Context, page int) ([]model.User, Page, error)
}

type adminService struct {
	users  repository.UserRepository
	items  repository.ItemRepository
	bids   repository.BidRepository
	orders repository.OrderRepository
}

func NewAdminService(users repository.UserRepository, items repository.ItemRepository, bids repository.BidRepository, orders repository.OrderRepository) AdminService {
	return &adminService{users: users, items: items, bids: bids, orders: orders}
}

func (s *adminService) Stats(ctx context.Context) (*Stats, error) {
	var (
		st  Stats
		err error
	)
	if _, st.Users, err = s.users.List(ctx, 1, 0); err != nil {
		return nil, err
	}
	if st.Items, err = s.items.Count(ctx); err != nil {
		return nil, err
	}
	if st.Bids, err = s.bids.Count(ctx); err != nil {
		return nil, err
	}
	if st.Orders, err = s.orders.Count(ctx); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *adminService) Users(ctx context.Context, page int) ([]model.User, Page, error) {
	if page < 1 {
		page = 1
	}
	users, total, err := s.users.List(ctx, DefaultPageSize, (page-1)*DefaultPageSize)
	if err != nil {
		return nil, Page{}, err
	}
	return users, NewPage(page, DefaultPageSize, total), nil
}
