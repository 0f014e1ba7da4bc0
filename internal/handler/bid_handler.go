package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/oneauction/internal/middleware"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/service"
	"github.com/shopspring/decimal"
)

type BidHandler struct {
	svc service.BidService
}

func NewBidHandler(svc service.BidService) *BidHandler {
	return &BidHandler{svc: svc}
}

type BidResponse struct {
	ID        uint64       `json:"id"`
	ItemID    uint64       `json:"itemId"`
	Price     string       `json:"price"`
	Bidder    *UserSummary `json:"bidder,omitempty"`
	CreatedAt string       `json:"createdAt"`
}

type UserBidResponse struct {
	ItemID       uint64 `json:"itemId"`
	Title        string `json:"title"`
	ItemType     string `json:"itemType"`
	HighestBid   string `json:"highestBid"`
	CurrentPrice string `json:"currentPrice"`
	Status       string `json:"status"`
}

type PlaceBidRequest struct {
	Price string `json:"price" form:"price"`
}

func toBidResponse(b *model.Bid) BidResponse {
	return BidResponse{
		ID:        b.ID,
		ItemID:    b.ItemID,
		Price:     money(b.Price),
		Bidder:    toUserSummary(b.Bidder),
		CreatedAt: timestamp(b.CreatedDttm),
	}
}

func (h *BidHandler) Place(c echo.Context) error {
	itemID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	var req PlaceBidRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		return badRequest(c, "invalid price")
	}
	bid, err := h.svc.Place(c.Request().Context(), appmw.CurrentUser(c).ID, itemID, amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toBidResponse(bid))
}

func (h *BidHandler) ListForItem(c echo.Context) error {
	itemID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	bids, err := h.svc.ListForItem(c.Request().Context(), itemID)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]BidResponse, 0, len(bids))
	for i := range bids {
		resp = append(resp, toBidResponse(&bids[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"bids": resp})
}

func (h *BidHandler) ListMine(c echo.Context) error {
	rows, err := h.svc.ListForUser(c.Request().Context(), appmw.CurrentUser(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]UserBidResponse, 0, len(rows))
	for _, r := range rows {
		resp = append(resp, UserBidResponse{
			ItemID:       r.ItemID,
			Title:        r.Title,
			ItemType:     string(r.ItemType),
			HighestBid:   money(r.HighestBid),
			CurrentPrice: money(r.CurrentPrice),
			Status:       r.Status,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"bids": resp})
}
