package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/oneauction/internal/middleware"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/service"
)

type OrderHandler struct {
	svc service.OrderService
}

func NewOrderHandler(svc service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type OrderStatusResponse struct {
	ID          uint64 `json:"id"`
	Status      string `json:"status"`
	Display     string `json:"display"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

type OrderResponse struct {
	ID        uint64                `json:"id"`
	Number    string                `json:"number"`
	ItemID    uint64                `json:"itemId"`
	Item      *ItemResponse         `json:"item,omitempty"`
	Buyer     *UserSummary          `json:"buyer,omitempty"`
	Quantity  int                   `json:"quantity"`
	Total     string                `json:"total"`
	Tracking  *string               `json:"tracking"`
	Status    string                `json:"status,omitempty"`
	Statuses  []OrderStatusResponse `json:"statuses"`
	CreatedAt string                `json:"createdAt"`
}

type NoteResponse struct {
	ID          uint64 `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

type OrderDetailResponse struct {
	OrderResponse
	UnitPrice        string           `json:"unitPrice"`
	DeliverySteps    []string         `json:"deliverySteps"`
	Notes            []NoteResponse   `json:"notes"`
	Reviews          []ReviewResponse `json:"reviews"`
	IsBuyer          bool             `json:"isBuyer"`
	IsSeller         bool             `json:"isSeller"`
	AvailableActions []string         `json:"availableActions"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Page   PageResponse    `json:"page"`
}

type AddStatusRequest struct {
	Status      string  `json:"status" form:"status"`
	Description string  `json:"description" form:"description"`
	Tracking    *string `json:"tracking" form:"tracking"`
}

type NoteRequest struct {
	Summary     string `json:"summary" form:"summary"`
	Description string `json:"description" form:"description"`
}

type ReviewRequest struct {
	Summary     string `json:"summary" form:"summary"`
	Description string `json:"description" form:"description"`
	Rating      int    `json:"rating" form:"rating"`
}

func toOrderStatusResponse(st model.OrderStatus) OrderStatusResponse {
	return OrderStatusResponse{
		ID:          st.ID,
		Status:      string(st.Status),
		Display:     st.Status.Display(),
		Description: st.Description,
		CreatedAt:   timestamp(st.CreatedDttm),
	}
}

func toOrderResponse(o *model.Order) OrderResponse {
	resp := OrderResponse{
		ID:        o.ID,
		Number:    o.Number,
		ItemID:    o.ItemID,
		Buyer:     toUserSummary(o.Buyer),
		Quantity:  o.Quantity,
		Total:     money(o.Total),
		Tracking:  o.Tracking,
		Statuses:  make([]OrderStatusResponse, 0, len(o.Statuses)),
		CreatedAt: timestamp(o.CreatedDttm),
	}
	if o.Item != nil {
		item := toItemResponse(o.Item)
		resp.Item = &item
	}
	for _, st := range o.Statuses {
		resp.Statuses = append(resp.Statuses, toOrderStatusResponse(st))
	}
	if n := len(o.Statuses); n > 0 {
		resp.Status = string(o.Statuses[n-1].Status)
	}
	return resp
}

func toOrderListResponse(p *service.OrderPage) OrderListResponse {
	resp := OrderListResponse{
		Orders: make([]OrderResponse, 0, len(p.Orders)),
		Page:   toPageResponse(p.Page),
	}
	for i := range p.Orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&p.Orders[i]))
	}
	return resp
}

func actor(c echo.Context) service.Actor {
	u := appmw.CurrentUser(c)
	return service.Actor{ID: u.ID, IsStaff: u.IsStaff}
}

func (h *OrderHandler) ListPurchases(c echo.Context) error {
	page, err := h.svc.ListPurchases(c.Request().Context(), appmw.CurrentUser(c).ID, c.QueryParam("query"), pageParam(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderListResponse(page))
}

func (h *OrderHandler) ListSales(c echo.Context) error {
	page, err := h.svc.ListSales(c.Request().Context(), appmw.CurrentUser(c).ID, c.QueryParam("query"), pageParam(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderListResponse(page))
}

func (h *OrderHandler) Detail(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	a := actor(c)
	d, err := h.svc.Detail(c.Request().Context(), a, id)
	if err != nil {
		return respondError(c, err)
	}
	resp := OrderDetailResponse{
		OrderResponse:    toOrderResponse(&d.Order),
		UnitPrice:        money(d.UnitPrice),
		DeliverySteps:    make([]string, 0, len(model.DeliveryStatuses)),
		Notes:            make([]NoteResponse, 0, len(d.Notes)),
		Reviews:          make([]ReviewResponse, 0, len(d.Reviews)),
		IsBuyer:          d.IsBuyer,
		IsSeller:         d.IsSeller,
		AvailableActions: []string{},
	}
	for _, st := range model.DeliveryStatuses {
		resp.DeliverySteps = append(resp.DeliverySteps, string(st))
	}
	for _, n := range d.Notes {
		resp.Notes = append(resp.Notes, NoteResponse{
			ID:          n.ID,
			Summary:     n.Summary,
			Description: n.Description,
			CreatedAt:   timestamp(n.CreatedDttm),
		})
	}
	for _, r := range d.Reviews {
		resp.Reviews = append(resp.Reviews, toReviewResponse(r))
	}
	if d.IsSeller || a.IsStaff {
		resp.AvailableActions = append(resp.AvailableActions, "status")
	}
	if d.IsBuyer {
		resp.AvailableActions = append(resp.AvailableActions, "note", "review")
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) AddStatus(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	var req AddStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	st, err := h.svc.AddStatus(c.Request().Context(), actor(c), id, service.StatusInput{
		Status:      req.Status,
		Description: req.Description,
		Tracking:    req.Tracking,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderStatusResponse(*st))
}

func (h *OrderHandler) AddNote(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	var req NoteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	n, err := h.svc.AddNote(c.Request().Context(), actor(c), id, req.Summary, req.Description)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, NoteResponse{
		ID:          n.ID,
		Summary:     n.Summary,
		Description: n.Description,
		CreatedAt:   timestamp(n.CreatedDttm),
	})
}

func (h *OrderHandler) AddReview(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid order id")
	}
	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	rv, err := h.svc.AddReview(c.Request().Context(), actor(c), id, service.ReviewInput{
		Summary:     req.Summary,
		Description: req.Description,
		Rating:      req.Rating,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toReviewResponse(*rv))
}
