package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/oneauction/internal/middleware"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/service"
)

const (
	cartIncrease = "increaseQuantity"
	cartDecrease = "decreaseQuantity"
)

type CartHandler struct {
	svc  service.CartService
	auth *appmw.AuthMiddleware
}

func NewCartHandler(svc service.CartService, auth *appmw.AuthMiddleware) *CartHandler {
	return &CartHandler{svc: svc, auth: auth}
}

type CartLineResponse struct {
	Item     ItemResponse `json:"item"`
	Quantity int          `json:"quantity"`
	Subtotal string       `json:"subtotal"`
}

type CartResponse struct {
	Lines    []CartLineResponse `json:"lines"`
	Subtotal string             `json:"subtotal"`
	Delivery string             `json:"delivery"`
	Total    string             `json:"total"`
}

type AddToCartRequest struct {
	Quantity int `json:"quantity" form:"quantity"`
}

type UpdateCartRequest struct {
	Function string `json:"function" form:"function"`
}

func toCartResponse(v *service.CartView) CartResponse {
	resp := CartResponse{
		Lines:    make([]CartLineResponse, 0, len(v.Lines)),
		Subtotal: money(v.Summary.Subtotal),
		Delivery: money(v.Summary.Delivery),
		Total:    money(v.Summary.Total),
	}
	for i := range v.Lines {
		resp.Lines = append(resp.Lines, CartLineResponse{
			Item:     toItemResponse(&v.Lines[i].Item),
			Quantity: v.Lines[i].Quantity,
			Subtotal: money(v.Lines[i].Subtotal),
		})
	}
	return resp
}

// session returns the visitor's session, or an unsaved empty one for visitors
// that have not added anything yet.
func session(c echo.Context) *model.Session {
	if sess := appmw.CurrentSession(c); sess != nil {
		return sess
	}
	return &model.Session{Cart: model.Cart{}}
}

func (h *CartHandler) View(c echo.Context) error {
	v, err := h.svc.View(c.Request().Context(), session(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toCartResponse(v))
}

func (h *CartHandler) Add(c echo.Context) error {
	itemID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	req := AddToCartRequest{Quantity: 1}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	sess, err := h.auth.EnsureSession(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.svc.Add(c.Request().Context(), sess, appmw.CurrentUser(c).ID, itemID, req.Quantity); err != nil {
		return respondError(c, err)
	}
	return h.View(c)
}

func (h *CartHandler) Update(c echo.Context) error {
	sess := session(c)
	itemID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	var req UpdateCartRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx := c.Request().Context()
	var err error
	switch req.Function {
	case cartIncrease:
		err = h.svc.Increase(ctx, sess, itemID)
	case cartDecrease:
		err = h.svc.Decrease(ctx, sess, itemID)
	default:
		return badRequest(c, "function must be increaseQuantity or decreaseQuantity")
	}
	if err != nil {
		return respondError(c, err)
	}
	return h.View(c)
}

func (h *CartHandler) Remove(c echo.Context) error {
	itemID, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid item id")
	}
	if err := h.svc.Remove(c.Request().Context(), session(c), itemID); err != nil {
		return respondError(c, err)
	}
	return h.View(c)
}

func (h *CartHandler) Checkout(c echo.Context) error {
	orders, err := h.svc.Checkout(c.Request().Context(), session(c), appmw.CurrentUser(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"orders": resp})
}
