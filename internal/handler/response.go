package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/repository"
	"github.com/shinyyama/oneauction/internal/reqctx"
	"github.com/shinyyama/oneauction/internal/service"
	"github.com/shopspring/decimal"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// respondError maps service errors to HTTP statuses and writes the error envelope.
func respondError(c echo.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid", ve.Message))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "not found"))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	case errors.Is(err, service.ErrBadCredentials):
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("bad_credentials", service.MsgBadCredentials))
	case errors.Is(err, service.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "invalid or expired link"))
	case errors.Is(err, service.ErrLockedOut):
		return c.JSON(http.StatusTooManyRequests, NewErrorResponse("locked_out", service.MsgLockedOut))
	case errors.Is(err, service.ErrEmailTaken):
		return c.JSON(http.StatusConflict, NewErrorResponse("email_taken", service.MsgEmailTaken))
	case errors.Is(err, service.ErrBidTooLow):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bid_too_low", "Your bid must be higher than the current price."))
	case errors.Is(err, service.ErrInsufficientStock):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("insufficient_stock", "Not enough stock for this item."))
	case errors.Is(err, service.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_quantity", "Quantity must be at least 1."))
	case errors.Is(err, service.ErrEmptyCart):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("empty_cart", "Your cart is empty."))
	case errors.Is(err, repository.ErrDBNotReady):
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("db_not_ready", "database is not ready yet"))
	}
	log.Printf("%s%s %s: %v", reqctx.Prefix(c.Request().Context()), c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "something went wrong"))
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", message))
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func pageParam(c echo.Context) int {
	n, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

func optionalTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := timestamp(*t)
	return &s
}

type PageResponse struct {
	Number   int   `json:"number"`
	Size     int   `json:"size"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
	Window   []int `json:"window"`
	HasPrev  bool  `json:"hasPrev"`
	HasNext  bool  `json:"hasNext"`
	PrevPage int   `json:"prevPage,omitempty"`
	NextPage int   `json:"nextPage,omitempty"`
}

func toPageResponse(p service.Page) PageResponse {
	window := p.Window
	if window == nil {
		window = []int{}
	}
	return PageResponse{
		Number:   p.Number,
		Size:     p.Size,
		Total:    p.Total,
		Pages:    p.Pages,
		Window:   window,
		HasPrev:  p.HasPrev,
		HasNext:  p.HasNext,
		PrevPage: p.PrevPage,
		NextPage: p.NextPage,
	}
}

type UserSummary struct {
	ID        uint64 `json:"id"`
	ShortName string `json:"shortName"`
}

func toUserSummary(u *model.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, ShortName: u.ShortName()}
}
