package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/oneauction/internal/service"
)

type AdminHandler struct {
	svc service.AdminService
}

func NewAdminHandler(svc service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type StatsResponse struct {
	Users  int64 `json:"users"`
	Items  int64 `json:"items"`
	Bids   int64 `json:"bids"`
	Orders int64 `json:"orders"`
}

func (h *AdminHandler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, StatsResponse{Users: st.Users, Items: st.Items, Bids: st.Bids, Orders: st.Orders})
}

func (h *AdminHandler) Users(c echo.Context) error {
	users, page, err := h.svc.Users(c.Request().Context(), pageParam(c))
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users": resp,
		"page":  toPageResponse(page),
	})
}
