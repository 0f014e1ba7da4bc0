package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/oneauction/internal/middleware"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/service"
)

type ProfileHandler struct {
	svc service.ProfileService
}

func NewProfileHandler(svc service.ProfileService) *ProfileHandler {
	return &ProfileHandler{svc: svc}
}

type AddressRequest struct {
	AddressLine1 string `json:"addressLine1" form:"address_line1"`
	AddressLine2 string `json:"addressLine2" form:"address_line2"`
	Town         string `json:"town" form:"town"`
	County       string `json:"county" form:"county"`
	Postcode     string `json:"postcode" form:"postcode"`
	Country      string `json:"country" form:"country"`
	IsPrimary    bool   `json:"isPrimary" form:"is_primary"`
}

type AddressResponse struct {
	ID           uint64 `json:"id"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	Town         string `json:"town"`
	County       string `json:"county"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
	IsPrimary    bool   `json:"isPrimary"`
}

type PaymentMethodRequest struct {
	Number    string `json:"number" form:"number"`
	Name      string `json:"name" form:"name"`
	CVV       string `json:"cvv" form:"cvv"`
	ExpMonth  int    `json:"expMonth" form:"exp_month"`
	ExpYear   int    `json:"expYear" form:"exp_year"`
	IsPrimary bool   `json:"isPrimary" form:"is_primary"`
}

type PaymentMethodUpdateRequest struct {
	Name      *string `json:"name"`
	IsPrimary *bool   `json:"isPrimary"`
}

type PaymentMethodResponse struct {
	ID         uint64 `json:"id"`
	Number     string `json:"number"`
	Name       string `json:"name"`
	Expiration string `json:"expiration"`
	IsPrimary  bool   `json:"isPrimary"`
}

type DeleteRequest struct {
	ID uint64 `json:"id" query:"id"`
}

func toAddressResponse(a *model.Address) AddressResponse {
	return AddressResponse{
		ID:           a.ID,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		Town:         a.Town,
		County:       a.County,
		Postcode:     a.Postcode,
		Country:      a.Country,
		IsPrimary:    a.IsPrimary,
	}
}

func toPaymentMethodResponse(p *model.PaymentMethod) PaymentMethodResponse {
	return PaymentMethodResponse{
		ID:         p.ID,
		Number:     p.MaskedNumber(),
		Name:       p.Name,
		Expiration: p.Expiration.Format("01/2006"),
		IsPrimary:  p.IsPrimary,
	}
}

func (r AddressRequest) input() service.AddressInput {
	return service.AddressInput{
		AddressLine1: r.AddressLine1,
		AddressLine2: r.AddressLine2,
		Town:         r.Town,
		County:       r.County,
		Postcode:     r.Postcode,
		Country:      r.Country,
		IsPrimary:    r.IsPrimary,
	}
}

func (h *ProfileHandler) Addresses(c echo.Context) error {
	list, err := h.svc.Addresses(c.Request().Context(), appmw.CurrentUser(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]AddressResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toAddressResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"addresses": resp})
}

func (h *ProfileHandler) AddAddress(c echo.Context) error {
	var req AddressRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	a, err := h.svc.AddAddress(c.Request().Context(), appmw.CurrentUser(c).ID, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toAddressResponse(a))
}

func (h *ProfileHandler) UpdateAddress(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req AddressRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	a, err := h.svc.UpdateAddress(c.Request().Context(), appmw.CurrentUser(c).ID, id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toAddressResponse(a))
}

func (h *ProfileHandler) DeleteAddress(c echo.Context) error {
	var req DeleteRequest
	if err := c.Bind(&req); err != nil || req.ID == 0 {
		return badRequest(c, "id is required")
	}
	if err := h.svc.DeleteAddress(c.Request().Context(), appmw.CurrentUser(c).ID, req.ID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": req.ID})
}

func (h *ProfileHandler) PaymentMethods(c echo.Context) error {
	list, err := h.svc.PaymentMethods(c.Request().Context(), appmw.CurrentUser(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]PaymentMethodResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toPaymentMethodResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"paymentMethods": resp})
}

func (h *ProfileHandler) AddPaymentMethod(c echo.Context) error {
	var req PaymentMethodRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	p, err := h.svc.AddPaymentMethod(c.Request().Context(), appmw.CurrentUser(c).ID, service.PaymentMethodInput{
		Number:    req.Number,
		Name:      req.Name,
		CVV:       req.CVV,
		ExpMonth:  req.ExpMonth,
		ExpYear:   req.ExpYear,
		IsPrimary: req.IsPrimary,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toPaymentMethodResponse(p))
}

func (h *ProfileHandler) UpdatePaymentMethod(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req PaymentMethodUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	p, err := h.svc.UpdatePaymentMethod(c.Request().Context(), appmw.CurrentUser(c).ID, id, service.PaymentMethodUpdate{
		Name:      req.Name,
		IsPrimary: req.IsPrimary,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPaymentMethodResponse(p))
}

func (h *ProfileHandler) DeletePaymentMethod(c echo.Context) error {
	var req DeleteRequest
	if err := c.Bind(&req); err != nil || req.ID == 0 {
		return badRequest(c, "id is required")
	}
	if err := h.svc.DeletePaymentMethod(c.Request().Context(), appmw.CurrentUser(c).ID, req.ID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": req.ID})
}
