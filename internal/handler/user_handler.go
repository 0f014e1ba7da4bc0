package handler

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/oneauction/internal/middleware"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/reqctx"
	"github.com/shinyyama/oneauction/internal/service"
)

// UserHandler serves registration, login and account settings.
type UserHandler struct {
	accounts service.AccountService
	sessions service.SessionService
	auth     *appmw.AuthMiddleware
}

func NewUserHandler(accounts service.AccountService, sessions service.SessionService, auth *appmw.AuthMiddleware) *UserHandler {
	return &UserHandler{accounts: accounts, sessions: sessions, auth: auth}
}

type UserResponse struct {
	ID        uint64  `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	FullName  string  `json:"fullName"`
	IsActive  bool    `json:"isActive"`
	IsStaff   bool    `json:"isStaff"`
	LastLogin *string `json:"lastLogin"`
	JoinedAt  string  `json:"joinedAt"`
}

type RegisterRequest struct {
	FirstName string `json:"firstName" form:"first_name"`
	LastName  string `json:"lastName" form:"last_name"`
	Email     string `json:"email" form:"email"`
	Password1 string `json:"password1" form:"password1"`
	Password2 string `json:"password2" form:"password2"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type SettingsRequest struct {
	FirstName       string `json:"firstName" form:"first_name"`
	LastName        string `json:"lastName" form:"last_name"`
	Email           string `json:"email" form:"email"`
	NewPassword     string `json:"newPassword" form:"new_password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirm_password"`
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		IsActive:  u.IsActive,
		IsStaff:   u.IsStaff,
		LastLogin: optionalTimestamp(u.LastLogin),
		JoinedAt:  timestamp(u.CreatedDttm),
	}
}

func (h *UserHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.accounts.Register(c.Request().Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password1: req.Password1,
		Password2: req.Password2,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toUserResponse(u))
}

func (h *UserHandler) Activate(c echo.Context) error {
	u, err := h.accounts.Activate(c.Request().Context(), c.Param("uid"), c.Param("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}

func (h *UserHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx := c.Request().Context()
	res, err := h.accounts.Login(ctx, appmw.VisitorKeys(c), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	appmw.SetCurrentUser(c, res.User)
	sess := appmw.CurrentSession(c)
	if sess == nil {
		if sess, err = h.sessions.ForUser(ctx, res.User.ID); err != nil {
			log.Printf("%suser session: %v", reqctx.Prefix(ctx), err)
		}
	}
	if sess == nil {
		if _, err := h.auth.EnsureSession(c); err != nil {
			log.Printf("%sstart session: %v", reqctx.Prefix(ctx), err)
		}
	} else if err := h.sessions.Bind(ctx, sess, res.User.ID); err != nil {
		log.Printf("%sbind session: %v", reqctx.Prefix(ctx), err)
	} else {
		appmw.SetCurrentSession(c, sess)
		h.auth.SetSessionCookie(c, sess)
	}
	return c.JSON(http.StatusOK, LoginResponse{Token: res.Token, User: toUserResponse(res.User)})
}

func (h *UserHandler) Logout(c echo.Context) error {
	if sess := appmw.CurrentSession(c); sess != nil {
		if err := h.sessions.Destroy(c.Request().Context(), sess.ID); err != nil {
			return respondError(c, err)
		}
	}
	h.auth.ClearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) Settings(c echo.Context) error {
	return c.JSON(http.StatusOK, toUserResponse(appmw.CurrentUser(c)))
}

func (h *UserHandler) UpdateSettings(c echo.Context) error {
	var req SettingsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.accounts.UpdateSettings(c.Request().Context(), appmw.CurrentUser(c).ID, service.SettingsInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toUserResponse(u))
}
