package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/oneauction/internal/model"
	"github.com/shinyyama/oneauction/internal/reqctx"
	"github.com/shinyyama/oneauction/internal/service"
)

const (
	SessionCookie = "sessionid"

	keyUser    = "user"
	keySession = "session"
)

// TokenVerifier checks identity-provider ID tokens. *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type AuthMiddleware struct {
	accounts     service.AccountService
	sessions     service.SessionService
	verifier     TokenVerifier
	sessionTTL   time.Duration
	secureCookie bool
}

func NewAuthMiddleware(accounts service.AccountService, sessions service.SessionService, sessionTTL time.Duration, secureCookie bool) *AuthMiddleware {
	return &AuthMiddleware{accounts: accounts, sessions: sessions, sessionTTL: sessionTTL, secureCookie: secureCookie}
}

// NewFirebaseVerifier builds an ID token verifier for the given Firebase project.
func NewFirebaseVerifier(ctx context.Context, projectID string) (*auth.Client, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, err
	}
	return app.Auth(ctx)
}

// UseVerifier accepts identity-provider tokens when the local bearer check fails.
func (m *AuthMiddleware) UseVerifier(v TokenVerifier) {
	m.verifier = v
}

// Identify loads the visitor's session and resolves the current user from the
// bearer token or the session binding. It never rejects anonymous requests and
// never creates sessions; see EnsureSession.
func (m *AuthMiddleware) Identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		var sid string
		if ck, err := c.Cookie(SessionCookie); err == nil {
			sid = ck.Value
		}
		sess, err := m.sessions.Load(ctx, sid)
		if err != nil {
			log.Printf("%ssession load: %v", reqctx.Prefix(ctx), err)
		}

		var user *model.User
		if authz := req.Header.Get(echo.HeaderAuthorization); authz != "" {
			if !strings.HasPrefix(authz, "Bearer ") {
				return deny(c, http.StatusUnauthorized, "unauthorized", "unsupported authorization scheme")
			}
			user, err = m.bearer(ctx, strings.TrimPrefix(authz, "Bearer "))
			if err != nil {
				if errors.Is(err, service.ErrUnauthenticated) {
					return deny(c, http.StatusUnauthorized, "invalid_token", "invalid token")
				}
				return err
			}
		} else if sess != nil && sess.UserID != nil {
			u, err := m.accounts.User(ctx, *sess.UserID)
			if err == nil && u.IsActive {
				user = u
			} else if err != nil && !errors.Is(err, service.ErrNotFound) {
				log.Printf("%ssession user %d: %v", reqctx.Prefix(ctx), *sess.UserID, err)
			}
		}

		if user != nil {
			SetCurrentUser(c, user)
			// Token clients that keep no cookie find their cart on the session bound to them.
			if sess == nil || (sess.UserID != nil && *sess.UserID != user.ID) {
				bound, err := m.sessions.ForUser(ctx, user.ID)
				if err != nil {
					log.Printf("%suser session %d: %v", reqctx.Prefix(ctx), user.ID, err)
				}
				sess = bound
			}
		}
		if sess != nil {
			SetCurrentSession(c, sess)
		}
		return next(c)
	}
}

// EnsureSession returns the request's session, starting one and setting its
// cookie when there is none yet. A new session is bound to the current user.
func (m *AuthMiddleware) EnsureSession(c echo.Context) (*model.Session, error) {
	if s := CurrentSession(c); s != nil {
		return s, nil
	}
	var uid *uint64
	if u := CurrentUser(c); u != nil {
		id := u.ID
		uid = &id
	}
	s, err := m.sessions.Start(c.Request().Context(), uid)
	if err != nil {
		return nil, err
	}
	SetCurrentSession(c, s)
	m.SetSessionCookie(c, s)
	return s, nil
}

func (m *AuthMiddleware) bearer(ctx context.Context, token string) (*model.User, error) {
	u, err := m.accounts.Authenticate(ctx, token)
	if err == nil || m.verifier == nil || !errors.Is(err, service.ErrUnauthenticated) {
		return u, err
	}
	idt, verr := m.verifier.VerifyIDToken(ctx, token)
	if verr != nil {
		return nil, service.ErrUnauthenticated
	}
	email, _ := idt.Claims["email"].(string)
	name, _ := idt.Claims["name"].(string)
	if email == "" {
		return nil, service.ErrUnauthenticated
	}
	return m.accounts.ExternalUser(ctx, email, name)
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if CurrentUser(c) == nil {
			return deny(c, http.StatusUnauthorized, "unauthorized", "login required")
		}
		return next(c)
	}
}

func (m *AuthMiddleware) RequireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		u := CurrentUser(c)
		if u == nil {
			return deny(c, http.StatusUnauthorized, "unauthorized", "login required")
		}
		if !u.IsStaff {
			return deny(c, http.StatusForbidden, "forbidden", "staff only")
		}
		return next(c)
	}
}

// SetSessionCookie writes the session id cookie with the session's expiry.
func (m *AuthMiddleware) SetSessionCookie(c echo.Context, sess *model.Session) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(m.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *AuthMiddleware) ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(keyUser).(*model.User)
	return u
}

// SetCurrentUser records the authenticated user on the request.
func SetCurrentUser(c echo.Context, u *model.User) {
	c.Set(keyUser, u)
	req := c.Request()
	c.SetRequest(req.WithContext(reqctx.WithUserID(req.Context(), u.ID)))
}

func SetCurrentSession(c echo.Context, s *model.Session) {
	c.Set(keySession, s)
}

func CurrentSession(c echo.Context) *model.Session {
	s, _ := c.Get(keySession).(*model.Session)
	return s
}

// VisitorKeys identify the client for login throttling: its session when it
// has one, and always its address.
func VisitorKeys(c echo.Context) []string {
	keys := make([]string, 0, 2)
	if s := CurrentSession(c); s != nil {
		keys = append(keys, "session:"+s.ID)
	}
	return append(keys, "ip:"+c.RealIP())
}

func deny(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"error": echo.Map{"code": code, "message": message}})
}
