package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"beatstore/internal/model"
	"beatstore/internal/repository"
)

const userContextKey = "user"

// Auth validates bearer tokens minted by the external auth service (HS256,
// shared secret) and mirrors the asserted identity into the local users
// table. The admin flag always comes from the local row, never the token.
type Auth struct {
	secret   []byte
	userRepo repository.UserRepository
}

func NewAuth(jwtSecret string, userRepo repository.UserRepository) *Auth {
	return &Auth{
		secret:   []byte(jwtSecret),
		userRepo: userRepo,
	}
}

func (a *Auth) resolveUser(c echo.Context) (*model.User, error) {
	header := c.Request().Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if sub == "" || email == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "token missing subject or email")
	}

	ctx := c.Request().Context()
	if err := a.userRepo.Upsert(ctx, &model.User{
		ID:    sub,
		Email: email,
		Name:  name,
	}); err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "resolve user")
	}

	user, err := a.userRepo.FindByID(ctx, sub)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "resolve user")
	}

	return user, nil
}

// Required rejects requests without a valid session.
func (a *Auth) Required() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := a.resolveUser(c)
			if err != nil {
				return err
			}
			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// Optional attaches the user when a valid token is present and lets guests
// through otherwise. Checkout accepts both.
func (a *Auth) Optional() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				user, err := a.resolveUser(c)
				if err != nil {
					return err
				}
				c.Set(userContextKey, user)
			}
			return next(c)
		}
	}
}

// AdminOnly gates admin routes on the local admin flag. Must run after
// Required.
func (a *Auth) AdminOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := UserFromContext(c)
			if user == nil || !user.IsAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}
			return next(c)
		}
	}
}

func UserFromContext(c echo.Context) *model.User {
	user, _ := c.Get(userContextKey).(*model.User)
	return user
}
