package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"beatstore/internal/client"
	"beatstore/internal/model"
	"beatstore/internal/repository"
)

const testJWTSecret = "auth-secret"

func newAuthEnv(t *testing.T) (*gorm.DB, *Auth) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := client.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db, NewAuth(testJWTSecret, repository.NewUserRepository(db))
}

func mintToken(t *testing.T, secret, sub, email string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"name":  "Test User",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func doRequest(mw echo.MiddlewareFunc, token string, extra ...echo.MiddlewareFunc) (*httptest.ResponseRecorder, *model.User) {
	e := echo.New()
	var seen *model.User
	h := func(c echo.Context) error {
		seen = UserFromContext(c)
		return c.NoContent(http.StatusOK)
	}
	for i := len(extra) - 1; i >= 0; i-- {
		h = extra[i](h)
	}
	h = mw(h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, seen
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("Given a valid token Then the user is mirrored locally and attached to context", func(t *testing.T) {
		db, auth := newAuthEnv(t)

		sub := uuid.NewString()
		rec, seen := doRequest(auth.Required(), mintToken(t, testJWTSecret, sub, "user@example.com"))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if seen == nil || seen.ID != sub {
			t.Fatalf("user not attached to context: %+v", seen)
		}

		var stored model.User
		if err := db.First(&stored, "id = ?", sub).Error; err != nil {
			t.Fatalf("user not mirrored: %v", err)
		}
		if stored.Email != "user@example.com" {
			t.Errorf("unexpected email %s", stored.Email)
		}
	})

	t.Run("Given no token Then Required rejects and Optional passes as guest", func(t *testing.T) {
		_, auth := newAuthEnv(t)

		rec, _ := doRequest(auth.Required(), "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Required: expected 401, got %d", rec.Code)
		}

		rec, seen := doRequest(auth.Optional(), "")
		if rec.Code != http.StatusOK {
			t.Errorf("Optional: expected 200, got %d", rec.Code)
		}
		if seen != nil {
			t.Errorf("Optional without token must stay guest, got %+v", seen)
		}
	})

	t.Run("Given a token signed with another secret Then the request is rejected", func(t *testing.T) {
		_, auth := newAuthEnv(t)

		rec, _ := doRequest(auth.Required(), mintToken(t, "wrong-secret", uuid.NewString(), "user@example.com"))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("Given a non-admin user Then admin routes are forbidden", func(t *testing.T) {
		_, auth := newAuthEnv(t)

		rec, _ := doRequest(auth.Required(),
			mintToken(t, testJWTSecret, uuid.NewString(), "user@example.com"),
			auth.AdminOnly())
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("Given a locally flagged admin Then admin routes pass", func(t *testing.T) {
		db, auth := newAuthEnv(t)

		sub := uuid.NewString()
		if err := db.Create(&model.User{
			ID:      sub,
			Email:   "admin@example.com",
			IsAdmin: true,
		}).Error; err != nil {
			t.Fatalf("seed admin: %v", err)
		}

		rec, _ := doRequest(auth.Required(),
			mintToken(t, testJWTSecret, sub, "admin@example.com"),
			auth.AdminOnly())
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("Given an upsert from a token Then the local admin flag is preserved", func(t *testing.T) {
		db, auth := newAuthEnv(t)

		sub := uuid.NewString()
		if err := db.Create(&model.User{
			ID:      sub,
			Email:   "admin@example.com",
			IsAdmin: true,
		}).Error; err != nil {
			t.Fatalf("seed admin: %v", err)
		}

		_, seen := doRequest(auth.Required(), mintToken(t, testJWTSecret, sub, "admin@example.com"))
		if seen == nil || !seen.IsAdmin {
			t.Fatalf("admin flag lost on upsert: %+v", seen)
		}
	})
}
