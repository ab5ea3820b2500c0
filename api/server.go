// Package api is the API Surface: read-mostly JSON endpoints composed
// from the Store, fronted by the Request Gate.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jwolfley/gamepulse/auth"
	"github.com/jwolfley/gamepulse/store"
	"github.com/jwolfley/gamepulse/upstream"
)

const serviceVersion = "1.0.0"

// Server holds every dependency the handlers need.
type Server struct {
	Store       *store.Store
	Upstream    *upstream.Client
	Tokens      *auth.Tokens
	Signer      *auth.Signer
	SchedulerUp func() bool
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// Register mounts every handler onto e.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.Home)
	e.GET("/health", s.Health)
	e.POST("/auth/login", s.Login)

	e.GET("/api/games", s.ListGames)
	e.GET("/api/games/:id", s.GetGame)
	e.POST("/api/games/tags/batch", s.GamesTagsBatch)
	e.GET("/api/current-players", s.CurrentPlayers)
	e.GET("/api/genres", s.Genres)
	e.GET("/api/categories", s.Categories)
	e.GET("/api/owned-games/:steam_id", s.OwnedGames)
	e.GET("/api/recently-played/:steam_id", s.RecentlyPlayed)
	e.GET("/api/player-summary/:steam_id", s.PlayerSummary)
	e.GET("/api/coming-soon", s.ComingSoon)
	e.GET("/api/resolve-vanity/:name", s.ResolveVanity)
}

// Home reports service identity and version on the unauthenticated root.
func (s *Server) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"service": "gamepulse",
		"version": serviceVersion,
	})
}

// Health reports store and scheduler liveness.
func (s *Server) Health(c echo.Context) error {
	db := "connected"
	if !s.Store.Healthy(c.Request().Context()) {
		db = "disconnected"
	}
	sched := "stopped"
	if s.SchedulerUp != nil && s.SchedulerUp() {
		sched = "running"
	}
	return c.JSON(http.StatusOK, map[string]string{"db": db, "scheduler": sched})
}

type loginRequest struct {
	ClientID string `json:"client_id" validate:"required"`
}

// Login verifies its own HMAC signature (it is exempt from the Request
// Gate's signature middleware, per spec §4.4 — auth endpoints handle
// their own verification) and issues a bearer token on success.
func (s *Server) Login(c echo.Context) error {
	req := c.Request()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "cannot read body")
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	var login loginRequest
	if err := json.Unmarshal(body, &login); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "malformed body")
	}
	if err := getValidator().Struct(login); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	clientID := req.Header.Get("X-Client-Id")
	timestamp := req.Header.Get("X-Timestamp")
	nonce := req.Header.Get("X-Nonce")
	signature := req.Header.Get("X-Signature")

	verified, err := s.Signer.VerifyRequest(req.Method, req.URL.Path, body, clientID, timestamp, nonce, signature)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownClient) {
			return echo.NewHTTPError(http.StatusForbidden, "unknown client")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	if verified != login.ClientID {
		return echo.NewHTTPError(http.StatusForbidden, "client_id mismatch")
	}

	token, expiresIn, err := s.Tokens.Issue(verified)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "token issuance failed")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   expiresIn,
	})
}
