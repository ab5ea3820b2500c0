package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jwolfley/gamepulse/store"
	"github.com/jwolfley/gamepulse/upstream"
)

const maxBatchIDs = 100
const maxValidID = 10_000_000

// ListGames returns every game's metadata.
func (s *Server) ListGames(c echo.Context) error {
	games, err := s.Store.GetAllGames(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "store error")
	}
	return c.JSON(http.StatusOK, games)
}

// GetGame returns a single game's metadata.
func (s *Server) GetGame(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	game, err := s.Store.GetGame(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "game not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "store error")
	}
	return c.JSON(http.StatusOK, game)
}

type tagsBatchRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=100,dive,gt=0"`
}

type tagSet struct {
	Genres     []string `json:"genres"`
	Categories []string `json:"categories"`
}

// GamesTagsBatch returns genre/category tags for up to 100 ids in one call.
func (s *Server) GamesTagsBatch(c echo.Context) error {
	var req tagsBatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "malformed body")
	}
	if len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "ids must not be empty")
	}
	if len(req.IDs) > maxBatchIDs {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "at most 100 ids per request")
	}
	if err := getValidator().Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	out := make(map[string]tagSet, len(req.IDs))
	ctx := c.Request().Context()
	for _, id := range req.IDs {
		if id <= 0 || id >= maxValidID {
			return echo.NewHTTPError(http.StatusBadRequest, "id out of range")
		}
		game, err := s.Store.GetGame(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "store error")
		}
		out[strconv.FormatInt(id, 10)] = tagSet{Genres: game.Genres, Categories: game.Categories}
	}
	return c.JSON(http.StatusOK, map[string]any{"tags": out})
}

// CurrentPlayers returns the watched list with last_count.
func (s *Server) CurrentPlayers(c echo.Context) error {
	watched, err := s.Store.ListWatched(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "store error")
	}
	return c.JSON(http.StatusOK, watched)
}

// Genres returns every distinct genre, sorted.
func (s *Server) Genres(c echo.Context) error {
	genres, err := s.Store.ListGenres(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "store error")
	}
	return c.JSON(http.StatusOK, genres)
}

// Categories returns every distinct category, sorted.
func (s *Server) Categories(c echo.Context) error {
	categories, err := s.Store.ListCategories(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "store error")
	}
	return c.JSON(http.StatusOK, categories)
}

// OwnedGames passes through to the Upstream Client.
func (s *Server) OwnedGames(c echo.Context) error {
	steamID, err := resolveSteamID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	games, err := s.Upstream.GetOwnedGames(c.Request().Context(), steamID)
	if err != nil {
		return upstreamError(err)
	}
	return c.JSON(http.StatusOK, games)
}

// RecentlyPlayed passes through to owned games, keeping those with any
// recorded total playtime (playtime_forever > 0). No recent-playtime
// window is applied: the Upstream Client has no distinct recently-played
// endpoint.
func (s *Server) RecentlyPlayed(c echo.Context) error {
	steamID, err := resolveSteamID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	games, err := s.Upstream.GetOwnedGames(c.Request().Context(), steamID)
	if err != nil {
		return upstreamError(err)
	}

	recent := make([]upstream.OwnedGame, 0, len(games))
	for _, g := range games {
		if g.PlaytimeForever > 0 {
			recent = append(recent, g)
		}
	}
	return c.JSON(http.StatusOK, recent)
}

// PlayerSummary passes through to the Upstream Client.
func (s *Server) PlayerSummary(c echo.Context) error {
	steamID, err := resolveSteamID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	summary, err := s.Upstream.GetPlayerSummary(c.Request().Context(), steamID)
	if err != nil {
		return upstreamError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// ComingSoon passes through to the Upstream Client.
func (s *Server) ComingSoon(c echo.Context) error {
	entries, err := s.Upstream.GetComingSoon(c.Request().Context())
	if err != nil {
		return upstreamError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

// ResolveVanity resolves a vanity name to a numeric steam id.
func (s *Server) ResolveVanity(c echo.Context) error {
	name, err := normalizeUserIdentifier(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	id, err := s.Upstream.ResolveVanityURL(c.Request().Context(), name)
	if err != nil {
		return upstreamError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"steamid": id})
}

func resolveSteamID(c echo.Context) (string, error) {
	return normalizeUserIdentifier(c.Param("steam_id"))
}

func upstreamError(err error) error {
	if errors.Is(err, upstream.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusServiceUnavailable, "upstream unavailable")
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.New("id must be an integer")
	}
	if id <= 0 || id >= maxValidID {
		return 0, errors.New("id out of range")
	}
	return id, nil
}
