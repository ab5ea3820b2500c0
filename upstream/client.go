// Package upstream is the typed client for the game-catalog/population
// API the Collection Engine and the API Surface both depend on.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jwolfley/gamepulse/config"
)

// ErrNotFound is returned when upstream reports a definite not-found
// (404, or a 200 with an empty/unsuccessful payload).
var ErrNotFound = errors.New("upstream: not found")

// Client is the outbound HTTP client used by the Collection Engine and,
// indirectly, by parts of the API Surface that proxy live upstream reads.
type Client struct {
	key    string
	client *http.Client
}

const baseURL = "https://api.steampowered.com"

// New builds a Client with tuned connection and timeout settings, per
// config.
func New(cfg config.Config) *Client {
	return &Client{
		key: cfg.UpstreamAPIKey,
		client: &http.Client{
			Timeout: cfg.UpstreamTotalTimeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: cfg.UpstreamConnTimeout}).DialContext,
				TLSHandshakeTimeout:   cfg.UpstreamConnTimeout,
				ExpectContinueTimeout: time.Second,
				IdleConnTimeout:       30 * time.Second,
				MaxIdleConns:          100,
				MaxConnsPerHost:       10,
			},
		},
	}
}

// PlayerCount is the decoded response of GetPlayerCount.
type PlayerCount struct {
	AppID       int64 `json:"-"`
	PlayerCount int64 `json:"player_count"`
	Result      int   `json:"result"`
}

type playerCountResp struct {
	Response PlayerCount `json:"response"`
}

// GetPlayerCount returns the current concurrent player count for an app.
func (c *Client) GetPlayerCount(ctx context.Context, appID int64) (PlayerCount, error) {
	q := url.Values{"appid": {strconv.FormatInt(appID, 10)}}
	var out playerCountResp
	if err := c.getJSON(ctx, "/ISteamUserStats/GetNumberOfCurrentPlayers/v1/", q, &out); err != nil {
		return PlayerCount{}, err
	}
	if out.Response.Result != 1 {
		return PlayerCount{}, ErrNotFound
	}
	out.Response.AppID = appID
	return out.Response, nil
}

// AppDetail is the subset of catalog metadata the Collection Engine
// persists into game_metadata/game_genre/game_category.
type AppDetail struct {
	Name               string
	Description        string
	HeaderImageURL     string
	BackgroundImageURL string
	ReleaseDate        string
	Price              float64
	IsFree             bool
	Genres             []string
	Categories         []string
}

type appDetailEnvelope map[string]struct {
	Success bool `json:"success"`
	Data    struct {
		Name          string `json:"name"`
		IsFree        bool   `json:"is_free"`
		DetailedDesc  string `json:"detailed_description"`
		HeaderImage   string `json:"header_image"`
		Background    string `json:"background"`
		ReleaseDate   struct {
			Date string `json:"date"`
		} `json:"release_date"`
		PriceOverview struct {
			FinalFormatted string `json:"final_formatted"`
			Final          int64  `json:"final"`
		} `json:"price_overview"`
		Genres []struct {
			Description string `json:"description"`
		} `json:"genres"`
		Categories []struct {
			Description string `json:"description"`
		} `json:"categories"`
	} `json:"data"`
}

// GetAppDetail fetches catalog details for a single app.
func (c *Client) GetAppDetail(ctx context.Context, appID int64) (AppDetail, error) {
	q := url.Values{"appids": {strconv.FormatInt(appID, 10)}}
	var raw appDetailEnvelope
	if err := c.getJSON(ctx, "/store/appdetails", q, &raw); err != nil {
		return AppDetail{}, err
	}

	entry, ok := raw[strconv.FormatInt(appID, 10)]
	if !ok || !entry.Success {
		return AppDetail{}, ErrNotFound
	}

	genres := make([]string, 0, len(entry.Data.Genres))
	for _, g := range entry.Data.Genres {
		genres = append(genres, g.Description)
	}
	categories := make([]string, 0, len(entry.Data.Categories))
	for _, cat := range entry.Data.Categories {
		categories = append(categories, cat.Description)
	}

	return AppDetail{
		Name:               entry.Data.Name,
		Description:        entry.Data.DetailedDesc,
		HeaderImageURL:     entry.Data.HeaderImage,
		BackgroundImageURL: entry.Data.Background,
		ReleaseDate:        entry.Data.ReleaseDate.Date,
		Price:              float64(entry.Data.PriceOverview.Final) / 100.0,
		IsFree:             entry.Data.IsFree,
		Genres:             genres,
		Categories:         categories,
	}, nil
}

// MostPlayedEntry is one row of the storefront's most-played listing.
type MostPlayedEntry struct {
	AppID       int64
	Name        string
	PlayerCount int64
}

type mostPlayedResp struct {
	Response struct {
		Ranks []struct {
			AppID            int64 `json:"appid"`
			ConcurrentInGame int64 `json:"concurrent_in_game"`
		} `json:"ranks"`
	} `json:"response"`
}

// GetMostPlayed returns the current most-played app ids and counts. Names
// are not included by this upstream endpoint and are left blank; callers
// resolve them via GetAppDetail.
func (c *Client) GetMostPlayed(ctx context.Context) ([]MostPlayedEntry, error) {
	var raw mostPlayedResp
	if err := c.getJSON(ctx, "/ISteamChartsService/GetMostPlayedGames/v1/", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]MostPlayedEntry, 0, len(raw.Response.Ranks))
	for _, r := range raw.Response.Ranks {
		out = append(out, MostPlayedEntry{AppID: r.AppID, PlayerCount: r.ConcurrentInGame})
	}
	return out, nil
}

// OwnedGame mirrors the teacher's steamapi.OwnedGame shape.
type OwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int    `json:"playtime_forever"`
}

type ownedGamesResp struct {
	Response struct {
		GameCount int         `json:"game_count"`
		Games     []OwnedGame `json:"games"`
	} `json:"response"`
}

// GetOwnedGames returns a player's owned games.
func (c *Client) GetOwnedGames(ctx context.Context, steamID string) ([]OwnedGame, error) {
	q := url.Values{
		"steamid":                   {steamID},
		"include_appinfo":           {"1"},
		"include_played_free_games": {"1"},
	}
	var out ownedGamesResp
	if err := c.getJSON(ctx, "/IPlayerService/GetOwnedGames/v1/", q, &out); err != nil {
		return nil, err
	}
	return out.Response.Games, nil
}

// PlayerSummary is the profile summary for a single player.
type PlayerSummary struct {
	SteamID      string `json:"steamid"`
	PersonaName  string `json:"personaname"`
	ProfileURL   string `json:"profileurl"`
	Avatar       string `json:"avatar"`
	PersonaState int    `json:"personastate"`
}

type playerSummariesResp struct {
	Response struct {
		Players []PlayerSummary `json:"players"`
	} `json:"response"`
}

// GetPlayerSummary returns one player's public profile summary.
func (c *Client) GetPlayerSummary(ctx context.Context, steamID string) (PlayerSummary, error) {
	q := url.Values{"steamids": {steamID}}
	var out playerSummariesResp
	if err := c.getJSON(ctx, "/ISteamUser/GetPlayerSummaries/v2/", q, &out); err != nil {
		return PlayerSummary{}, err
	}
	if len(out.Response.Players) == 0 {
		return PlayerSummary{}, ErrNotFound
	}
	return out.Response.Players[0], nil
}

// ComingSoonEntry is one row of the storefront's coming-soon listing.
type ComingSoonEntry struct {
	AppID       int64  `json:"appid"`
	Name        string `json:"name"`
	ReleaseDate string `json:"release_date"`
}

type comingSoonResp struct {
	Items []ComingSoonEntry `json:"items"`
}

// GetComingSoon returns upcoming releases.
func (c *Client) GetComingSoon(ctx context.Context) ([]ComingSoonEntry, error) {
	var out comingSoonResp
	if err := c.getJSON(ctx, "/IStoreQueryService/Query/v1/", url.Values{"coming_soon": {"1"}}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

type resolveVanityResp struct {
	Response struct {
		SteamID string `json:"steamid"`
		Success int    `json:"success"`
	} `json:"response"`
}

// ResolveVanityURL resolves a vanity profile name to a numeric steam id.
func (c *Client) ResolveVanityURL(ctx context.Context, vanity string) (string, error) {
	q := url.Values{"vanityurl": {vanity}}
	var out resolveVanityResp
	if err := c.getJSON(ctx, "/ISteamUser/ResolveVanityURL/v1/", q, &out); err != nil {
		return "", err
	}
	if out.Response.Success != 1 {
		return "", ErrNotFound
	}
	return out.Response.SteamID, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	u := baseURL + path
	if q != nil {
		q.Set("key", c.key)
		u += "?" + q.Encode()
	} else {
		u += "?key=" + url.QueryEscape(c.key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("upstream: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream: http %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("upstream: decode response: %w", err)
	}
	return nil
}
