package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"karolbroda.com/lyricmotion/internal/cache"
	"karolbroda.com/lyricmotion/internal/logging"
)

const userAgent = "lyricmotion/1.0"

// Response mirrors an lrclib track record.
type Response struct {
	ID           int64   `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// Text prefers synced lyrics so timestamps can be used when present.
func (r *Response) Text() string {
	if strings.TrimSpace(r.SyncedLyrics) != "" {
		return r.SyncedLyrics
	}
	return r.PlainLyrics
}

type TrackParams struct {
	Title        string
	Artist       string
	Album        string
	DurationSecs int64
}

var ErrNotFound = errors.New("lyrics not found")

type ClientOptions struct {
	GetURL    string
	SearchURL string
	Timeout   time.Duration
	// StrategyDelay spaces out fallback queries so the server isn't hammered.
	StrategyDelay time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client talks to lrclib.net and memoizes hits for the process lifetime.
type Client struct {
	getURL    string
	searchURL string
	delay     time.Duration
	timeout   time.Duration
	http      *http.Client
	memo      *cache.Memo[*Response]
	logger    *slog.Logger
}

func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   2 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     60 * time.Second,
				TLSHandshakeTimeout: 2 * time.Second,
			},
			Timeout: timeout,
		}
	}
	return &Client{
		getURL:    opts.GetURL,
		searchURL: opts.SearchURL,
		delay:     opts.StrategyDelay,
		timeout:   timeout,
		http:      hc,
		memo:      cache.New[*Response](30 * time.Minute),
		logger:    logging.OrDiscard(opts.Logger).With("component", "lrclib"),
	}
}

type strategy struct {
	artist   string
	title    string
	album    string
	duration int64
}

// strategies lists lookups from most to least specific, deduplicated.
func strategies(track TrackParams) []strategy {
	artist := normalizeString(track.Artist)
	title := normalizeString(track.Title)
	all := []strategy{
		{artist, title, track.Album, track.DurationSecs},
		{artist, title, "", track.DurationSecs},
		{artist, title, "", 0},
		{stripVersionInfo(track.Artist), stripVersionInfo(track.Title), "", 0},
		{strings.ToUpper(artist), strings.ToUpper(title), "", 0},
		{strings.ToLower(artist), strings.ToLower(title), "", 0},
		{toTitleCase(artist), toTitleCase(title), "", 0},
		{track.Artist, track.Title, "", 0},
	}
	seen := make(map[strategy]bool, len(all))
	out := make([]strategy, 0, len(all))
	for _, s := range all {
		if s.artist == "" || s.title == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Fetch looks a track up, trying looser queries until one returns lyrics.
func (c *Client) Fetch(ctx context.Context, track TrackParams) (*Response, error) {
	if normalizeString(track.Title) == "" || normalizeString(track.Artist) == "" {
		return nil, errors.New("track title or artist is empty")
	}
	if c.getURL == "" {
		return nil, errors.New("lrclib get url is empty")
	}
	key := cache.Key(track.Artist, track.Title)
	if hit, err := c.memo.Get(key); err == nil {
		return hit, nil
	}

	base, err := url.Parse(c.getURL)
	if err != nil {
		return nil, fmt.Errorf("invalid lrclib url %q: %w", c.getURL, err)
	}

	var lastErr error
	for i, s := range strategies(track) {
		if i > 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.delay):
			}
		}

		query := url.Values{}
		query.Set("artist_name", s.artist)
		query.Set("track_name", s.title)
		if s.album != "" {
			query.Set("album_name", s.album)
		}
		if s.duration > 0 {
			query.Set("duration", fmt.Sprintf("%d", s.duration))
		}
		u := *base
		u.RawQuery = query.Encode()

		var payload Response
		err := c.getJSON(ctx, u.String(), &payload)
		if err == nil {
			if payload.PlainLyrics == "" && payload.SyncedLyrics == "" && !payload.Instrumental {
				lastErr = errors.New("no lyrics in response")
				continue
			}
			c.logger.Debug("lyrics found", "strategy", i, "artist", s.artist, "title", s.title)
			c.memo.Set(key, &payload)
			return &payload, nil
		}
		lastErr = err
		if isTimeoutError(err) {
			return nil, errors.New("lyrics server took too long to respond")
		}
	}
	return nil, fmt.Errorf("%w for %s - %s: %v", ErrNotFound, track.Artist, track.Title, lastErr)
}

// Search runs a free-text query and returns every match.
func (c *Client) Search(ctx context.Context, q string) ([]Response, error) {
	q = normalizeString(q)
	if q == "" {
		return nil, errors.New("search query is empty")
	}
	if c.searchURL == "" {
		return nil, errors.New("lrclib search url is empty")
	}
	u, err := url.Parse(c.searchURL)
	if err != nil {
		return nil, fmt.Errorf("invalid lrclib url %q: %w", c.searchURL, err)
	}
	query := u.Query()
	query.Set("q", q)
	u.RawQuery = query.Encode()

	var results []Response
	if err := c.getJSON(ctx, u.String(), &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) getJSON(parent context.Context, requestURL string, into any) error {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("status 404: %w", ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("lrclib returned status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("failed to decode lrclib json: %w", err)
	}
	return nil
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeString(s string) string {
	return collapseSpaces(s)
}

// stripVersionInfo drops parenthesized and bracketed parts like "(Remix)".
func stripVersionInfo(s string) string {
	for _, pair := range [][2]string{{"(", ")"}, {"[", "]"}} {
		for {
			start := strings.Index(s, pair[0])
			end := strings.Index(s, pair[1])
			if start < 0 || end <= start {
				break
			}
			s = s[:start] + " " + s[end+1:]
		}
	}
	return collapseSpaces(s)
}

func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
