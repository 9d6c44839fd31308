// Package listings fetches one window of the listings grid.
package listings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"zap2xml/config"
	"zap2xml/models"
	"zap2xml/services/httpcache"
)

// ErrMalformedPayload is returned when a successful response is not a grid
// payload: not JSON, not decodable, or without a channels list.
var ErrMalformedPayload = errors.New("listings: malformed grid payload")

// StatusError is an unsuccessful upstream status other than 400.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("listings: %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Getter is the caching HTTP layer the client fetches through.
type Getter interface {
	Get(ctx context.Context, rawURL string, params url.Values, header http.Header) (*httpcache.Response, error)
}

// Params is the query template shared by every window request.
type Params struct {
	AffiliateID  string
	Country      string
	Device       string
	HeadendID    string
	IsOverride   bool
	LanguageCode string
	Pref         string
	PostalCode   string
	Timespan     int
	Timezone     string
	UserID       string
}

// ParamsFromSettings maps the listings settings onto the query template.
func ParamsFromSettings(s config.ListingsSettings) Params {
	return Params{
		AffiliateID:  s.AffiliateID,
		Country:      s.Country,
		Device:       s.Device,
		HeadendID:    s.HeadendID,
		IsOverride:   s.IsOverride,
		LanguageCode: s.LanguageCode,
		Pref:         s.Pref,
		PostalCode:   s.PostalCode,
		Timespan:     s.Timespan,
		Timezone:     s.Timezone,
		UserID:       s.UserID,
	}
}

// LineupID is the lineup identifier derived from country and headend.
func (p Params) LineupID() string {
	return fmt.Sprintf("%s-%s-DEFAULT", p.Country, p.HeadendID)
}

// Values builds the query for the window starting at the given epoch second.
// Each call returns a new map.
func (p Params) Values(at int64) url.Values {
	return url.Values{
		"aid":          {p.AffiliateID},
		"country":      {p.Country},
		"device":       {p.Device},
		"headendId":    {p.HeadendID},
		"isOverride":   {strconv.FormatBool(p.IsOverride)},
		"languagecode": {p.LanguageCode},
		"pref":         {p.Pref},
		"postalCode":   {p.PostalCode},
		"timespan":     {strconv.Itoa(p.Timespan)},
		"timezone":     {p.Timezone},
		"userId":       {p.UserID},
		"lineupId":     {p.LineupID()},
		"time":         {strconv.FormatInt(at, 10)},
	}
}

// Result is the outcome of one window fetch.
type Result struct {
	Payload models.GridResponse
	// Empty is set when upstream answered 400 and an empty payload was
	// substituted.
	Empty     bool
	FromCache bool
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client fetches grid windows through a Getter.
type Client struct {
	getter    Getter
	params    Params
	baseURL   string
	userAgent string
	log       *slog.Logger
}

func NewClient(getter Getter, params Params, opts ...Option) *Client {
	c := &Client{
		getter:    getter,
		params:    params,
		baseURL:   config.DefaultBaseURL,
		userAgent: config.DefaultUserAgent,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "listings")
	return c
}

// gridBody distinguishes a missing channels key from an empty list.
type gridBody struct {
	Channels *[]models.GridChannel `json:"channels"`
}

// Fetch requests the window starting at the given epoch second.
func (c *Client) Fetch(ctx context.Context, at int64) (*Result, error) {
	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", c.userAgent)

	resp, err := c.getter.Get(ctx, c.baseURL, c.params.Values(at), header)
	if err != nil {
		return nil, fmt.Errorf("fetch window %d: %w", at, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		c.log.Warn("upstream rejected window, using empty listings", "time", at, "status", resp.StatusCode)
		return &Result{
			Payload:   models.GridResponse{Channels: []models.GridChannel{}},
			Empty:     true,
			FromCache: resp.FromCache,
		}, nil
	case !resp.OK():
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: c.baseURL}
	}

	payload, err := decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("window %d: %w", at, err)
	}
	return &Result{Payload: payload, FromCache: resp.FromCache}, nil
}

func decode(body []byte) (models.GridResponse, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	if mt := mimetype.Detect(body); !isJSON(mt) {
		return models.GridResponse{}, fmt.Errorf("%w: got %s", ErrMalformedPayload, mt.String())
	}
	var raw gridBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.GridResponse{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.Channels == nil {
		return models.GridResponse{}, fmt.Errorf("%w: no channels list", ErrMalformedPayload)
	}
	return models.GridResponse{Channels: *raw.Channels}, nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

// isJSON also accepts JSON subtypes mimetype may report.
func isJSON(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/json") {
			return true
		}
	}
	return false
}
