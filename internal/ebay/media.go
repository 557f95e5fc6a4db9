package ebay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fizic37/delcampe-ebay/internal/metrics"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

type mediaImageResponse struct {
	ImageID        string `json:"imageId"`
	ImageURL       string `json:"imageUrl"`
	ExpirationDate string `json:"expirationDate"`
}

// MediaClient uploads images through the Commerce Media API. It implements
// ImageUploader.
type MediaClient struct {
	tokens      TokenProvider
	baseURL     string
	client      *resty.Client
	rateLimiter *RateLimiter
	log         *slog.Logger
}

// MediaOption configures the MediaClient.
type MediaOption func(*MediaClient)

// WithMediaRateLimiter makes every upload wait on r first.
func WithMediaRateLimiter(r *RateLimiter) MediaOption {
	return func(c *MediaClient) {
		c.rateLimiter = r
	}
}

// WithMediaLogger sets the logger.
func WithMediaLogger(l *slog.Logger) MediaOption {
	return func(c *MediaClient) {
		c.log = l
	}
}

// NewMediaClient creates a client for the image resources rooted at
// baseURL.
func NewMediaClient(baseURL string, tokens TokenProvider, hc *http.Client, opts ...MediaOption) *MediaClient {
	if hc == nil {
		hc = NewHTTPClient(0)
	}
	c := &MediaClient{
		tokens:  tokens,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  resty.NewWithClient(hc),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload creates a hosted image from data and resolves its public URL and
// expiry. Unsupported file types are rejected before any request is made.
func (c *MediaClient) Upload(ctx context.Context, filename string, data []byte) (*domain.ProtocolResult, error) {
	if err := checkImage(filename, data); err != nil {
		return nil, err
	}

	res, err := c.upload(ctx, filename, data)
	if err != nil {
		metrics.MediaUploadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.MediaUploadsTotal.WithLabelValues("success").Inc()
	return res, nil
}

func (c *MediaClient) upload(ctx context.Context, filename string, data []byte) (*domain.ProtocolResult, error) {
	if err := c.rateLimiter.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting auth token: %w", err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetFileReader("image", path.Base(filename), bytes.NewReader(data)).
		Post(c.baseURL + "/create_image_from_file")
	if err != nil {
		return nil, &TransportError{Op: "create image", Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{
			Op:         "create image",
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	}

	id, err := imageIDFromLocation(resp.Header().Get("Location"))
	if err != nil {
		return nil, &ProtocolError{Op: "create image", Err: err}
	}

	var img mediaImageResponse
	resp, err = c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		ForceContentType("application/json").
		SetResult(&img).
		Get(c.baseURL + "/" + url.PathEscape(id))
	if err != nil {
		return nil, &TransportError{Op: "get image", Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{
			Op:         "get image",
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	}
	if img.ImageURL == "" {
		return nil, &ProtocolError{Op: "get image", Err: errors.New("response has no imageUrl")}
	}

	res := &domain.ProtocolResult{Success: true, ImageURL: img.ImageURL}
	if img.ExpirationDate != "" {
		exp, err := time.Parse(time.RFC3339, img.ExpirationDate)
		if err != nil {
			c.log.Warn("unparseable image expiration", "image_id", id, "value", img.ExpirationDate)
		} else {
			exp = exp.UTC()
			res.ImageExpiresAt = &exp
		}
	}
	c.log.Debug("image uploaded", "image_id", id, "url", img.ImageURL)
	return res, nil
}

// imageIDFromLocation returns the last path segment of a Location header.
func imageIDFromLocation(loc string) (string, error) {
	if loc == "" {
		return "", errors.New("response has no Location header")
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", fmt.Errorf("parsing Location %q: %w", loc, err)
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "" || id == "." || id == "/" {
		return "", fmt.Errorf("no image id in Location %q", loc)
	}
	return id, nil
}
