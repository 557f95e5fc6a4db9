package ebay

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fizic37/delcampe-ebay/internal/metrics"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

const (
	defaultSiteID             = "0"
	defaultCompatLevel        = "1349"
	defaultCurrency           = "USD"
	defaultListingDuration    = "GTC"
	defaultPictureSet         = "Supersize"
	maxTradingResponseBytes   = 4 << 20
	tradingContentType        = "text/xml"
	headerSiteID              = "X-EBAY-API-SITEID"
	headerCompatibilityLevel  = "X-EBAY-API-COMPATIBILITY-LEVEL"
	headerCallName            = "X-EBAY-API-CALL-NAME"
	headerMarketplaceID       = "X-EBAY-C-MARKETPLACE-ID"
	tradingUploadNameMaxRunes = 80
)

// TradingClient implements TradingAPI against the XML Trading API.
type TradingClient struct {
	tokens      TokenProvider
	url         string
	siteID      string
	compatLevel string
	defaults    itemDefaults
	client      *http.Client
	rateLimiter *RateLimiter
	validate    *validator.Validate
	log         *slog.Logger
}

// TradingOption configures the TradingClient.
type TradingOption func(*TradingClient)

// WithTradingHTTPClient overrides the default HTTP client.
func WithTradingHTTPClient(hc *http.Client) TradingOption {
	return func(c *TradingClient) {
		c.client = hc
	}
}

// WithSiteID sets the numeric eBay site, 0 for eBay US.
func WithSiteID(id string) TradingOption {
	return func(c *TradingClient) {
		c.siteID = id
	}
}

// WithCompatibilityLevel sets the Trading API schema version.
func WithCompatibilityLevel(level string) TradingOption {
	return func(c *TradingClient) {
		c.compatLevel = level
	}
}

// WithDefaultCurrency sets the currency of requests that name none.
func WithDefaultCurrency(cur string) TradingOption {
	return func(c *TradingClient) {
		c.defaults.Currency = cur
	}
}

// WithDefaultListingDuration sets the duration of requests that name none.
func WithDefaultListingDuration(d string) TradingOption {
	return func(c *TradingClient) {
		c.defaults.ListingDuration = d
	}
}

// WithTradingRateLimiter makes every call wait on r first.
func WithTradingRateLimiter(r *RateLimiter) TradingOption {
	return func(c *TradingClient) {
		c.rateLimiter = r
	}
}

// WithTradingLogger sets the logger.
func WithTradingLogger(l *slog.Logger) TradingOption {
	return func(c *TradingClient) {
		c.log = l
	}
}

// NewTradingClient creates a Trading API client posting to url. The access
// token is fetched from tokens right before each call.
func NewTradingClient(url string, tokens TokenProvider, opts ...TradingOption) *TradingClient {
	c := &TradingClient{
		tokens:      tokens,
		url:         url,
		siteID:      defaultSiteID,
		compatLevel: defaultCompatLevel,
		defaults: itemDefaults{
			Currency:        defaultCurrency,
			ListingDuration: defaultListingDuration,
		},
		client:   NewHTTPClient(0),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddFixedPriceItem lists an item. On success the result carries the new
// item id.
func (c *TradingClient) AddFixedPriceItem(
	ctx context.Context,
	req domain.ListingRequest,
) (*domain.ProtocolResult, error) {
	return c.submitItem(ctx, CallAddFixedPriceItem, req)
}

// VerifyAddFixedPriceItem validates an item without listing it.
func (c *TradingClient) VerifyAddFixedPriceItem(
	ctx context.Context,
	req domain.ListingRequest,
) (*domain.ProtocolResult, error) {
	return c.submitItem(ctx, CallVerifyAddFixedPriceItem, req)
}

// UploadImage uploads an image to eBay Picture Services and returns its
// hosted URL.
func (c *TradingClient) UploadImage(
	ctx context.Context,
	filename string,
	data []byte,
) (*domain.ProtocolResult, error) {
	if err := checkImage(filename, data); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting auth token: %w", err)
	}

	body, err := marshalRequest(uploadPictureRequest{
		XMLName:              requestName(CallUploadPicture),
		RequesterCredentials: requesterCredentials{EBayAuthToken: token},
		PictureName:          pictureName(filename),
		PictureSet:           defaultPictureSet,
		PictureData:          base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", CallUploadPicture, err)
	}

	res, root, err := c.call(ctx, CallUploadPicture, body)
	if err != nil {
		return res, err
	}
	res.ImageURL = root.FindText("FullURL")
	if res.ImageURL == "" {
		return res, &ProtocolError{Op: CallUploadPicture, Err: errors.New("response has no FullURL")}
	}
	return res, nil
}

func (c *TradingClient) submitItem(
	ctx context.Context,
	call string,
	req domain.ListingRequest,
) (*domain.ProtocolResult, error) {
	if err := c.validateListing(req); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting auth token: %w", err)
	}

	body, err := marshalRequest(buildItemRequest(call, token, req, c.defaults))
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", call, err)
	}

	res, root, err := c.call(ctx, call, body)
	if err != nil {
		return res, err
	}
	res.ItemID = root.FindText("ItemID")
	res.Fees = listingFees(root)
	if call == CallAddFixedPriceItem && res.ItemID == "" {
		return res, &ProtocolError{Op: call, Err: errors.New("response has no ItemID")}
	}
	return res, nil
}

// call posts body and classifies the response. Business failures return
// the parsed result together with an *APIError.
func (c *TradingClient) call(
	ctx context.Context,
	call string,
	body []byte,
) (*domain.ProtocolResult, *xmlNode, error) {
	if err := c.rateLimiter.wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	defer func() {
		metrics.TradingCallDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set(headerSiteID, c.siteID)
	httpReq.Header.Set(headerCompatibilityLevel, c.compatLevel)
	httpReq.Header.Set(headerCallName, call)
	httpReq.Header.Set("Content-Type", tradingContentType)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.TradingCallsTotal.WithLabelValues(call, "transport_error").Inc()
		return nil, nil, &TransportError{Op: call, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxTradingResponseBytes))
	if err != nil {
		metrics.TradingCallsTotal.WithLabelValues(call, "transport_error").Inc()
		return nil, nil, &TransportError{Op: call, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.TradingCallsTotal.WithLabelValues(call, "transport_error").Inc()
		return nil, nil, &TransportError{
			Op:         call,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	res, root, err := parseTradingResponse(call, respBody)
	if res == nil {
		metrics.TradingCallsTotal.WithLabelValues(call, "protocol_error").Inc()
		c.log.Warn("unparseable trading response", "call", call, "error", err)
		return nil, nil, err
	}
	metrics.TradingCallsTotal.WithLabelValues(call, ackLabel(res.Ack)).Inc()

	if err != nil {
		if len(res.Errors) == 0 {
			c.log.Warn("trading call failed without error details", "call", call, "ack", res.Ack)
		} else {
			c.log.Info("trading call failed", "call", call, "ack", res.Ack, "message", res.Message)
		}
		return res, root, err
	}
	if len(res.Warnings) > 0 {
		c.log.Info("trading call succeeded with warnings", "call", call, "warnings", len(res.Warnings))
	}
	return res, root, nil
}

func (c *TradingClient) validateListing(req domain.ListingRequest) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Err: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldMessage(fe))
	}
	return &ValidationError{Fields: fields, Err: err}
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		if fe.Kind().String() == "slice" {
			return fmt.Sprintf("%s needs at least %s entries", name, fe.Param())
		}
	case "max":
		return fmt.Sprintf("%s exceeds %s characters", name, fe.Param())
	case "url":
		return fmt.Sprintf("%s has an invalid URL %q", name, fe.Value())
	}
	return fmt.Sprintf("%s fails %s", name, fe.Tag())
}

func ackLabel(ack string) string {
	switch ack {
	case AckSuccess, AckWarning, AckFailure, "PartialFailure":
		return ack
	case "":
		return "missing"
	default:
		return "other"
	}
}

// supportedImageExts are the file types eBay picture hosting accepts.
var supportedImageExts = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".heic": "image/heic",
	".avif": "image/avif",
}

// imageContentType returns the content type of filename, or false when
// its extension is not accepted.
func imageContentType(filename string) (string, bool) {
	ct, ok := supportedImageExts[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}

func checkImage(filename string, data []byte) error {
	if _, ok := imageContentType(filename); !ok {
		return &ValidationError{
			Fields: []string{fmt.Sprintf("%q is not a supported image file", filename)},
			Err:    ErrUnsupportedImage,
		}
	}
	if len(data) == 0 {
		return &ValidationError{Fields: []string{"image data is empty"}}
	}
	return nil
}

// pictureName is the file's base name without extension, as eBay shows it.
func pictureName(filename string) string {
	base := filepath.Base(filename)
	name := []rune(strings.TrimSuffix(base, filepath.Ext(base)))
	if len(name) > tradingUploadNameMaxRunes {
		name = name[:tradingUploadNameMaxRunes]
	}
	return string(name)
}
