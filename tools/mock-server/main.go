// Package main implements a mock eBay API server for local development.
// It answers the OAuth, identity, account, media, analytics and Trading
// endpoints the lister uses, so the whole flow runs without real eBay
// credentials. Point every url override of an environment at it.
package main

import (
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fizic37/delcampe-ebay/internal/ebay"
	"github.com/fizic37/delcampe-ebay/pkg/logger"
)

const (
	mockUserID   = "mockseller"
	mockUsername = "Mock Seller"
	// Listings whose title contains failTitle are rejected.
	failTitle = "FAIL"
)

// mockServer holds the state shared by the handlers.
type mockServer struct {
	log      *slog.Logger
	callback string
	baseURL  string
	nowFunc  func() time.Time

	tokens atomic.Int64
	items  atomic.Int64
	images atomic.Int64
}

func newMockServer(log *slog.Logger, callback, baseURL string) *mockServer {
	return &mockServer{
		log:      log,
		callback: callback,
		baseURL:  strings.TrimRight(baseURL, "/"),
		nowFunc:  time.Now,
	}
}

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	callback := flag.String("callback", "http://localhost:8080/oauth/callback", "URL the consent page redirects to")
	flag.Parse()

	log := logger.New("debug", "text")
	addr := fmt.Sprintf(":%d", *port)
	m := newMockServer(log, *callback, fmt.Sprintf("http://localhost:%d", *port))

	e := m.routes()
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 10 * time.Second

	log.Info("starting mock eBay server", "addr", addr)
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func (m *mockServer) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(m.requestLogger)

	e.GET("/oauth2/authorize", m.authorize)
	e.POST("/identity/v1/oauth2/token", m.token)
	e.GET("/commerce/identity/v1/user", m.user)
	e.GET("/sell/account/v1/:kind", m.policies)
	e.POST("/commerce/media/v1_beta/image/create_image_from_file", m.createImage)
	e.GET("/commerce/media/v1_beta/image/:id", m.getImage)
	e.GET("/developer/analytics/v1_beta/rate_limit/", m.rateLimits)
	e.POST("/ws/api.dll", m.trading)
	return e
}

func (m *mockServer) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		m.log.Debug("request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"call", c.Request().Header.Get("X-EBAY-API-CALL-NAME"),
		)
		return err
	}
}

// authorize skips the consent page and redirects straight back with a code.
func (m *mockServer) authorize(c echo.Context) error {
	q := url.Values{}
	q.Set("code", "mock-code-"+strconv.FormatInt(m.tokens.Add(1), 10))
	q.Set("state", c.QueryParam("state"))
	q.Set("expires_in", "299")
	return c.Redirect(http.StatusFound, m.callback+"?"+q.Encode())
}

func oauthError(c echo.Context, status int, code, desc string) error {
	return c.JSON(status, map[string]string{"error": code, "error_description": desc})
}

func (m *mockServer) token(c echo.Context) error {
	if _, _, ok := c.Request().BasicAuth(); !ok {
		m.log.Warn("token request missing Basic Auth header")
		return oauthError(c, http.StatusUnauthorized, "invalid_client", "client authentication failed")
	}

	n := m.tokens.Add(1)
	switch grant := c.FormValue("grant_type"); grant {
	case "authorization_code":
		if c.FormValue("code") == "" {
			return oauthError(c, http.StatusBadRequest, "invalid_request", "code is required")
		}
		return c.JSON(http.StatusOK, map[string]any{
			"access_token":             userToken(n),
			"expires_in":               7200,
			"refresh_token":            "mock-refresh-" + strconv.FormatInt(n, 10),
			"refresh_token_expires_in": 47304000,
			"token_type":               "User Access Token",
		})
	case "refresh_token":
		if !strings.HasPrefix(c.FormValue("refresh_token"), "mock-refresh-") {
			return oauthError(c, http.StatusBadRequest, "invalid_grant", "the provided authorization refresh token is invalid")
		}
		return c.JSON(http.StatusOK, map[string]any{
			"access_token": userToken(n),
			"expires_in":   7200,
			"token_type":   "User Access Token",
		})
	case "client_credentials":
		return c.JSON(http.StatusOK, map[string]any{
			"access_token": "mock-app-token-" + strconv.FormatInt(n, 10),
			"expires_in":   7200,
			"token_type":   "Application Access Token",
		})
	default:
		return oauthError(c, http.StatusBadRequest, "unsupported_grant_type", "grant type "+grant+" is not supported")
	}
}

// userToken is an unsigned JWT carrying the mock seller's identity claims.
func userToken(n int64) string {
	enc := base64.RawURLEncoding
	claims, _ := json.Marshal(map[string]any{ //nolint:errcheck // static map
		"sub":                mockUserID,
		"preferred_username": mockUsername,
		"jti":                n,
	})
	return enc.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`)) + "." +
		enc.EncodeToString(claims) + ".mock"
}

func bearer(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
}

func (m *mockServer) user(c echo.Context) error {
	if !bearer(c) {
		return c.NoContent(http.StatusUnauthorized)
	}
	return c.JSON(http.StatusOK, map[string]string{"userId": mockUserID, "username": mockUsername})
}

func (m *mockServer) policies(c echo.Context) error {
	if !bearer(c) {
		return c.NoContent(http.StatusUnauthorized)
	}
	kind := strings.TrimSuffix(c.Param("kind"), "_policy")
	switch kind {
	case "fulfillment", "payment", "return":
	default:
		return c.NoContent(http.StatusNotFound)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"total": 1,
		kind + "Policies": []map[string]string{
			{kind + "PolicyId": "mock-" + kind + "-1", "name": "Default " + kind},
		},
	})
}

func (m *mockServer) createImage(c echo.Context) error {
	if !bearer(c) {
		return c.NoContent(http.StatusUnauthorized)
	}
	if _, err := c.FormFile("image"); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "image part is required"})
	}
	id := "mock-image-" + strconv.FormatInt(m.images.Add(1), 10)
	c.Response().Header().Set(echo.HeaderLocation, m.baseURL+"/commerce/media/v1_beta/image/"+id)
	return c.NoContent(http.StatusCreated)
}

func (m *mockServer) getImage(c echo.Context) error {
	id := c.Param("id")
	return c.JSON(http.StatusOK, map[string]string{
		"imageId":        id,
		"imageUrl":       "https://i.ebayimg.com/images/g/" + id + "/s-l1600.jpg",
		"expirationDate": m.nowFunc().UTC().Add(90 * 24 * time.Hour).Format(time.RFC3339),
	})
}

func (m *mockServer) rateLimits(c echo.Context) error {
	reset := m.nowFunc().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return c.JSON(http.StatusOK, map[string]any{
		"rateLimits": []map[string]any{{
			"apiContext": ebay.TradingAPIContext,
			"apiName":    ebay.TradingAPIName,
			"apiVersion": "v1",
			"resources": []map[string]any{{
				"name": "TradingAPI",
				"rates": []map[string]any{{
					"count":      m.items.Load(),
					"limit":      5000,
					"remaining":  5000 - m.items.Load(),
					"reset":      reset.Format(time.RFC3339),
					"timeWindow": 86400,
				}},
			}},
		}},
	})
}

// tradingRequest holds the request fields the mock inspects.
type tradingRequest struct {
	Token string `xml:"RequesterCredentials>eBayAuthToken"`
	Title string `xml:"Item>Title"`
}

func (m *mockServer) trading(c echo.Context) error {
	call := c.Request().Header.Get("X-EBAY-API-CALL-NAME")
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	var req tradingRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	ts := m.nowFunc().UTC().Format("2006-01-02T15:04:05.000Z")
	if req.Token == "" {
		return tradingXML(c, call, ts, failure("931", "Auth token is invalid."))
	}

	switch call {
	case ebay.CallAddFixedPriceItem, ebay.CallVerifyAddFixedPriceItem:
		if strings.Contains(req.Title, failTitle) {
			return tradingXML(c, call, ts, failure("21919303", "The item specific Country/Region of Manufacture is missing."))
		}
		itemID := "0"
		if call == ebay.CallAddFixedPriceItem {
			itemID = strconv.FormatInt(110553394320+m.items.Add(1), 10)
		}
		return tradingXML(c, call, ts, "<Ack>Success</Ack><ItemID>"+itemID+"</ItemID>")
	case ebay.CallUploadPicture:
		n := m.images.Add(1)
		return tradingXML(c, call, ts,
			"<Ack>Success</Ack><SiteHostedPictureDetails><FullURL>https://i.ebayimg.com/00/s/mock-"+
				strconv.FormatInt(n, 10)+"/$_1.JPG</FullURL></SiteHostedPictureDetails>")
	default:
		return tradingXML(c, call, ts, failure("2", "Unsupported API call."))
	}
}

func failure(code, msg string) string {
	var b strings.Builder
	b.WriteString("<Ack>Failure</Ack><Errors><ErrorCode>")
	xml.EscapeText(&b, []byte(code)) //nolint:errcheck,gosec // strings.Builder never fails
	b.WriteString("</ErrorCode><SeverityCode>Error</SeverityCode><ShortMessage>")
	xml.EscapeText(&b, []byte(msg)) //nolint:errcheck,gosec // strings.Builder never fails
	b.WriteString("</ShortMessage><LongMessage>")
	xml.EscapeText(&b, []byte(msg)) //nolint:errcheck,gosec // strings.Builder never fails
	b.WriteString("</LongMessage></Errors>")
	return b.String()
}

func tradingXML(c echo.Context, call, ts, inner string) error {
	doc := xml.Header + `<` + call + `Response xmlns="` + ebay.TradingNamespace + `"><Timestamp>` + ts + `</Timestamp>` +
		inner + `<Version>1349</Version></` + call + `Response>`
	return c.Blob(http.StatusOK, "text/xml; charset=utf-8", []byte(doc))
}
