package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/termfx/pforge/core"
)

// maxResponseBodyBytes bounds how much of an upstream body is read.
const maxResponseBodyBytes = 1 << 20

// AuthType selects how outbound requests authenticate.
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthAPIKey AuthType = "api_key"
	AuthJWT    AuthType = "jwt"
)

// HTTPAuth carries the credentials for one auth mode. The jwt mode mints a
// short-lived HS256 bearer token per request from Secret.
type HTTPAuth struct {
	Type     AuthType `json:"type"`
	Token    string   `json:"token,omitempty"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	// Header names the API-key header; defaults to X-API-Key.
	Header string        `json:"header,omitempty"`
	Key    string        `json:"key,omitempty"`
	Secret string        `json:"secret,omitempty"`
	Issuer string        `json:"issuer,omitempty"`
	TTL    time.Duration `json:"ttl,omitempty"`
}

// HTTPConfig describes an outbound HTTP tool.
type HTTPConfig struct {
	// Endpoint may contain {field} placeholders interpolated from input.
	Endpoint string
	Method   string
	Auth     *HTTPAuth
	Headers  map[string]string
	Timeout  time.Duration

	Description string
	Schema      map[string]any
}

// defaultHTTPClient is shared across HTTP handler instances so connections
// are pooled per host.
var defaultHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

type httpHandler struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
	schema map[string]any
}

// HTTPOption customizes an HTTP handler.
type HTTPOption func(*httpHandler)

// WithHTTPClient substitutes the shared pooled client, mainly for tests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *httpHandler) { h.client = client }
}

// WithHTTPLogger attaches a structured logger for request logging. Headers
// are redacted before they reach the log.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(h *httpHandler) { h.logger = logger }
}

// NewHTTP creates a handler that issues one request per call against the
// configured endpoint.
func NewHTTP(cfg HTTPConfig, opts ...HTTPOption) (core.Handler, error) {
	if cfg.Endpoint == "" {
		return nil, core.Errorf(core.KindConfig, "http tool requires an endpoint")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	cfg.Method = strings.ToUpper(cfg.Method)

	h := &httpHandler{cfg: cfg, client: defaultHTTPClient, schema: core.NormalizeSchema(cfg.Schema)}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *httpHandler) Dispatch(ctx context.Context, input []byte) ([]byte, error) {
	fields, err := decodeInputObject(input)
	if err != nil {
		return nil, err
	}

	endpoint, err := h.renderEndpoint(fields)
	if err != nil {
		return nil, err
	}

	reqCtx := ctx
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, h.cfg.Timeout)
		defer cancel()
	}

	var body io.Reader
	if methodHasBody(h.cfg.Method) && len(input) > 0 {
		body = bytes.NewReader(input)
	}

	req, err := http.NewRequestWithContext(reqCtx, h.cfg.Method, endpoint, body)
	if err != nil {
		return nil, core.Wrap(core.KindConfig, "build http request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range h.cfg.Headers {
		req.Header.Set(key, value)
	}
	if err := h.applyAuth(req); err != nil {
		return nil, err
	}

	if h.logger != nil {
		h.logger.Debug("http dispatch",
			"method", h.cfg.Method,
			"url", endpoint,
			"headers", redactHeaders(req.Header),
		)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, core.Errorf(core.KindTimeout, "request to %s timed out after %s", endpoint, h.cfg.Timeout)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, core.Errorf(core.KindTimeout, "request to %s timed out", endpoint)
		}
		return nil, core.FromIO(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, core.FromIO(err)
	}

	if resp.StatusCode >= 400 {
		return nil, core.Errorf(core.KindHandler, "upstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "json") && json.Valid(bytes.TrimSpace(respBody)) {
		return bytes.TrimSpace(respBody), nil
	}
	wrapped, _ := json.Marshal(map[string]string{"body": string(respBody)})
	return wrapped, nil
}

// renderEndpoint interpolates {field} placeholders with URL escaping.
func (h *httpHandler) renderEndpoint(fields map[string]any) (string, error) {
	escaped := make(map[string]any, len(fields))
	for key, value := range fields {
		if s, ok := value.(string); ok {
			escaped[key] = url.PathEscape(s)
		} else {
			escaped[key] = value
		}
	}
	return renderTemplate(h.cfg.Endpoint, escaped)
}

func (h *httpHandler) applyAuth(req *http.Request) error {
	auth := h.cfg.Auth
	if auth == nil {
		return nil
	}
	switch auth.Type {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case AuthBasic:
		req.SetBasicAuth(auth.Username, auth.Password)
	case AuthAPIKey:
		header := auth.Header
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, auth.Key)
	case AuthJWT:
		token, err := h.mintJWT(auth)
		if err != nil {
			return core.Wrap(core.KindConfig, "mint jwt", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	default:
		return core.Errorf(core.KindConfig, "unknown auth type %q", auth.Type)
	}
	return nil
}

// mintJWT signs a short-lived HS256 token for the upstream.
func (h *httpHandler) mintJWT(auth *HTTPAuth) (string, error) {
	ttl := auth.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if auth.Issuer != "" {
		claims["iss"] = auth.Issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(auth.Secret))
}

func (h *httpHandler) Schema() map[string]any {
	return h.schema
}

func (h *httpHandler) Description() string {
	return h.cfg.Description
}

func methodHasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// redactHeaders masks credential-bearing headers before logging.
func redactHeaders(headers http.Header) map[string]string {
	redacted := make(map[string]string, len(headers))
	for key := range headers {
		switch http.CanonicalHeaderKey(key) {
		case "Authorization", "Proxy-Authorization", "X-Api-Key", "Cookie":
			redacted[key] = "[REDACTED]"
		default:
			redacted[key] = headers.Get(key)
		}
	}
	return redacted
}
