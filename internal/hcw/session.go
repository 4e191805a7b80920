// Package hcw talks to the hcw@home backend: login, token caching and the invite (Appointment) API.
package hcw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/fhir"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/models"
	"github.com/ozone-his/eip-hcwathome-openmrs/internal/syncerr"
	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/metrics"
)

const (
	apiPath   = "/api/v1"
	loginPath = apiPath + "/login-local"
	fhirPath  = apiPath + "/fhir"

	// TokenHeader carries the access token on every call
	TokenHeader = "x-access-token"

	// RefreshSkew renews the token before the server considers it expired
	RefreshSkew = 30 * time.Second
)

// Session owns the process-wide hcw@home token and the lazily built FHIR client
type Session struct {
	baseURL  string
	email    string
	password string
	http     *http.Client
	logger   *slog.Logger
	now      func() time.Time

	token atomic.Pointer[models.AuthToken]
	mu    sync.Mutex

	clientOnce sync.Once
	client     *fhir.Client
}

func NewSession(baseURL, email, password string, httpClient *http.Client, logger *slog.Logger) *Session {
	return &Session{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		http:     httpClient,
		logger:   logger.With("component", "hcw_session"),
		now:      time.Now,
	}
}

// Client returns the authenticated FHIR client, building it on first use
func (s *Session) Client() *fhir.Client {
	s.clientOnce.Do(func() {
		base := s.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		authed := &http.Client{
			Transport: &authTransport{session: s, base: base},
			Timeout:   s.http.Timeout,
		}
		s.client = fhir.NewClient(s.baseURL+fhirPath, "hcw", authed, s.logger,
			fhir.WithResponseRewriter(NormalizeAppointmentStatus))
	})
	return s.client
}

// Token returns a valid access token, logging in when none is cached or the cached one is due for refresh
// Concurrent callers share a single login
func (s *Session) Token(ctx context.Context) (string, error) {
	if t := s.token.Load(); !t.IsExpired(s.now()) {
		return t.AccessToken, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.token.Load()
	if !current.IsExpired(s.now()) {
		return current.AccessToken, nil
	}
	if current != nil {
		s.logger.Debug("Auth token is expired")
	}

	fresh, err := s.login(ctx)
	if err != nil {
		return "", err
	}
	s.token.Store(fresh)

	return fresh.AccessToken, nil
}

type loginResponse struct {
	User struct {
		Token string `json:"token"`
	} `json:"user"`
}

func (s *Session) login(ctx context.Context) (tok *models.AuthToken, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.Logins.WithLabelValues(status).Inc()
	}()

	s.logger.Debug("Authenticating with hcw@home")

	payload, err := json.Marshal(map[string]string{"email": s.email, "password": s.password})
	if err != nil {
		return nil, &syncerr.AuthenticationError{Message: "failed to encode credentials", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+loginPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &syncerr.AuthenticationError{Message: "failed to build login request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &syncerr.AuthenticationError{Message: "login call failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &syncerr.AuthenticationError{StatusCode: resp.StatusCode, Message: "failed to read login response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = "authentication error"
		}
		return nil, &syncerr.AuthenticationError{StatusCode: resp.StatusCode, Message: msg}
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, &syncerr.AuthenticationError{StatusCode: resp.StatusCode, Message: "malformed login response", Err: err}
	}
	if lr.User.Token == "" {
		return nil, &syncerr.AuthenticationError{StatusCode: resp.StatusCode, Message: "login response carries no token"}
	}

	exp, err := TokenExpiry(lr.User.Token)
	if err != nil {
		return nil, &syncerr.AuthenticationError{StatusCode: resp.StatusCode, Message: "malformed token", Err: err}
	}

	refreshAt := exp.Add(-RefreshSkew)
	s.logger.Info("Authenticated with hcw@home", "token_refresh_at", refreshAt)

	return &models.AuthToken{AccessToken: lr.User.Token, ExpiresAt: refreshAt}, nil
}

// TokenExpiry reads the exp claim without verifying the signature
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse JWT: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return exp.Time, nil
}

type authTransport struct {
	session *Session
	base    http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.session.Token(req.Context())
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}

	r := req.Clone(req.Context())
	r.Header.Set(TokenHeader, token)
	return t.base.RoundTrip(r)
}
