package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-freight/internal/common"
)

const defaultAccessTTL = 8 * time.Hour

// Service issues and validates access tokens for the console operator.
type Service struct {
	secret        []byte
	accessTTL     time.Duration
	now           func() time.Time
	signer        jwa.SignatureAlgorithm
	policy        consolePolicy
	adminEmail    string
	adminPassHash string
}

// Config configures the auth service.
type Config struct {
	Secret            string
	AccessTokenTTL    time.Duration
	Issuer            string
	Audience          string
	ClockSkew         time.Duration
	AdminEmail        string
	AdminPasswordHash string
}

// LoginResult bundles token material returned after a successful login.
type LoginResult struct {
	Subject      string    `json:"subject"`
	AccessToken  string    `json:"access_token"`
	AccessExpiry time.Time `json:"access_token_expires_at"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-freight"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "freight-console"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	adminEmail := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	return &Service{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
		signer:    jwa.HS256,
		policy: consolePolicy{
			issuer:    issuer,
			audience:  audience,
			operator:  adminEmail,
			clockSkew: clockSkew,
			algorithm: jwa.HS256,
		},
		adminEmail:    adminEmail,
		adminPassHash: strings.TrimSpace(cfg.AdminPasswordHash),
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Login verifies the operator credentials and issues an access token.
func (s *Service) Login(_ context.Context, email, password string) (LoginResult, error) {
	invalid := common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, nil)

	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" || password == "" {
		return LoginResult{}, invalid
	}
	if s.adminEmail == "" || s.adminPassHash == "" || normalizedEmail != s.adminEmail {
		return LoginResult{}, invalid
	}
	ok, err := argon2id.ComparePasswordAndHash(password, s.adminPassHash)
	if err != nil || !ok {
		return LoginResult{}, invalid
	}

	token, expiry, err := s.signAccessToken(normalizedEmail)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign access token: %w", err)
	}
	return LoginResult{Subject: normalizedEmail, AccessToken: token, AccessExpiry: expiry}, nil
}

// ParseAccessToken validates an access token and returns its subject.
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if algorithm != s.policy.algorithm {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	subject, err := s.policy.check(parsed, algorithm, s.now())
	if err != nil {
		return "", common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	return subject, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		switch {
		case alg == "":
			return "", errors.New("auth: token missing algorithm")
		case alg == jwa.NoSignature:
			return "", errors.New("auth: token uses none algorithm")
		case algorithm == "":
			algorithm = alg
		case algorithm != alg:
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func (s *Service) signAccessToken(subject string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.policy.issuer).
		Audience([]string{s.policy.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.policy.clockSkew)).
		Expiration(expiresAt).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}
