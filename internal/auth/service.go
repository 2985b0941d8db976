package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-b2b-orders/internal/accounts"
	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/obs"
)

const (
	defaultAccessTTL = 24 * time.Hour
	claimRole        = "role"
	claimEmail       = "email"
)

// AccountFinder looks accounts up across every kind.
type AccountFinder interface {
	FindByEmail(ctx context.Context, email string) (accounts.Account, error)
	FindByID(ctx context.Context, id int64) (accounts.Account, error)
}

// PasswordChecker verifies a password against a stored hash.
type PasswordChecker interface {
	Compare(password, hash string) bool
}

// Service issues and verifies access tokens.
type Service struct {
	accounts  AccountFinder
	passwords PasswordChecker
	validate  *common.Validator
	logger    zerolog.Logger
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
	validator TokenValidator
	issuer    string
	audience  string
	clockSkew time.Duration
}

// Config configures the auth service.
type Config struct {
	Accounts       AccountFinder
	Passwords      PasswordChecker
	Validator      *common.Validator
	Logger         zerolog.Logger
	Secret         string
	AccessTokenTTL time.Duration
	Issuer         string
	Audience       string
	ClockSkew      time.Duration
}

// User is the identity returned to clients after login.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResult bundles the issued token with the identity it was issued for.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Accounts == nil {
		return nil, errors.New("auth: accounts is required")
	}
	if cfg.Passwords == nil {
		cfg.Passwords = accounts.Hasher{}
	}
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
		issuer = "backend-b2b-orders"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "b2b-clients"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		accounts:  cfg.Accounts,
		passwords: cfg.Passwords,
		validate:  cfg.Validator,
		logger:    cfg.Logger,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
		signer:    jwa.HS256,
		validator: TokenValidator{
			Issuer:         issuer,
			Audience:       audience,
			ClockSkew:      clockSkew,
			Algorithm:      jwa.HS256,
			RequiredClaims: []string{claimRole},
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Login checks credentials against every account kind in a single lookup and issues a token
// carrying the account's role.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		obs.IncCounter(obs.LoginAttemptsTotal, "invalid")
		return LoginResult{}, err
	}

	acc, err := s.accounts.FindByEmail(ctx, in.Email)
	if err != nil {
		if !errors.Is(err, accounts.ErrNotFound) {
			s.logger.Error().Err(err).Msg("login lookup failed")
			return LoginResult{}, common.Internal(err)
		}
		obs.IncCounter(obs.LoginAttemptsTotal, "rejected")
		return LoginResult{}, invalidCredentials()
	}
	if !s.passwords.Compare(in.Password, acc.PasswordHash) {
		obs.IncCounter(obs.LoginAttemptsTotal, "rejected")
		return LoginResult{}, invalidCredentials()
	}

	token, expiry, err := s.IssueToken(acc)
	if err != nil {
		s.logger.Error().Err(err).Int64("account_id", acc.ID).Msg("sign access token failed")
		return LoginResult{}, common.Internal(err)
	}
	obs.IncCounter(obs.LoginAttemptsTotal, "success")
	return LoginResult{
		Token:     token,
		ExpiresAt: expiry,
		User:      User{ID: acc.ID, Email: acc.Email, Role: acc.Kind},
	}, nil
}

// Me returns the account behind an authenticated principal.
func (s *Service) Me(ctx context.Context, p common.Principal) (User, error) {
	acc, err := s.accounts.FindByID(ctx, p.AccountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return User{}, common.NewAppError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized, err)
		}
		s.logger.Error().Err(err).Msg("load current account failed")
		return User{}, common.Internal(err)
	}
	return User{ID: acc.ID, Email: acc.Email, Role: acc.Kind}, nil
}

// IssueToken signs an access token for acc.
func (s *Service) IssueToken(acc accounts.Account) (string, time.Time, error) {
	now := s.now()
	expiry := now.Add(s.accessTTL)
	tok, err := jwt.NewBuilder().
		Subject(strconv.FormatInt(acc.ID, 10)).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiry).
		Claim(claimRole, acc.Kind).
		Claim(claimEmail, acc.Email).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return string(signed), expiry, nil
}

// ParseAccessToken validates an access token and returns the principal it identifies.
func (s *Service) ParseAccessToken(token string) (common.Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Principal{}, unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return common.Principal{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}

	id, err := strconv.ParseInt(parsed.Subject(), 10, 64)
	if err != nil || id <= 0 {
		return common.Principal{}, unauthorized("invalid token", errors.New("auth: malformed subject"))
	}
	role, _ := stringClaim(parsed, claimRole)
	if role == "" {
		return common.Principal{}, unauthorized("invalid token", errors.New("auth: token missing role"))
	}
	email, _ := stringClaim(parsed, claimEmail)
	return common.Principal{AccountID: id, Email: email, Role: role}, nil
}

func stringClaim(tok jwt.Token, name string) (string, bool) {
	v, ok := tok.Get(name)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}

func invalidCredentials() error {
	return common.NewAppError("INVALID_CREDENTIALS", "invalid credentials", http.StatusUnauthorized, nil)
}

func unauthorized(msg string, err error) error {
	return common.NewAppError("UNAUTHORIZED", msg, http.StatusUnauthorized, err)
}
