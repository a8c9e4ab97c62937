package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/backoffice/backend-go/internal/config"
	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingRole  = errors.New("missing role in claims")
	ErrNoSecret     = errors.New("jwt secret is not configured")

	// ErrMissingBranch rejects branch admins without a branch, whose reports
	// would otherwise cover every branch.
	ErrMissingBranch = errors.New("branch admin without branch in claims")
)

// Claims are the bearer token claims understood by the API.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	BranchID string `json:"branch_id,omitempty"`
}

// Principal converts the claims into the request principal.
func (c *Claims) Principal() domain.Principal {
	return domain.Principal{
		UserID:   c.UserID,
		Username: c.Username,
		Role:     c.Role,
		BranchID: c.BranchID,
	}
}

// TokenService issues and validates HS256 access tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(cfg config.AuthConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, ErrNoSecret
	}
	return &TokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL(),
		now:    time.Now,
	}, nil
}

// Issue signs a token for the given principal.
func (s *TokenService) Issue(p domain.Principal) (string, error) {
	if err := checkPrincipal(p.Role, p.BranchID); err != nil {
		return "", err
	}

	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:   p.UserID,
		Username: p.Username,
		Role:     p.Role,
		BranchID: p.BranchID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if err := checkPrincipal(claims.Role, claims.BranchID); err != nil {
		return nil, err
	}

	return claims, nil
}

func checkPrincipal(role, branchID string) error {
	switch {
	case role == "":
		return ErrMissingRole
	case role == domain.RoleBranchAdmin && strings.TrimSpace(branchID) == "":
		return ErrMissingBranch
	}
	return nil
}
