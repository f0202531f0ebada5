package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nurpe/subcontract-billing/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidRole  = errors.New("invalid role claim")
)

// Claims is the access token payload issued by the identity service.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

// Parse validates an HMAC signed access token and returns its principal.
func (p *Parser) Parse(token string) (model.Principal, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Principal{}, ErrExpiredToken
		}
		return model.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return model.Principal{}, ErrInvalidToken
	}

	rawID := claims.UserID
	if rawID == "" {
		rawID = claims.Subject
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: user id", ErrInvalidToken)
	}

	role, err := parseRole(claims.Role)
	if err != nil {
		return model.Principal{}, err
	}

	return model.Principal{
		UserID: userID,
		Email:  strings.ToLower(strings.TrimSpace(claims.Email)),
		Role:   role,
	}, nil
}

func parseRole(raw string) (model.UserRole, error) {
	role := model.UserRole(strings.ToLower(strings.TrimSpace(raw)))
	switch role {
	case model.UserRoleContractor, model.UserRoleOrgMember, model.UserRoleSupport, model.UserRoleAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// Issue signs a token for principal. Used by tooling and tests; production
// tokens come from the identity service.
func (p *Parser) Issue(principal model.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: principal.UserID.String(),
		Email:  principal.Email,
		Role:   string(principal.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
