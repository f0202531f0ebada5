package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/subcontract-billing/internal/model"
)

const testSecret = "test-secret-key-at-least-32-chars"

func TestParseRoundTrip(t *testing.T) {
	parser := NewParser(testSecret)
	principal := model.Principal{UserID: uuid.New(), Email: "sato@contractor.test", Role: model.UserRoleContractor}

	token, err := parser.Issue(principal, time.Minute)
	require.NoError(t, err)

	got, err := parser.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, principal, got)
}

func TestParseRejects(t *testing.T) {
	parser := NewParser(testSecret)
	principal := model.Principal{UserID: uuid.New(), Email: "ops@platform.test", Role: model.UserRoleAdmin}

	t.Run("expired", func(t *testing.T) {
		token, err := parser.Issue(principal, -time.Minute)
		require.NoError(t, err)
		_, err = parser.Parse(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := NewParser("another-secret-key-of-32-chars!!").Issue(principal, time.Minute)
		require.NoError(t, err)
		_, err = parser.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			UserID: uuid.NewString(),
			Role:   "superuser",
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = parser.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("subject fallback", func(t *testing.T) {
		id := uuid.New()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: id.String()},
			Role:             "org_member",
		}).SignedString([]byte(testSecret))
		require.NoError(t, err)
		got, err := parser.Parse(token)
		require.NoError(t, err)
		assert.Equal(t, id, got.UserID)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parser.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
