package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/nurpe/subcontract-billing/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubParser struct {
	principal model.Principal
	err       error
}

func (p stubParser) Parse(string) (model.Principal, error) {
	return p.principal, p.err
}

func TestAuth(t *testing.T) {
	principal := model.Principal{UserID: uuid.New(), Role: model.UserRoleContractor}

	newRouter := func(parser TokenParser) *gin.Engine {
		router := gin.New()
		router.Use(RequestLogger(zerolog.Nop()), Auth(parser))
		router.GET("/me", func(c *gin.Context) {
			got, ok := MustPrincipal(c)
			if !ok {
				c.Status(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, gin.H{"user_id": got.UserID.String()})
		})
		return router
	}

	cases := []struct {
		name   string
		header string
		parser stubParser
		status int
	}{
		{"valid token", "Bearer abc", stubParser{principal: principal}, http.StatusOK},
		{"missing header", "", stubParser{principal: principal}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubParser{principal: principal}, http.StatusUnauthorized},
		{"rejected token", "Bearer abc", stubParser{err: errors.New("expired")}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			newRouter(tc.parser).ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
			if tc.status == http.StatusOK {
				assert.Contains(t, rec.Body.String(), principal.UserID.String())
			} else {
				assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}
