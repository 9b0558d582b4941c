package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestAdminAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-key-123"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name       string
		hash       string
		header     string
		wantStatus int
	}{
		{"valid key", string(hash), "Bearer admin-key-123", http.StatusOK},
		{"lower case scheme", string(hash), "bearer admin-key-123", http.StatusOK},
		{"wrong key", string(hash), "Bearer nope", http.StatusUnauthorized},
		{"missing header", string(hash), "", http.StatusUnauthorized},
		{"basic scheme", string(hash), "Basic YWRtaW4=", http.StatusUnauthorized},
		{"empty bearer", string(hash), "Bearer   ", http.StatusUnauthorized},
		{"disabled", "", "Bearer admin-key-123", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(AdminAuth(tt.hash, zap.NewNop()))
			router.GET("/admin", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"ok": true})
			})

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
