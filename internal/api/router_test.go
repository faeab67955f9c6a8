package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shiplink/fleet-coordination/internal/auth"
	"github.com/shiplink/fleet-coordination/internal/db"
	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/models"
	"github.com/shiplink/fleet-coordination/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The collection interfaces stay nil: these tests only exercise routing and
// the auth gates in front of the handlers.
func newTestRouter(t *testing.T) (http.Handler, *auth.Service) {
	t.Helper()
	service, err := auth.NewService()
	require.NoError(t, err)

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	return NewRouter(Deps{
		AuthService: service,
		Collections: &db.Collections{},
		Bus:         bus,
		Hub:         ws.NewHub(bus),
	}), service
}

func tokenFor(t *testing.T, service *auth.Service, role models.Role) string {
	t.Helper()
	token, err := service.GenerateToken(&models.Profile{
		ID:    primitive.NewObjectID(),
		Email: string(role) + "@example.com",
		Role:  role,
	})
	require.NoError(t, err)
	return token
}

func TestRouterHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouterAuthGates(t *testing.T) {
	router, service := newTestRouter(t)

	tests := []struct {
		name     string
		method   string
		path     string
		role     models.Role // empty means no token
		wantCode int
	}{
		{"profile requires a token", http.MethodGet, "/api/me/", "", http.StatusUnauthorized},
		{"client subtree rejects drivers", http.MethodGet, "/api/client/trips", models.RoleDriver, http.StatusForbidden},
		{"driver subtree rejects clients", http.MethodGet, "/api/driver/trip", models.RoleClient, http.StatusForbidden},
		{"admin subtree rejects clients", http.MethodGet, "/api/admin/drivers", models.RoleClient, http.StatusForbidden},
		{"drivers cannot post messages", http.MethodPost, "/api/trips/abc/messages", models.RoleDriver, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.role != "" {
				r.Header.Set("Authorization", "Bearer "+tokenFor(t, service, tt.role))
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
