package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockerx/cms/docs/swagger"
)

// TestSwaggerDocMatchesRoutes fails when a handler is mounted under /api
// without a documented path, or the doc lists a route the router lacks.
// Regenerate with `go generate ./cmd/api` after changing handler annotations.
func TestSwaggerDocMatchesRoutes(t *testing.T) {
	var doc struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(swagger.SwaggerInfo.ReadDoc()), &doc))
	require.Equal(t, "/api", doc.BasePath)

	var documented []string
	for path, ops := range doc.Paths {
		for method := range ops {
			documented = append(documented, strings.ToUpper(method)+" "+path)
		}
	}
	sort.Strings(documented)

	s := newTestServer(t, RoleAll)
	routes, ok := s.Config.Handler.(chi.Routes)
	require.True(t, ok)

	var mounted []string
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if !strings.HasPrefix(route, doc.BasePath+"/") {
			return nil
		}
		path := strings.TrimSuffix(strings.TrimPrefix(route, doc.BasePath), "/")
		mounted = append(mounted, method+" "+path)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(mounted)

	assert.Equal(t, documented, mounted)
}
