package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/JaimeStill/docintel/pkg/routes"
)

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(code) }
}

func serve(r http.Handler, method, target string) int {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec.Code
}

func TestRegister(t *testing.T) {
	r := chi.NewRouter()

	var gotID string
	routes.Register(r, routes.Group{
		Prefix: "/runs",
		Routes: []routes.Route{
			{Method: http.MethodGet, Pattern: "", Handler: status(http.StatusOK)},
			{Method: http.MethodGet, Pattern: "/{id}", Handler: func(w http.ResponseWriter, r *http.Request) {
				gotID = chi.URLParam(r, "id")
			}},
			{Method: http.MethodPost, Pattern: "/{id}/retry", Handler: status(http.StatusAccepted)},
		},
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/runs"))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/runs/abc"))
	assert.Equal(t, "abc", gotID)
	assert.Equal(t, http.StatusAccepted, serve(r, http.MethodPost, "/runs/abc/retry"))
	assert.Equal(t, http.StatusMethodNotAllowed, serve(r, http.MethodDelete, "/runs/abc"))
}

func TestRegisterChildren(t *testing.T) {
	r := chi.NewRouter()
	routes.Register(r, routes.Group{
		Prefix: "/api",
		Children: []routes.Group{{
			Prefix: "/prompts",
			Routes: []routes.Route{{Method: http.MethodGet, Pattern: "/stages", Handler: status(http.StatusOK)}},
		}},
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/prompts/stages"))
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/prompts/stages"))
}

func TestRegisterEmptyPatternIsRoot(t *testing.T) {
	r := chi.NewRouter()
	routes.Register(r, routes.Group{Routes: []routes.Route{
		{Method: http.MethodGet, Pattern: "", Handler: status(http.StatusNoContent)},
	}})

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/"))
}
