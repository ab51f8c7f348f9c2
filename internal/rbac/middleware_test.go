package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rencana-app/rencana/internal/shared"
)

type stubResolver struct {
	perms map[int64][]string
}

func (s stubResolver) EffectivePermissions(_ context.Context, userID int64) ([]string, error) {
	return s.perms[userID], nil
}

func requestWithUser(t *testing.T, userID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	sess := &shared.Session{}
	sess.SetUser(userID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireAnyDeniesWithoutPermission(t *testing.T) {
	mw := Middleware{Service: stubResolver{perms: map[int64][]string{7: {"project.view"}}}}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.RequireAny(shared.PermProjectManage)(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithUser(t, "7"))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyAllowsGrantedPermission(t *testing.T) {
	mw := Middleware{Service: stubResolver{perms: map[int64][]string{7: {"project.view", "project.manage"}}}}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.RequireAny(shared.PermProjectManage)(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithUser(t, "7"))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	mw := Middleware{Service: stubResolver{perms: map[int64][]string{7: {"project.view"}}}}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.RequireAll(shared.PermProjectView, shared.PermProjectRecalc)(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestWithUser(t, "7"))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMissingSessionIsUnauthorized(t *testing.T) {
	mw := Middleware{Service: stubResolver{}}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.RequireAny(shared.PermProjectView)(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
