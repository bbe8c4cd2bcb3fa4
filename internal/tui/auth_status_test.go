package tui

import (
	"context"
	"testing"

	"nathanbeddoewebdev/sirius/internal/domain"
	"nathanbeddoewebdev/sirius/internal/services/auth"

	"github.com/google/go-cmp/cmp"
)

type unauthorizedBackend struct {
	domain.Backend
}

func (unauthorizedBackend) ListProcesses(context.Context) ([]domain.ProcessSummary, error) {
	return nil, &domain.BackendError{Op: "list processes", Status: 401, Message: "unauthorized", Err: domain.ErrUnauthorized}
}

func runStatusCheck(t *testing.T, m authStatusModel) authStatusModel {
	t.Helper()
	updated, _ := m.Update(m.checkReachable()())
	return updated.(authStatusModel)
}

func TestAuthStatus_Reachable(t *testing.T) {
	d, _, _ := demoSetup(t)
	store := auth.NewMockStore()
	if err := store.SetToken(auth.TokenKey, "secret"); err != nil {
		t.Fatal(err)
	}

	m := runStatusCheck(t, newAuthStatusModel(store, d, "http://localhost:8082"))
	want := []statusRow{
		{name: "token", status: "stored", ok: true},
		{name: "query service", status: "reachable, 1 processes", ok: true},
	}
	if diff := cmp.Diff(want, m.rows, cmp.AllowUnexported(statusRow{})); diff != "" {
		t.Errorf("status rows mismatch (-want +got):\n%s", diff)
	}
	if m.checking {
		t.Error("expected the check to finish")
	}
}

func TestAuthStatus_TokenRejected(t *testing.T) {
	m := runStatusCheck(t, newAuthStatusModel(auth.NewMockStore(), unauthorizedBackend{}, "http://localhost:8082"))
	want := []statusRow{
		{name: "token", status: "not stored"},
		{name: "query service", status: "token rejected"},
	}
	if diff := cmp.Diff(want, m.rows, cmp.AllowUnexported(statusRow{})); diff != "" {
		t.Errorf("status rows mismatch (-want +got):\n%s", diff)
	}
}
