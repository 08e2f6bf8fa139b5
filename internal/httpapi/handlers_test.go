package httpapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/attendgate/internal/auth"
	"github.com/example/attendgate/internal/httpapi"
	"github.com/example/attendgate/internal/persistence"
	"github.com/example/attendgate/pkg/logging"
	"github.com/tidwall/gjson"
)

type stubRepo struct {
	admin persistence.Admin
}

func (s *stubRepo) FindEmployeeByBadge(context.Context, string) (persistence.EmployeeWithWindow, error) {
	return persistence.EmployeeWithWindow{}, persistence.ErrNotFound
}

func (s *stubRepo) ListActiveEmployees(context.Context) ([]persistence.Employee, error) {
	return []persistence.Employee{{ID: 7, FirstName: "Nadia"}}, nil
}

func (s *stubRepo) ListEmployeesAtDate(context.Context, string) ([]persistence.Employee, error) {
	return []persistence.Employee{}, nil
}

func (s *stubRepo) CreateAttendanceRecord(_ context.Context, r persistence.AttendanceRecord) (persistence.AttendanceRecord, error) {
	return r, nil
}

func (s *stubRepo) AggregateAttendanceStats(context.Context, persistence.StatsQuery) ([]persistence.EmployeeStats, error) {
	return []persistence.EmployeeStats{}, nil
}

func (s *stubRepo) ListDepartments(context.Context) ([]persistence.Department, error) {
	return []persistence.Department{{ID: 1, Name: "Engineering"}}, nil
}

func (s *stubRepo) GetAdminByEmail(_ context.Context, email string) (persistence.Admin, error) {
	if email == s.admin.Email {
		return s.admin, nil
	}
	return persistence.Admin{}, persistence.ErrNotFound
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	hash, err := auth.HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	repo := &stubRepo{admin: persistence.Admin{Email: "admin@example.com", FirstName: "Admin", PasswordHash: hash}}
	logger := logging.Discard()
	api := httpapi.NewAPI(logger, repo, auth.NewService(repo, "test-secret", time.Hour, logger))

	mux := http.NewServeMux()
	api.Mount(mux)
	return mux
}

func TestLoginIssuesToken(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"email":"admin@example.com","password":"hunter2"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if gjson.Get(rec.Body.String(), "token").String() == "" {
		t.Errorf("response carries no token: %s", rec.Body)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"email":"admin@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestDepartmentsEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/departments", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gjson.Get(rec.Body.String(), "0.name").String() != "Engineering" {
		t.Errorf("unexpected body: %s", rec.Body)
	}
}

func TestStatsEndpointValidatesQuery(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/attendance/stats?period=day", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fields, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/attendance/stats?period=day&startDate=2025-03-01&endDate=2025-03-31&departmentId=2", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a complete query, got %d: %s", rec.Code, rec.Body)
	}
}

func TestEmployeesAtDateRequiresDate(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/employees/at-date", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a date, got %d", rec.Code)
	}
}
