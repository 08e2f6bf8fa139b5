package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/example/attendgate/internal/auth"
	"github.com/example/attendgate/internal/persistence"
)

// API serves the one-shot REST reads and the login endpoint that issues
// viewer tokens. The live feed itself goes over /ws.
type API struct {
	logger *slog.Logger
	repo   persistence.Repository
	auth   *auth.Service
}

func NewAPI(logger *slog.Logger, repo persistence.Repository, authSvc *auth.Service) *API {
	return &API{
		logger: logger.With(slog.String("component", "http_api")),
		repo:   repo,
		auth:   authSvc,
	}
}

// Mount registers the API routes on mux.
func (a *API) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("GET /api/departments", a.handleDepartments)
	mux.HandleFunc("GET /api/employees/active", a.handleActiveEmployees)
	mux.HandleFunc("GET /api/employees/at-date", a.handleEmployeesAtDate)
	mux.HandleFunc("GET /api/attendance/stats", a.handleAttendanceStats)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message   string `json:"message"`
	Token     string `json:"token"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request information is missing")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	token, admin, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		a.logger.Error("Login failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:   "Login successful",
		Token:     token,
		Email:     admin.Email,
		FirstName: admin.FirstName,
		LastName:  admin.LastName,
	})
}

func (a *API) handleDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := a.repo.ListDepartments(r.Context())
	if err != nil {
		a.logger.Error("Failed to list departments", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, departments)
}

func (a *API) handleActiveEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := a.repo.ListActiveEmployees(r.Context())
	if err != nil {
		a.logger.Error("Failed to list active employees", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

func (a *API) handleEmployeesAtDate(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date parameter is missing")
		return
	}
	employees, err := a.repo.ListEmployeesAtDate(r.Context(), date)
	if err != nil {
		a.logger.Error("Failed to list employees at date", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

func (a *API) handleAttendanceStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	departmentID, err := strconv.ParseInt(q.Get("departmentId"), 10, 64)
	if q.Get("period") == "" || q.Get("startDate") == "" || q.Get("endDate") == "" || err != nil {
		writeError(w, http.StatusBadRequest, "period, startDate, endDate and departmentId are required")
		return
	}

	stats, err := a.repo.AggregateAttendanceStats(r.Context(), persistence.StatsQuery{
		Period:       q.Get("period"),
		StartDate:    q.Get("startDate"),
		EndDate:      q.Get("endDate"),
		DepartmentID: departmentID,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrConstraintViolation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Error("Failed to aggregate attendance stats", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
