package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/attendgate/internal/persistence"
	_ "modernc.org/sqlite"
)

// Store implements persistence.Repository on a SQLite database.
type Store struct {
	db *sql.DB
}

var _ persistence.Repository = (*Store)(nil)

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent handler traffic.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// --- EmployeeRepository ---

func (s *Store) FindEmployeeByBadge(ctx context.Context, badgeID string) (persistence.EmployeeWithWindow, error) {
	const query = `
		SELECT e.id, e.badge_id, e.first_name, e.last_name, e.department_id, e.is_active,
		       d.work_start_time, d.work_end_time, d.grace_period_minutes
		FROM employees e
		JOIN departments d ON e.department_id = d.id
		WHERE e.badge_id = ? AND e.is_active = 1`

	var emp persistence.EmployeeWithWindow
	err := s.db.QueryRowContext(ctx, query, badgeID).Scan(
		&emp.ID, &emp.BadgeID, &emp.FirstName, &emp.LastName, &emp.DepartmentID, &emp.IsActive,
		&emp.WorkStartTime, &emp.WorkEndTime, &emp.GracePeriodMinutes,
	)
	if err != nil {
		return persistence.EmployeeWithWindow{}, mapError(err)
	}
	return emp, nil
}

func (s *Store) ListActiveEmployees(ctx context.Context) ([]persistence.Employee, error) {
	const query = `
		SELECT DISTINCT e.id, e.badge_id, e.first_name, e.last_name, e.department_id, e.is_active
		FROM employees e
		JOIN attendance a ON e.id = a.employee_id
		WHERE e.is_active = 1 AND date(a.timestamp) = date('now')
		ORDER BY e.id`

	return s.queryEmployees(ctx, query)
}

func (s *Store) ListEmployeesAtDate(ctx context.Context, date string) ([]persistence.Employee, error) {
	if strings.TrimSpace(date) == "" {
		return nil, persistence.ErrConstraintViolation
	}
	const query = `
		SELECT DISTINCT e.id, e.badge_id, e.first_name, e.last_name, e.department_id, e.is_active
		FROM employees e
		JOIN attendance a ON e.id = a.employee_id
		WHERE e.is_active = 1 AND date(a.timestamp) = date(?)
		ORDER BY e.id`

	return s.queryEmployees(ctx, query, date)
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]persistence.Employee, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	employees := make([]persistence.Employee, 0)
	for rows.Next() {
		var e persistence.Employee
		if err := rows.Scan(&e.ID, &e.BadgeID, &e.FirstName, &e.LastName, &e.DepartmentID, &e.IsActive); err != nil {
			return nil, mapError(err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// --- AttendanceRepository ---

func (s *Store) CreateAttendanceRecord(ctx context.Context, record persistence.AttendanceRecord) (persistence.AttendanceRecord, error) {
	if record.EmployeeID == 0 || record.Type == "" || record.Status == "" || record.Timestamp.IsZero() {
		return persistence.AttendanceRecord{}, persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO attendance (employee_id, timestamp, type, status)
		VALUES (?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		record.EmployeeID,
		record.Timestamp.UTC().Format(time.RFC3339),
		record.Type,
		record.Status,
	)
	if err != nil {
		return persistence.AttendanceRecord{}, mapError(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return persistence.AttendanceRecord{}, mapError(err)
	}
	record.ID = id
	return record, nil
}

func (s *Store) AggregateAttendanceStats(ctx context.Context, q persistence.StatsQuery) ([]persistence.EmployeeStats, error) {
	bucket, ok := periodBuckets[q.Period]
	if !ok {
		return nil, fmt.Errorf("%w: invalid period %q", persistence.ErrConstraintViolation, q.Period)
	}

	query := fmt.Sprintf(`
		SELECT e.id, e.first_name, e.last_name,
		       COUNT(CASE WHEN a.type = 'in' THEN 1 END),
		       COUNT(CASE WHEN a.type = 'out' THEN 1 END),
		       COUNT(CASE WHEN a.status = 'on-time' THEN 1 END),
		       COUNT(CASE WHEN a.status = 'late' THEN 1 END),
		       COUNT(CASE WHEN a.status = 'early-leave' THEN 1 END),
		       strftime('%s', a.timestamp) AS period
		FROM employees e
		JOIN attendance a ON e.id = a.employee_id
		WHERE date(a.timestamp) BETWEEN date(?) AND date(?)
		  AND e.department_id = ?
		GROUP BY e.id, e.first_name, e.last_name, period
		ORDER BY period ASC`, bucket)

	rows, err := s.db.QueryContext(ctx, query, q.StartDate, q.EndDate, q.DepartmentID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	stats := make([]persistence.EmployeeStats, 0)
	for rows.Next() {
		var row persistence.EmployeeStats
		if err := rows.Scan(
			&row.EmployeeID, &row.FirstName, &row.LastName,
			&row.TotalCheckIns, &row.TotalCheckOuts,
			&row.TotalOnTime, &row.TotalLate, &row.TotalEarlyLeaves,
			&row.Period,
		); err != nil {
			return nil, mapError(err)
		}
		stats = append(stats, row)
	}
	return stats, rows.Err()
}

// periodBuckets maps a stats period to its strftime grouping pattern.
var periodBuckets = map[string]string{
	"day":   "%Y-%m-%d",
	"month": "%Y-%m",
	"year":  "%Y",
}

// --- DepartmentRepository ---

func (s *Store) ListDepartments(ctx context.Context) ([]persistence.Department, error) {
	const query = `
		SELECT id, name, description, location, work_start_time, work_end_time, grace_period_minutes
		FROM departments
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	departments := make([]persistence.Department, 0)
	for rows.Next() {
		var d persistence.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Description, &d.Location,
			&d.WorkStartTime, &d.WorkEndTime, &d.GracePeriodMinutes); err != nil {
			return nil, mapError(err)
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

// --- AdminRepository ---

func (s *Store) GetAdminByEmail(ctx context.Context, email string) (persistence.Admin, error) {
	const query = `
		SELECT email, first_name, last_name, password_hash
		FROM admins
		WHERE email = ?`

	var admin persistence.Admin
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(strings.TrimSpace(email))).Scan(
		&admin.Email, &admin.FirstName, &admin.LastName, &admin.PasswordHash,
	)
	if err != nil {
		return persistence.Admin{}, mapError(err)
	}
	return admin, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return persistence.ErrNotFound
	case strings.Contains(err.Error(), "constraint"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	default:
		return err
	}
}
