package persistence

import "context"

// EmployeeRepository resolves presence identifiers and serves the
// employee snapshots viewers pull.
type EmployeeRepository interface {
	// FindEmployeeByBadge returns the active employee carrying the badge
	// together with their department's work window. ErrNotFound if no
	// active employee matches.
	FindEmployeeByBadge(ctx context.Context, badgeID string) (EmployeeWithWindow, error)

	// ListActiveEmployees returns active employees with an attendance
	// record today.
	ListActiveEmployees(ctx context.Context) ([]Employee, error)

	// ListEmployeesAtDate returns active employees with an attendance
	// record on the given YYYY-MM-DD date.
	ListEmployeesAtDate(ctx context.Context, date string) ([]Employee, error)
}

type AttendanceRepository interface {
	// CreateAttendanceRecord persists a record and returns it with its
	// assigned ID.
	CreateAttendanceRecord(ctx context.Context, record AttendanceRecord) (AttendanceRecord, error)

	// AggregateAttendanceStats buckets per-employee attendance counts by
	// the query's period within a department and date range.
	AggregateAttendanceStats(ctx context.Context, query StatsQuery) ([]EmployeeStats, error)
}

type DepartmentRepository interface {
	ListDepartments(ctx context.Context) ([]Department, error)
}

type AdminRepository interface {
	// GetAdminByEmail returns the admin account, ErrNotFound otherwise.
	GetAdminByEmail(ctx context.Context, email string) (Admin, error)
}

// Repository is the full collaborator surface the gateway and upstream
// connector consume.
type Repository interface {
	EmployeeRepository
	AttendanceRepository
	DepartmentRepository
	AdminRepository
}
