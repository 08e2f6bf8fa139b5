package persistence

import "time"

// Department groups employees and owns their work window.
type Department struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Location           string `json:"location"`
	WorkStartTime      string `json:"workStartTime"`
	WorkEndTime        string `json:"workEndTime"`
	GracePeriodMinutes int    `json:"gracePeriodMinutes"`
}

type Employee struct {
	ID           int64  `json:"id"`
	BadgeID      string `json:"badgeId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	DepartmentID int64  `json:"departmentId"`
	IsActive     bool   `json:"isActive"`
}

// EmployeeWithWindow is the join the upstream pipeline needs: the
// employee plus their department's work window.
type EmployeeWithWindow struct {
	Employee
	WorkStartTime      string `json:"workStartTime"`
	WorkEndTime        string `json:"workEndTime"`
	GracePeriodMinutes int    `json:"gracePeriodMinutes"`
}

// AttendanceRecord is immutable once created.
type AttendanceRecord struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employeeId"`
	Timestamp  time.Time `json:"timestamp"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
}

// Admin is a dashboard account allowed to obtain viewer tokens.
type Admin struct {
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	PasswordHash string `json:"-"`
}

// StatsQuery selects the attendance aggregation window.
type StatsQuery struct {
	Period       string // one of "day", "month", "year"
	StartDate    string // YYYY-MM-DD, inclusive
	EndDate      string // YYYY-MM-DD, inclusive through 23:59:59
	DepartmentID int64
}

// EmployeeStats is one aggregation row: an employee's counts within one
// period bucket.
type EmployeeStats struct {
	EmployeeID       int64  `json:"employeeId"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	TotalCheckIns    int    `json:"totalCheckIns"`
	TotalCheckOuts   int    `json:"totalCheckOuts"`
	TotalOnTime      int    `json:"totalOnTime"`
	TotalLate        int    `json:"totalLate"`
	TotalEarlyLeaves int    `json:"totalEarlyLeaves"`
	Period           string `json:"period"`
}
