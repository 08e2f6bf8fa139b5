package sqlite

// schemaStatements is applied in order by Migrate. Statements are
// idempotent so Migrate can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		work_start_time TEXT NOT NULL DEFAULT '09:00:00',
		work_end_time TEXT NOT NULL DEFAULT '17:00:00',
		grace_period_minutes INTEGER NOT NULL DEFAULT 15
	)`,
	`CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		badge_id TEXT NOT NULL UNIQUE,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		department_id INTEGER NOT NULL REFERENCES departments(id),
		is_active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id INTEGER NOT NULL REFERENCES employees(id),
		timestamp TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('in', 'out')),
		status TEXT NOT NULL CHECK (status IN ('on-time', 'late', 'early-leave', 'leave'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_employee_ts ON attendance (employee_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS admins (
		email TEXT PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		password_hash TEXT NOT NULL
	)`,
}
