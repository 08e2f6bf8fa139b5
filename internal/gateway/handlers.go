package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/attendgate/internal/persistence"
	"github.com/example/attendgate/internal/protocol"
	"github.com/tidwall/gjson"
)

// HandlerFunc serves one pull-request type. The returned value is
// marshalled into the response's data field; an error becomes an
// error-status response on the same correlation token.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// ErrValidation marks request payloads missing required fields.
var ErrValidation = errors.New("gateway: invalid request payload")

// RepositoryHandlers builds the handler table backed by the repository
// collaborator. New request kinds are added here, not in the router.
func RepositoryHandlers(repo persistence.Repository) map[string]HandlerFunc {
	return map[string]HandlerFunc{
		protocol.TypeGetDepartments: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return repo.ListDepartments(ctx)
		},
		protocol.TypeGetActiveEmployees: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return repo.ListActiveEmployees(ctx)
		},
		protocol.TypeGetEmployeesAtDate: func(ctx context.Context, payload json.RawMessage) (any, error) {
			date := gjson.GetBytes(payload, "date")
			if !date.Exists() || date.String() == "" {
				return nil, fmt.Errorf("%w: date is required", ErrValidation)
			}
			return repo.ListEmployeesAtDate(ctx, date.String())
		},
		protocol.TypeGetAttendanceStats: func(ctx context.Context, payload json.RawMessage) (any, error) {
			query, err := statsQueryFromPayload(payload)
			if err != nil {
				return nil, err
			}
			return repo.AggregateAttendanceStats(ctx, query)
		},
	}
}

func statsQueryFromPayload(payload json.RawMessage) (persistence.StatsQuery, error) {
	for _, field := range []string{"period", "startDate", "endDate", "departmentId"} {
		if !gjson.GetBytes(payload, field).Exists() {
			return persistence.StatsQuery{}, fmt.Errorf("%w: %s is required", ErrValidation, field)
		}
	}

	period := gjson.GetBytes(payload, "period").String()
	switch period {
	case "day", "month", "year":
	default:
		return persistence.StatsQuery{}, fmt.Errorf("%w: period must be one of day, month, year", ErrValidation)
	}

	return persistence.StatsQuery{
		Period:       period,
		StartDate:    gjson.GetBytes(payload, "startDate").String(),
		EndDate:      gjson.GetBytes(payload, "endDate").String(),
		DepartmentID: gjson.GetBytes(payload, "departmentId").Int(),
	}, nil
}
