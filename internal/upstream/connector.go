package upstream

import (
	"context"
	"errors"
	"log/slog"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/example/attendgate/internal/attendance"
	"github.com/example/attendgate/internal/observability"
	"github.com/example/attendgate/internal/persistence"
	"github.com/example/attendgate/internal/protocol"
	"github.com/tidwall/gjson"
)

// Broadcaster receives the attendance events the connector produces.
type Broadcaster interface {
	Broadcast(update protocol.PresenceUpdate)
}

// Repository is the slice of the storage collaborator the connector
// needs: badge resolution and record creation.
type Repository interface {
	persistence.EmployeeRepository
	persistence.AttendanceRepository
}

type Config struct {
	URL            string
	ReconnectDelay time.Duration
}

// timestamp formats accepted on the device feed's time field.
const deviceTimeLayout = "2006-01-02 15:04:05"

// Connector owns the single outbound link to the presence device feed.
// It retries forever on a fixed delay; devices are expected to be
// intermittently available.
type Connector struct {
	logger      *slog.Logger
	config      Config
	repo        Repository
	broadcaster Broadcaster
	metrics     *observability.Metrics
}

func NewConnector(logger *slog.Logger, config Config, repo Repository, broadcaster Broadcaster, metrics *observability.Metrics) *Connector {
	return &Connector{
		logger:      logger.With(slog.String("component", "upstream_connector")),
		config:      config,
		repo:        repo,
		broadcaster: broadcaster,
		metrics:     metrics,
	}
}

// Run blocks until ctx is cancelled, cycling through
// connect → read → disconnect → wait. At most one attempt is in flight
// at a time; the delay is measured from disconnect detection.
func (c *Connector) Run(ctx context.Context) {
	for {
		if err := c.connectAndRead(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Upstream connector stopping")
				return
			}
			if errors.Is(err, syscall.ECONNREFUSED) {
				c.logger.Warn("Upstream connection refused. Is the device feed running?",
					slog.String("url", c.config.URL))
			} else {
				c.logger.Warn("Upstream link lost",
					slog.String("url", c.config.URL), slog.Any("error", err))
			}
		}

		select {
		case <-ctx.Done():
			c.logger.Info("Upstream connector stopping")
			return
		case <-time.After(c.config.ReconnectDelay):
		}
	}
}

func (c *Connector) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow()
	c.logger.Info("Connected to upstream device feed", slog.String("url", c.config.URL))

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}
		// One ping is fully classified, persisted and broadcast before
		// the next is read.
		c.handlePing(ctx, data)
	}
}

// handlePing runs the per-ping pipeline:
// decode → resolve → classify → persist → broadcast.
func (c *Connector) handlePing(ctx context.Context, raw []byte) {
	c.metrics.PingsIngested.Inc()

	uid := gjson.GetBytes(raw, "uid")
	at, ok := parseDeviceTime(gjson.GetBytes(raw, "time"))
	if !uid.Exists() || uid.String() == "" || !ok {
		c.logger.Warn("Dropping malformed presence ping", slog.String("raw", string(raw)))
		c.metrics.PingsDropped.WithLabelValues(observability.DropMalformed).Inc()
		return
	}

	employee, err := c.repo.FindEmployeeByBadge(ctx, uid.String())
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			c.logger.Warn("Presence ping for unknown badge", slog.String("uid", uid.String()))
			c.metrics.PingsDropped.WithLabelValues(observability.DropUnknownEmployee).Inc()
			return
		}
		c.logger.Error("Failed to resolve badge", slog.String("uid", uid.String()), slog.Any("error", err))
		c.metrics.PingsDropped.WithLabelValues(observability.DropPersistence).Inc()
		return
	}

	window, err := workWindowOf(employee)
	if err != nil {
		c.logger.Error("Employee has an unusable work window",
			slog.Int64("employeeId", employee.ID), slog.Any("error", err))
		c.metrics.PingsDropped.WithLabelValues(observability.DropMalformed).Inc()
		return
	}

	eventType, status := attendance.Classify(window, at)

	record, err := c.repo.CreateAttendanceRecord(ctx, persistence.AttendanceRecord{
		EmployeeID: employee.ID,
		Timestamp:  at,
		Type:       string(eventType),
		Status:     string(status),
	})
	if err != nil {
		// Abort before broadcast; the upstream link stays up and the
		// next ping proceeds normally.
		c.logger.Error("Failed to persist attendance record",
			slog.Int64("employeeId", employee.ID), slog.Any("error", err))
		c.metrics.PingsDropped.WithLabelValues(observability.DropPersistence).Inc()
		return
	}
	c.metrics.RecordsPersisted.Inc()

	c.logger.Info("Attendance event recorded",
		slog.Int64("employeeId", employee.ID),
		slog.String("type", record.Type),
		slog.String("status", record.Status),
	)
	c.broadcaster.Broadcast(protocol.PresenceUpdate{
		Status:   record.Status,
		Employee: employee.Employee,
	})
}

func workWindowOf(e persistence.EmployeeWithWindow) (attendance.WorkWindow, error) {
	start, err := attendance.ParseTimeOfDay(e.WorkStartTime)
	if err != nil {
		return attendance.WorkWindow{}, err
	}
	end, err := attendance.ParseTimeOfDay(e.WorkEndTime)
	if err != nil {
		return attendance.WorkWindow{}, err
	}
	return attendance.WorkWindow{
		Start: start,
		End:   end,
		Grace: time.Duration(e.GracePeriodMinutes) * time.Minute,
	}, nil
}

// parseDeviceTime accepts epoch milliseconds or the feed's
// space-separated date-time text, normalized to UTC.
func parseDeviceTime(field gjson.Result) (time.Time, bool) {
	switch field.Type {
	case gjson.Number:
		return time.UnixMilli(field.Int()).UTC(), true
	case gjson.String:
		if t, err := time.Parse(deviceTimeLayout, field.String()); err == nil {
			return t.UTC(), true
		}
		if t, err := time.Parse(time.RFC3339, field.String()); err == nil {
			return t.UTC(), true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
