package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// ActivityType tags an entry in the append-only activity log.
type ActivityType string

const (
	ActivityClientCreated ActivityType = "client_created"
	ActivityClientDeleted ActivityType = "client_deleted"
	ActivityReportCreated ActivityType = "report_created"
	ActivityClientLinked  ActivityType = "client_linked"
	ActivitySyncCompleted ActivityType = "sync_completed"
	ActivityAnalysisRun   ActivityType = "analysis_run"
)

// Activity is one audit entry. Append-only; there is no read path in
// the dashboard itself.
type Activity struct {
	ID        string
	Type      ActivityType
	ClientID  string
	Detail    string
	Timestamp time.Time
}

// ActivityLog records dashboard activity. Implementations must be safe
// for concurrent use.
type ActivityLog interface {
	Record(ctx context.Context, a *Activity) error
}

// ClickHouseActivityLog appends activity rows to ClickHouse:
//
//	CREATE TABLE IF NOT EXISTS adflow_activity (
//	    id        String,
//	    type      String,
//	    client_id String,
//	    detail    String,
//	    ts        DateTime
//	) ENGINE = MergeTree ORDER BY ts;
type ClickHouseActivityLog struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewClickHouseActivityLog creates a ClickHouse-backed activity log.
func NewClickHouseActivityLog(conn driver.Conn, logger *zap.Logger) *ClickHouseActivityLog {
	return &ClickHouseActivityLog{conn: conn, logger: logger}
}

// Record inserts one activity row.
func (l *ClickHouseActivityLog) Record(ctx context.Context, a *Activity) error {
	err := l.conn.Exec(ctx, `
		INSERT INTO adflow_activity (id, type, client_id, detail, ts)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, string(a.Type), a.ClientID, a.Detail, a.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// NopActivityLog discards activity. Used when ClickHouse is not
// configured.
type NopActivityLog struct{}

// Record does nothing.
func (NopActivityLog) Record(ctx context.Context, a *Activity) error { return nil }
