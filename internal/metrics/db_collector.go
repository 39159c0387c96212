package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool labels for the connection gauges. The server runs two pools
// against the same database: pgx for the auth, report and wallet
// repositories, sqlx for products and chat.
const (
	poolPgx  = "pgx"
	poolSQLx = "sqlx"
)

// DBStatsCollector samples both connection pools on a ticker and
// exports their stats under a per-pool label.
type DBStatsCollector struct {
	pgxPool *pgxpool.Pool
	sqlDB   *sql.DB
	stopCh  chan struct{}
}

// NewDBStatsCollector creates a new database stats collector
func NewDBStatsCollector(pgxPool *pgxpool.Pool, sqlDB *sql.DB) *DBStatsCollector {
	return &DBStatsCollector{
		pgxPool: pgxPool,
		sqlDB:   sqlDB,
		stopCh:  make(chan struct{}),
	}
}

// Start samples once immediately, then on every tick until Stop.
func (c *DBStatsCollector) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				return
			}
		}
	}()

	slog.Info("database stats collector started", "interval", interval)
}

// Stop stops the database stats collector
func (c *DBStatsCollector) Stop() {
	close(c.stopCh)
	slog.Info("database stats collector stopped")
}

func (c *DBStatsCollector) collect() {
	if c.pgxPool != nil {
		stat := c.pgxPool.Stat()
		setPoolGauges(poolPgx,
			float64(stat.TotalConns()),
			float64(stat.AcquiredConns()),
			float64(stat.IdleConns()),
			float64(stat.MaxConns()))
	}

	if c.sqlDB != nil {
		stats := c.sqlDB.Stats()
		setPoolGauges(poolSQLx,
			float64(stats.OpenConnections),
			float64(stats.InUse),
			float64(stats.Idle),
			float64(stats.MaxOpenConnections))
	}
}

func setPoolGauges(pool string, open, inUse, idle, maxOpen float64) {
	DBConnectionsOpen.WithLabelValues(pool).Set(open)
	DBConnectionsInUse.WithLabelValues(pool).Set(inUse)
	DBConnectionsIdle.WithLabelValues(pool).Set(idle)
	DBConnectionsMaxOpen.WithLabelValues(pool).Set(maxOpen)
}

// RecordQueryDuration records the duration of a database query
func RecordQueryDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// TimeQuery times a database query.
// Usage: defer metrics.TimeQuery("select_user")()
func TimeQuery(operation string) func() {
	start := time.Now()
	return func() {
		RecordQueryDuration(operation, time.Since(start))
	}
}

// PingDatabase checks database connectivity and records the result
func PingDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	start := time.Now()
	err := pool.Ping(ctx)
	RecordQueryDuration("ping", time.Since(start))
	return err
}
