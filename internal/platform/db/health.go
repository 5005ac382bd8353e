package db

import (
	"context"
	"database/sql"
	"time"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	OpenConns    int    `json:"open_conns"`
	IdleConns    int    `json:"idle_conns"`
	InUseConns   int    `json:"in_use_conns"`
	MaxConns     int    `json:"max_conns"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
	Healthy      bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *sql.DB) *PoolStats {
	stat := pool.Stats()
	return &PoolStats{
		OpenConns:    stat.OpenConnections,
		IdleConns:    stat.Idle,
		InUseConns:   stat.InUse,
		MaxConns:     stat.MaxOpenConnections,
		WaitCount:    stat.WaitCount,
		WaitDuration: stat.WaitDuration.String(),
		Healthy:      stat.OpenConnections > 0,
	}
}

// Health is the result of a database health check.
type Health struct {
	Status string     `json:"status"`
	Error  string     `json:"error,omitempty"`
	Pool   *PoolStats `json:"pool"`
}

// Check pings the database with a five second cap and reports pool statistics.
func Check(ctx context.Context, pool *sql.DB) Health {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := pool.PingContext(ctx)
	stats := GetPoolStats(pool)

	if err != nil {
		stats.Healthy = false
		return Health{Status: "unhealthy", Error: err.Error(), Pool: stats}
	}
	stats.Healthy = true
	return Health{Status: "healthy", Pool: stats}
}
