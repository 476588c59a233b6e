package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/dominic-g/wp-api-rate-limiter/config"
)

// ConnectionManager manages the PostgreSQL connection for the service
type ConnectionManager struct {
	db     *sqlx.DB
	config *config.DatabaseConfig
}

// NewConnectionManager creates a new database connection manager
func NewConnectionManager(cfg *config.DatabaseConfig) (*ConnectionManager, error) {
	cm := &ConnectionManager{config: cfg}

	if err := cm.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return cm, nil
}

// Connect establishes a connection to PostgreSQL
func (cm *ConnectionManager) Connect() error {
	dsn := cm.buildDSN()

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(cm.config.MaxOpenConns)
	db.SetMaxIdleConns(cm.config.MaxIdleConns)
	db.SetConnMaxLifetime(cm.config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	cm.db = db
	return nil
}

// buildDSN constructs the PostgreSQL connection string
func (cm *ConnectionManager) buildDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cm.config.Host,
		cm.config.Port,
		cm.config.Username,
		cm.config.Password,
		cm.config.Database,
		cm.config.SSLMode,
	)
}

// Migrate creates the service tables when they do not exist yet.
func (cm *ConnectionManager) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS request_audit_log (
			id UUID PRIMARY KEY,
			request_time TIMESTAMPTZ NOT NULL,
			ip TEXT NOT NULL,
			country_code TEXT NOT NULL DEFAULT 'ZZ',
			method TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			user_id TEXT NOT NULL DEFAULT '',
			user_role TEXT NOT NULL DEFAULT '',
			status_code INT NOT NULL,
			latency_ms BIGINT NOT NULL,
			byte_count BIGINT NOT NULL,
			is_blocked BOOLEAN NOT NULL,
			metadata JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_request_audit_log_time ON request_audit_log (request_time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_request_audit_log_ip ON request_audit_log (ip)`,
		`CREATE TABLE IF NOT EXISTS geoip_cache (
			ip TEXT PRIMARY KEY,
			country_code TEXT NOT NULL,
			country_name TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			city TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_vpn BOOLEAN NOT NULL DEFAULT FALSE,
			is_tor BOOLEAN NOT NULL DEFAULT FALSE,
			is_in_eu BOOLEAN NOT NULL DEFAULT FALSE,
			checked_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS admission_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := cm.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// GetDB returns the database connection
func (cm *ConnectionManager) GetDB() *sqlx.DB {
	return cm.db
}

// HealthCheck verifies the database is reachable.
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	return cm.db.PingContext(ctx)
}

// Close closes the database connection
func (cm *ConnectionManager) Close() error {
	if cm.db != nil {
		return cm.db.Close()
	}
	return nil
}
