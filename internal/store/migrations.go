package store

import "fmt"

func (s *Store) migrate() error {
	migrations := sqliteMigrations
	if s.driver == DriverPostgres {
		migrations = postgresMigrations
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS credentials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key_hash TEXT UNIQUE NOT NULL,
		key_prefix TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT 'standard',
		is_active INTEGER NOT NULL DEFAULT 1,
		use_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_used DATETIME
	)`,

	`CREATE TABLE IF NOT EXISTS admins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		last_login_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS usage_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		credential_id INTEGER,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		origin_addr TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		latency_ms REAL NOT NULL DEFAULT 0,
		rate_limited INTEGER NOT NULL DEFAULT 0,
		request_bytes INTEGER NOT NULL DEFAULT 0,
		response_bytes INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_usage_credential_time ON usage_records(credential_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_origin_time ON usage_records(origin_addr, created_at)`,

	`CREATE TABLE IF NOT EXISTS cache_entries (
		cache_key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		cached_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at)`,

	`CREATE TABLE IF NOT EXISTS deny_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		credential_id INTEGER,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_deny_target ON deny_entries(target_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_deny_active_scope
		ON deny_entries(target_id, COALESCE(credential_id, 0)) WHERE is_active = 1`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'warning',
		title TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		credential_id INTEGER,
		metadata_json TEXT NOT NULL DEFAULT '{}',
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_notifications_credential ON notifications(credential_id, type, created_at)`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS credentials (
		id BIGSERIAL PRIMARY KEY,
		key_hash TEXT UNIQUE NOT NULL,
		key_prefix TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT 'standard',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		use_count BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_used TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS admins (
		id BIGSERIAL PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS usage_records (
		id BIGSERIAL PRIMARY KEY,
		credential_id BIGINT,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		origin_addr TEXT NOT NULL DEFAULT '',
		status_code INT NOT NULL DEFAULT 0,
		latency_ms DOUBLE PRECISION NOT NULL DEFAULT 0,
		rate_limited BOOLEAN NOT NULL DEFAULT FALSE,
		request_bytes BIGINT NOT NULL DEFAULT 0,
		response_bytes BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_usage_credential_time ON usage_records(credential_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_origin_time ON usage_records(origin_addr, created_at)`,

	`CREATE TABLE IF NOT EXISTS cache_entries (
		cache_key TEXT PRIMARY KEY,
		payload BYTEA NOT NULL,
		cached_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at)`,

	`CREATE TABLE IF NOT EXISTS deny_entries (
		id BIGSERIAL PRIMARY KEY,
		target_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		credential_id BIGINT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_deny_target ON deny_entries(target_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_deny_active_scope
		ON deny_entries(target_id, COALESCE(credential_id, 0)) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		type TEXT NOT NULL,
		severity TEXT NOT NULL DEFAULT 'warning',
		title TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		credential_id BIGINT,
		metadata_json TEXT NOT NULL DEFAULT '{}',
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_notifications_credential ON notifications(credential_id, type, created_at)`,
}
