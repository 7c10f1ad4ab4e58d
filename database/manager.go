/*
 * Copyright 2025 tessera-db.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Manager owns one database connection: lifecycle, pooling, health checks,
// and startup table initialization.
type Manager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	InitTables(ctx context.Context) error
	GetStats() *DBStats
	SetLogger(logger Logger)
}

type defaultManager struct {
	config          *ConnectionConfig
	db              *bun.DB
	sqlDB           *sql.DB
	logger          Logger
	mu              sync.RWMutex
	connected       bool
	lastError       error
	healthStatus    *HealthStatus
	reconnectTries  int
	stopHealthCheck chan struct{}
	healthCheckOnce sync.Once
}

// NewManager returns a Manager backed by Bun. A nil config falls back to the
// defaults.
func NewManager(config *ConnectionConfig) Manager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &defaultManager{
		config:          config,
		healthStatus:    &HealthStatus{},
		stopHealthCheck: make(chan struct{}),
	}
}

func (m *defaultManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected && m.db != nil {
		return nil
	}

	var err error
	m.sqlDB, m.db, err = m.createConnection()
	if err != nil {
		m.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	m.configurePool()
	m.installHooks()

	ctxTimeout, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()
	if err := m.db.PingContext(ctxTimeout); err != nil {
		m.lastError = err
		return fmt.Errorf("database connection test failed: %w", err)
	}

	m.connected = true
	m.lastError = nil
	m.reconnectTries = 0

	if m.config.HealthCheckInterval > 0 {
		m.startHealthCheck()
	}
	if m.logger != nil {
		m.logger.Info("Database connected", "type", m.config.Type, "host", m.config.Host)
	}
	return nil
}

func (m *defaultManager) createConnection() (*sql.DB, *bun.DB, error) {
	if m.config.ConnectTimeout <= 0 {
		m.config.ConnectTimeout = 30 * time.Second
	}
	switch m.config.Type {
	case "mysql":
		return m.createMySQLConnection()
	case "postgres":
		return m.createPostgresConnection()
	case "sqlite":
		return m.createSQLiteConnection()
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", m.config.Type)
	}
}

func (m *defaultManager) createMySQLConnection() (*sql.DB, *bun.DB, error) {
	charset := m.config.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=Local&timeout=%s",
		m.config.Username, m.config.Password, m.config.Host, m.config.Port,
		m.config.DBName, charset, m.config.ConnectTimeout)
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, mysqldialect.New()), nil
}

func (m *defaultManager) createPostgresConnection() (*sql.DB, *bun.DB, error) {
	sslmode := m.config.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		m.config.Host, m.config.Port, m.config.Username, m.config.Password,
		m.config.DBName, sslmode, int(m.config.ConnectTimeout.Seconds()))
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
}

func (m *defaultManager) createSQLiteConnection() (*sql.DB, *bun.DB, error) {
	path := m.config.DBName
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	sqlDB, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func (m *defaultManager) configurePool() {
	m.sqlDB.SetMaxIdleConns(m.config.MaxIdleConns)
	m.sqlDB.SetMaxOpenConns(m.config.MaxOpenConns)
	m.sqlDB.SetConnMaxLifetime(m.config.ConnMaxLifetime)
	m.sqlDB.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)
}

func (m *defaultManager) installHooks() {
	if m.config.EnableQueryLog {
		m.db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	} else {
		m.db.AddQueryHook(NewQueryLogHook(false, false))
	}
	if m.config.SlowQueryTime > 0 {
		m.db.AddQueryHook(NewSlowQueryHook(m.config.SlowQueryTime))
	}
}

func (m *defaultManager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil
	}
	m.healthCheckOnce.Do(func() { close(m.stopHealthCheck) })
	m.connected = false
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

func (m *defaultManager) Reconnect(ctx context.Context) error {
	m.mu.Lock()
	if m.db != nil {
		_ = m.db.Close()
	}
	m.connected = false
	m.reconnectTries++
	tries := m.reconnectTries
	m.mu.Unlock()

	if m.config.MaxReconnectTries > 0 && tries > m.config.MaxReconnectTries {
		return fmt.Errorf("reconnect attempts exhausted after %d tries", tries-1)
	}
	if m.logger != nil {
		m.logger.Warn("Reconnecting to database", "attempt", tries)
	}
	return m.Connect(ctx)
}

func (m *defaultManager) Ping(ctx context.Context) error {
	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (m *defaultManager) HealthCheck(ctx context.Context) *HealthStatus {
	m.mu.RLock()
	db := m.db
	sqlDB := m.sqlDB
	connected := m.connected
	m.mu.RUnlock()

	status := &HealthStatus{
		Connected:     connected,
		LastCheckTime: time.Now(),
	}
	if db == nil || !connected {
		status.LastError = "database not connected"
		m.storeHealth(status)
		return status
	}

	start := time.Now()
	err := db.PingContext(ctx)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.Healthy = true
	}
	if sqlDB != nil {
		stats := sqlDB.Stats()
		status.ActiveConns = stats.InUse
		status.IdleConns = stats.Idle
		status.MaxOpenConns = stats.MaxOpenConnections
	}
	m.storeHealth(status)
	return status
}

func (m *defaultManager) storeHealth(status *HealthStatus) {
	m.mu.Lock()
	m.healthStatus = status
	m.mu.Unlock()
}

func (m *defaultManager) startHealthCheck() {
	go func() {
		ticker := time.NewTicker(m.config.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopHealthCheck:
				return
			case <-ticker.C:
				status := m.HealthCheck(context.Background())
				if !status.Healthy && m.config.EnableReconnect {
					if err := m.Reconnect(context.Background()); err != nil && m.logger != nil {
						m.logger.Error("Database reconnect failed", "error", err.Error())
					}
				}
			}
		}
	}()
}

func (m *defaultManager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *defaultManager) GetSQLDB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sqlDB
}

// InitTables creates the tables of all registered models.
func (m *defaultManager) InitTables(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return CreateTables(ctx, db)
}

func (m *defaultManager) GetStats() *DBStats {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()
	if sqlDB == nil {
		return &DBStats{}
	}
	s := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      s.MaxOpenConnections,
		OpenConns:         s.OpenConnections,
		InUse:             s.InUse,
		Idle:              s.Idle,
		WaitCount:         s.WaitCount,
		WaitDuration:      s.WaitDuration,
		MaxIdleClosed:     s.MaxIdleClosed,
		MaxIdleTimeClosed: s.MaxIdleTimeClosed,
		MaxLifetimeClosed: s.MaxLifetimeClosed,
	}
}

func (m *defaultManager) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}
