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

package database_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessera-db/tessera/database"
)

func TestLoadConfig(t *testing.T) {
	content := `
connection:
  type: postgres
  host: db.internal
  port: 5432
  username: app
  password: secret
  dbname: tessera
  sslmode: require
  max_idle_conns: 5
  max_open_conns: 50
  conn_max_lifetime: 1h
  connect_timeout: 15s
  enable_reconnect: true
  enable_query_log: true
startup:
  init_tables: true
`
	path := filepath.Join(t.TempDir(), "database.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := database.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Connection.Type)
	assert.Equal(t, "db.internal", cfg.Connection.Host)
	assert.Equal(t, 5432, cfg.Connection.Port)
	assert.Equal(t, "app", cfg.Connection.Username)
	assert.Equal(t, "tessera", cfg.Connection.DBName)
	assert.Equal(t, "require", cfg.Connection.SSLMode)
	assert.Equal(t, 5, cfg.Connection.MaxIdleConns)
	assert.Equal(t, 50, cfg.Connection.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.Connection.ConnMaxLifetime)
	assert.Equal(t, 15*time.Second, cfg.Connection.ConnectTimeout)
	assert.True(t, cfg.Connection.EnableReconnect)
	assert.True(t, cfg.Connection.EnableQueryLog)
	assert.True(t, cfg.Startup.InitTables)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := database.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connection: ["), 0o644))
	_, err = database.LoadConfig(path)
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "override.host")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USERNAME", "envuser")
	t.Setenv("DB_PASSWORD", "envpass")
	t.Setenv("DB_NAME", "envdb")
	t.Setenv("DB_SSLMODE", "verify-full")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_MAX_OPEN_CONNS", "30")
	t.Setenv("DB_CONN_MAX_LIFETIME", "120")
	t.Setenv("DB_ENABLE_RECONNECT", "false")
	t.Setenv("DB_RECONNECT_INTERVAL", "7")
	t.Setenv("DB_ENABLE_QUERY_LOG", "true")

	cfg := database.DefaultConnectionConfig()
	cfg.Host = "original"
	cfg.ApplyEnv()

	assert.Equal(t, "override.host", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "envuser", cfg.Username)
	assert.Equal(t, "envpass", cfg.Password)
	assert.Equal(t, "envdb", cfg.DBName)
	assert.Equal(t, "verify-full", cfg.SSLMode)
	assert.Equal(t, 3, cfg.MaxIdleConns)
	assert.Equal(t, 30, cfg.MaxOpenConns)
	assert.Equal(t, 120*time.Second, cfg.ConnMaxLifetime)
	assert.False(t, cfg.EnableReconnect)
	assert.Equal(t, 7*time.Second, cfg.ReconnectInterval)
	assert.True(t, cfg.EnableQueryLog)
}

func TestApplyEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")
	cfg := database.DefaultConnectionConfig()
	cfg.Port = 5432
	cfg.ApplyEnv()
	assert.Equal(t, 5432, cfg.Port)
}

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := database.DefaultConnectionConfig()
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 100, cfg.MaxOpenConns)
	assert.Equal(t, time.Hour, cfg.ConnMaxLifetime)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.True(t, cfg.EnableReconnect)
	assert.Equal(t, 2*time.Second, cfg.SlowQueryTime)
}
