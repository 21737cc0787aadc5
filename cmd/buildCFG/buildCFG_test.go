package buildCFG

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[string]any

func (m mapSource) GetString(key string) string {
	s, _ := m[key].(string)
	return s
}

func (m mapSource) GetInt(key string) int {
	n, _ := m[key].(int)
	return n
}

func (m mapSource) GetBool(key string) bool {
	b, _ := m[key].(bool)
	return b
}

func TestDefaults(t *testing.T) {
	log := zerolog.Nop()
	cfg := mapSource{}

	assert.Equal(t, "8080", BuildServerConfig(cfg, &log).Port)
	assert.Equal(t, Timeouts{Store: 5 * time.Second, Publish: 2 * time.Second, Shutdown: 10 * time.Second}, BuildTimeouts(cfg, &log))
	assert.Equal(t, 587, BuildMailerConfig(cfg, &log).Port)
	assert.Equal(t, "usd", BuildPaymentConfig(cfg, &log).Currency)
	assert.Equal(t, "migrations/postgres", BuildMigrationConfig(cfg).Dir)

	_, _, _, err := BuildDBConfig(cfg, &log)
	assert.Error(t, err)
	_, err = BuildRabbitConfig(cfg, &log)
	assert.Error(t, err)
	_, err = BuildAuthConfig(cfg)
	assert.Error(t, err)
	_, err = BuildCredentialSecret(cfg)
	assert.Error(t, err)
}

func TestBuildDBConfig(t *testing.T) {
	log := zerolog.Nop()
	cfg := mapSource{
		"database.master_dsn":        "postgres://master",
		"database.slave_dsns":        " postgres://r1 , ,postgres://r2",
		"database.max_open_conns":    50,
		"database.conn_max_lifetime": "90s",
	}

	master, slaves, opts, err := BuildDBConfig(cfg, &log)
	require.NoError(t, err)
	assert.Equal(t, "postgres://master", master)
	assert.Equal(t, []string{"postgres://r1", "postgres://r2"}, slaves)
	assert.Equal(t, 50, opts.MaxOpenConns)
	assert.Equal(t, 5, opts.MaxIdleConns)
	assert.Equal(t, 90*time.Second, opts.ConnMaxLifetime)
}

func TestBadDurationFallsBack(t *testing.T) {
	log := zerolog.Nop()
	got := BuildTimeouts(mapSource{"timeouts.store": "soon", "timeouts.publish": "500ms"}, &log)
	assert.Equal(t, 5*time.Second, got.Store)
	assert.Equal(t, 500*time.Millisecond, got.Publish)
}
