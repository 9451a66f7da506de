package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, ":9090", c.EndpointAddrMetrics)
	assert.Equal(t, "HS256", c.JWTAlgorithm)
	assert.Equal(t, 30*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 30*24*time.Hour, c.RefreshTokenValidityDuration)
	assert.Equal(t, DefaultSecretKey, c.SecretKey)
	assert.Equal(t, uint32(64*1024), c.Argon2MemoryKiB)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
	require.NoError(t, c.Validate())
}

func TestLoad_NoSources(t *testing.T) {
	t.Setenv("PWKEEPER_CONFIG", "")

	c, err := Load(nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeTempFile(t, "cfg.yaml", `
grpc_addr: ":7000"
secret_key: from-file
access_token_ttl: 5m
log_level: debug
`)
	t.Setenv("PWKEEPER_SECRET_KEY", "from-env")
	t.Setenv("PWKEEPER_LOG_LEVEL", "warn")

	c, err := Load([]string{"-c", path, "-l", "error", "-x", "ignored"})
	require.NoError(t, err)

	assert.Equal(t, ":7000", c.EndpointAddrGRPC)
	assert.Equal(t, "from-env", c.SecretKey)
	assert.Equal(t, 5*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, "error", c.LogLevel)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := writeTempFile(t, "cfg.json", `{"metrics_addr": ":9999"}`)
	t.Setenv("PWKEEPER_CONFIG", path)

	c, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.EndpointAddrMetrics)
}

func TestLoad_InvalidResult(t *testing.T) {
	t.Setenv("PWKEEPER_CONFIG", "")
	t.Setenv("PWKEEPER_JWT_ALGORITHM", "RS256")

	_, err := Load(nil)
	assert.ErrorContains(t, err, "unsupported jwt algorithm")
}

func TestLoad_ParallelismOutOfRange(t *testing.T) {
	t.Setenv("PWKEEPER_CONFIG", "")
	t.Setenv("PWKEEPER_ARGON2_PARALLELISM", "257")

	_, err := Load(nil)
	assert.ErrorContains(t, err, "argon2 parallelism must be at most 255")

	t.Setenv("PWKEEPER_ARGON2_PARALLELISM", "255")
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), cfg.Argon2Params().Parallelism)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.LoadDefaults()
		return c
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"empty secret", func(c *Config) { c.SecretKey = "" }, "secret key must not be empty"},
		{"default secret in production", func(c *Config) { c.Environment = EnvProduction }, "not allowed in production"},
		{"bad algorithm", func(c *Config) { c.JWTAlgorithm = "none" }, "unsupported jwt algorithm"},
		{"zero access ttl", func(c *Config) { c.AccessTokenValidityDuration = 0 }, "access token validity"},
		{"negative refresh ttl", func(c *Config) { c.RefreshTokenValidityDuration = -time.Second }, "refresh token validity"},
		{"empty dsn", func(c *Config) { c.DatabaseDSN = "" }, "database dsn"},
		{"bad argon2", func(c *Config) { c.Argon2Iterations = 0 }, "argon2 iterations"},
		{"argon2 parallelism overflow", func(c *Config) { c.Argon2Parallelism = 256 }, "argon2 parallelism must be at most 255"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log level"},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}

	c := valid()
	c.Environment = EnvProduction
	c.SecretKey = "a-real-secret"
	assert.NoError(t, c.Validate())
}

func TestRefreshHashKey(t *testing.T) {
	c := &Config{SecretKey: "signing"}
	assert.Equal(t, []byte("signing"), c.RefreshHashKey())

	c.RefreshTokenHashKey = "pepper"
	assert.Equal(t, []byte("pepper"), c.RefreshHashKey())
}

func TestArgon2Params(t *testing.T) {
	c := &Config{Argon2MemoryKiB: 1024, Argon2Iterations: 2, Argon2Parallelism: 1}
	p := c.Argon2Params()

	assert.Equal(t, uint32(1024), p.MemoryKiB)
	assert.Equal(t, uint32(2), p.Iterations)
	assert.Equal(t, uint8(1), p.Parallelism)
	assert.Equal(t, uint32(32), p.KeyLength)
}
