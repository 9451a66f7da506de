package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "PWKEEPER"

// fileKeys maps config file keys (and PWKEEPER_<KEY> variables) onto Config.
var fileKeys = map[string]func(c *Config, v *viper.Viper, key string){
	"grpc_addr":              func(c *Config, v *viper.Viper, k string) { c.EndpointAddrGRPC = v.GetString(k) },
	"metrics_addr":           func(c *Config, v *viper.Viper, k string) { c.EndpointAddrMetrics = v.GetString(k) },
	"database_dsn":           func(c *Config, v *viper.Viper, k string) { c.DatabaseDSN = v.GetString(k) },
	"secret_key":             func(c *Config, v *viper.Viper, k string) { c.SecretKey = v.GetString(k) },
	"jwt_algorithm":          func(c *Config, v *viper.Viper, k string) { c.JWTAlgorithm = v.GetString(k) },
	"access_token_ttl":       func(c *Config, v *viper.Viper, k string) { c.AccessTokenValidityDuration = v.GetDuration(k) },
	"refresh_token_ttl":      func(c *Config, v *viper.Viper, k string) { c.RefreshTokenValidityDuration = v.GetDuration(k) },
	"refresh_token_hash_key": func(c *Config, v *viper.Viper, k string) { c.RefreshTokenHashKey = v.GetString(k) },
	"argon2_memory_kib":      func(c *Config, v *viper.Viper, k string) { c.Argon2MemoryKiB = v.GetUint32(k) },
	"argon2_iterations":      func(c *Config, v *viper.Viper, k string) { c.Argon2Iterations = v.GetUint32(k) },
	"argon2_parallelism":     func(c *Config, v *viper.Viper, k string) { c.Argon2Parallelism = v.GetUint(k) },
	"s3_access_key":          func(c *Config, v *viper.Viper, k string) { c.S3AccessKey = v.GetString(k) },
	"s3_secret_key":          func(c *Config, v *viper.Viper, k string) { c.S3SecretKey = v.GetString(k) },
	"s3_bucket":              func(c *Config, v *viper.Viper, k string) { c.S3Bucket = v.GetString(k) },
	"s3_region":              func(c *Config, v *viper.Viper, k string) { c.S3Region = v.GetString(k) },
	"s3_base_endpoint":       func(c *Config, v *viper.Viper, k string) { c.S3BaseEndpoint = v.GetString(k) },
	"log_level":              func(c *Config, v *viper.Viper, k string) { c.LogLevel = v.GetString(k) },
	"log_format":             func(c *Config, v *viper.Viper, k string) { c.LogFormat = v.GetString(k) },
	"environment":            func(c *Config, v *viper.Viper, k string) { c.Environment = v.GetString(k) },
	"shutdown_timeout":       func(c *Config, v *viper.Viper, k string) { c.ShutdownTimeout = v.GetDuration(k) },
}

// parseFile overlays values from the config file at path (any format viper
// understands, picked by extension) and from PWKEEPER_* environment
// variables. Environment wins over the file. Only keys that are present
// change the Config. An empty path skips the file.
func parseFile(config *Config, path string) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key := range fileKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	for key, apply := range fileKeys {
		if v.IsSet(key) {
			apply(config, v, key)
		}
	}

	return nil
}
