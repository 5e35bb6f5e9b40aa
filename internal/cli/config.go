package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	errs "github.com/matzehuels/crateindex/pkg/errors"
	"github.com/matzehuels/crateindex/pkg/fetch"
	cio "github.com/matzehuels/crateindex/pkg/io"
	"github.com/matzehuels/crateindex/pkg/pipeline"
)

// defaultConfigFile is read from the working directory when --config is not
// given and the file exists.
const defaultConfigFile = "crateindex.toml"

// envPrefix prefixes every environment override.
const envPrefix = "CRATEINDEX_"

// Config is the file and environment configuration. Command-line flags
// override it per command.
type Config struct {
	Source SourceConfig `toml:"source"`
	Output OutputConfig `toml:"output"`
	Redis  RedisConfig  `toml:"redis"`
	S3     S3Config     `toml:"s3"`
	Serve  ServeConfig  `toml:"serve"`
}

// SourceConfig locates the snapshot.
type SourceConfig struct {
	URL     string `toml:"url"`
	Archive string `toml:"archive"`
	// LastUpdated is the path of the last_updated marker. Empty means the
	// marker inside the output directory.
	LastUpdated string `toml:"last_updated"`
}

// OutputConfig locates the artifact directory.
type OutputConfig struct {
	Dir string `toml:"dir"`
}

// RedisConfig enables the Redis sink when Addr is set.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// S3Config enables the S3 sink when Endpoint is set.
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	Prefix    string `toml:"prefix"`
	UseSSL    bool   `toml:"use_ssl"`
}

// ServeConfig configures the HTTP API.
type ServeConfig struct {
	Addr      string `toml:"addr"`
	CacheSize int    `toml:"cache_size"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{URL: fetch.DefaultURL, Archive: pipeline.DefaultArchive},
		Output: OutputConfig{Dir: pipeline.DefaultOutputDir},
		Redis:  RedisConfig{Prefix: "crateindex:"},
		S3:     S3Config{Region: "us-east-1", UseSSL: true},
		Serve:  ServeConfig{Addr: ":8080", CacheSize: 4096},
	}
}

// LoadConfig builds the configuration from defaults, the TOML file at path
// and the environment (including a .env file in the working directory). An
// empty path reads crateindex.toml if present.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errs.Wrap(errs.ErrCodeInvalidConfig, err, "parse %s", path)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, errs.Wrap(errs.ErrCodeInvalidConfig, err, "read %s", path)
	}

	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errs.Wrap(errs.ErrCodeInvalidConfig, err, "%s%s", envPrefix, name)
		}
		*dst = n
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errs.Wrap(errs.ErrCodeInvalidConfig, err, "%s%s", envPrefix, name)
		}
		*dst = b
		return nil
	}

	str("SOURCE_URL", &cfg.Source.URL)
	str("ARCHIVE", &cfg.Source.Archive)
	str("LAST_UPDATED", &cfg.Source.LastUpdated)
	str("OUTPUT_DIR", &cfg.Output.Dir)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("REDIS_PREFIX", &cfg.Redis.Prefix)
	str("S3_ENDPOINT", &cfg.S3.Endpoint)
	str("S3_BUCKET", &cfg.S3.Bucket)
	str("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	str("S3_SECRET_KEY", &cfg.S3.SecretKey)
	str("S3_REGION", &cfg.S3.Region)
	str("S3_PREFIX", &cfg.S3.Prefix)
	str("SERVE_ADDR", &cfg.Serve.Addr)

	for _, err := range []error{
		num("REDIS_DB", &cfg.Redis.DB),
		num("SERVE_CACHE_SIZE", &cfg.Serve.CacheSize),
		boolean("S3_USE_SSL", &cfg.S3.UseSSL),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// LastUpdatedPath returns the marker path, defaulting into the output
// directory.
func (c Config) LastUpdatedPath() string {
	if c.Source.LastUpdated != "" {
		return c.Source.LastUpdated
	}
	return filepath.Join(c.Output.Dir, cio.LastUpdatedName)
}

// Sinks returns the artifact sinks enabled by the configuration. The
// directory sink is always first. The returned closer releases clients.
func (c Config) Sinks() ([]cio.Sink, func(), error) {
	sinks := []cio.Sink{cio.DirSink{Dir: c.Output.Dir}}
	closers := []func(){}
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}

	if c.Redis.Addr != "" {
		rs, err := cio.NewRedisSink(cio.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		})
		if err != nil {
			return nil, closeAll, errs.Wrap(errs.ErrCodeInvalidConfig, err, "redis")
		}
		sinks = append(sinks, rs)
		closers = append(closers, func() { _ = rs.Close() })
	}

	if c.S3.Endpoint != "" {
		ss, err := cio.NewS3Sink(cio.S3Config{
			Endpoint:  c.S3.Endpoint,
			Bucket:    c.S3.Bucket,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
			Region:    c.S3.Region,
			Prefix:    c.S3.Prefix,
			UseSSL:    c.S3.UseSSL,
		})
		if err != nil {
			closeAll()
			return nil, func() {}, errs.Wrap(errs.ErrCodeInvalidConfig, err, "s3")
		}
		sinks = append(sinks, ss)
	}
	return sinks, closeAll, nil
}
