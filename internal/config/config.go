package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type Config struct {
	Port     string `yaml:"port"`
	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`
	Secret   string `yaml:"secret"`

	TokenTTL     time.Duration `yaml:"token_ttl"`
	RequireToken bool          `yaml:"require_token"`

	LedgerPath string `yaml:"ledger_path"`
	UploadDir  string `yaml:"upload_dir"`
	Storage    string `yaml:"storage"`
	S3         S3     `yaml:"s3"`

	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// S3 holds the bucket settings used when Storage is "s3".
type S3 struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

func Default() *Config {
	return &Config{
		Port:       "8000",
		DBDriver:   "sqlite3",
		DBDSN:      "university.db",
		Secret:     "your-secret-key-here",
		TokenTTL:   30 * time.Minute,
		LedgerPath: "olympiads_data.xlsx",
		UploadDir:  "uploads",
		Storage:    StorageLocal,
		S3:         S3{Prefix: "uploads"},
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads filename on top of Default. A .env file in the working directory,
// if any, is loaded first so that its values take part in the environment overrides.
func Load(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "load .env")
	}

	config := Default()
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrapf(err, "parse %s", filename)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBDSN = getEnv("DB_DSN", c.DBDSN)
	c.Secret = getEnv("SECRET", c.Secret)
	c.LedgerPath = getEnv("LEDGER_PATH", c.LedgerPath)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.Storage = getEnv("STORAGE", c.Storage)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.S3.AccessKeyID)
	c.S3.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", c.S3.SecretAccessKey)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	if v, ok := os.LookupEnv("TOKEN_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "TOKEN_TTL")
		}
		c.TokenTTL = ttl
	}
	if v, ok := os.LookupEnv("REQUIRE_TOKEN"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "REQUIRE_TOKEN")
		}
		c.RequireToken = b
	}
	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.Port == "" {
		result = multierror.Append(result, errors.New("port is required"))
	}
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		result = multierror.Append(result, errors.Errorf("unsupported db_driver %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		result = multierror.Append(result, errors.New("db_dsn is required"))
	}
	if c.Secret == "" {
		result = multierror.Append(result, errors.New("secret is required"))
	}
	if c.TokenTTL <= 0 {
		result = multierror.Append(result, errors.New("token_ttl must be positive"))
	}
	if c.LedgerPath == "" {
		result = multierror.Append(result, errors.New("ledger_path is required"))
	}
	switch c.Storage {
	case StorageLocal:
		if c.UploadDir == "" {
			result = multierror.Append(result, errors.New("upload_dir is required for local storage"))
		}
	case StorageS3:
		if c.S3.Bucket == "" {
			result = multierror.Append(result, errors.New("s3.bucket is required for s3 storage"))
		}
		if c.S3.Region == "" {
			result = multierror.Append(result, errors.New("s3.region is required for s3 storage"))
		}
	default:
		result = multierror.Append(result, errors.Errorf("unsupported storage %q", c.Storage))
	}
	return result.ErrorOrNil()
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
