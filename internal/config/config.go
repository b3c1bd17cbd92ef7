package config

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"eduops/internal/blobstore"
	"eduops/internal/upload"
)

const (
	DefaultAPIURL      = "http://127.0.0.1:7433"
	DefaultDBFileName  = ".eduops.db"
	DefaultBlobDirName = ".eduops-blobs"
	DefaultLogLevel    = "info"

	DefaultGCBatchSize    = 500
	DefaultTokenTTL       = "24h"
	DefaultUpcomingWindow = "7d"

	configFileName           = ".eduops.toml"
	configDirEnvKey          = "EDUOPS_CONFIG_DIR"
	trustProjectConfigEnvKey = "EDUOPS_TRUST_PROJECT_CONFIG"
)

// BlobConfig selects the blob backend.
type BlobConfig struct {
	Backend     string `toml:"backend"`
	Root        string `toml:"root"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3Prefix    string `toml:"s3_prefix"`
	S3PathStyle bool   `toml:"s3_path_style"`
}

// AttachmentConfig holds upload limits and orphan collection settings.
type AttachmentConfig struct {
	MaxFileBytes         int64    `toml:"max_file_bytes"`
	SingleCallThreshold  int64    `toml:"single_call_threshold"`
	ChunkSize            int64    `toml:"chunk_size"`
	AllowedDocumentTypes []string `toml:"allowed_document_types"`
	AllowedImageTypes    []string `toml:"allowed_image_types"`
	GCBatchSize          int      `toml:"gc_batch_size"`
	GCMinAge             string   `toml:"gc_min_age"`
}

// AuthConfig enables bearer tokens when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	TokenTTL  string `toml:"token_ttl"`
}

// TimelineConfig tunes timeline queries.
type TimelineConfig struct {
	UpcomingWindow string `toml:"upcoming_window"`
}

// Config defines runtime configuration for eduops.
type Config struct {
	APIURL                   string           `toml:"api_url"`
	DBPath                   string           `toml:"db_path"`
	LogLevel                 string           `toml:"log_level"`
	Blobs                    BlobConfig       `toml:"blobs"`
	Attachments              AttachmentConfig `toml:"attachments"`
	Auth                     AuthConfig       `toml:"auth"`
	Timeline                 TimelineConfig   `toml:"timeline"`
	TrustedProjectConfigPath string           `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		LogLevel: DefaultLogLevel,
		Blobs: BlobConfig{
			Backend: blobstore.BackendLocal,
		},
		Attachments: AttachmentConfig{
			MaxFileBytes:        upload.MaxFileBytes,
			SingleCallThreshold: upload.SingleCallThreshold,
			ChunkSize:           upload.ChunkSize,
			GCBatchSize:         DefaultGCBatchSize,
		},
		Auth: AuthConfig{
			TokenTTL: DefaultTokenTTL,
		},
		Timeline: TimelineConfig{
			UpcomingWindow: DefaultUpcomingWindow,
		},
	}
}

// mergeFile decodes the TOML file at path over cfg. A missing file is not an
// error; keys outside the schema are, so typos do not pass silently.
func mergeFile(path string, cfg *Config) (bool, error) {
	switch info, err := os.Stat(path); {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	case info.IsDir():
		return false, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return false, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return true, nil
}

func configDirOverride() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func envBool(key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && value
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"log_level",
	"blobs.backend",
	"blobs.root",
	"blobs.s3_bucket",
	"blobs.s3_region",
	"blobs.s3_endpoint",
	"blobs.s3_prefix",
	"blobs.s3_path_style",
	"attachments.max_file_bytes",
	"attachments.single_call_threshold",
	"attachments.chunk_size",
	"attachments.allowed_document_types",
	"attachments.allowed_image_types",
	"attachments.gc_batch_size",
	"attachments.gc_min_age",
	"auth.jwt_secret",
	"auth.token_ttl",
	"timeline.upcoming_window",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	return slices.Contains(allowedKeys, key)
}

// Get returns the value of a config key. The JWT secret is never echoed.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "blobs.backend":
		return c.Blobs.Backend, nil
	case "blobs.root":
		return c.Blobs.Root, nil
	case "blobs.s3_bucket":
		return c.Blobs.S3Bucket, nil
	case "blobs.s3_region":
		return c.Blobs.S3Region, nil
	case "blobs.s3_endpoint":
		return c.Blobs.S3Endpoint, nil
	case "blobs.s3_prefix":
		return c.Blobs.S3Prefix, nil
	case "blobs.s3_path_style":
		return strconv.FormatBool(c.Blobs.S3PathStyle), nil
	case "attachments.max_file_bytes":
		return strconv.FormatInt(c.Attachments.MaxFileBytes, 10), nil
	case "attachments.single_call_threshold":
		return strconv.FormatInt(c.Attachments.SingleCallThreshold, 10), nil
	case "attachments.chunk_size":
		return strconv.FormatInt(c.Attachments.ChunkSize, 10), nil
	case "attachments.allowed_document_types":
		return strings.Join(c.Attachments.AllowedDocumentTypes, ","), nil
	case "attachments.allowed_image_types":
		return strings.Join(c.Attachments.AllowedImageTypes, ","), nil
	case "attachments.gc_batch_size":
		return strconv.Itoa(c.Attachments.GCBatchSize), nil
	case "attachments.gc_min_age":
		return c.Attachments.GCMinAge, nil
	case "auth.jwt_secret":
		if c.Auth.JWTSecret == "" {
			return "", nil
		}
		return "(set)", nil
	case "auth.token_ttl":
		return c.Auth.TokenTTL, nil
	case "timeline.upcoming_window":
		return c.Timeline.UpcomingWindow, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	return configPathIn(os.UserHomeDir)
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	return configPathIn(os.Getwd)
}

// configPathIn places the config file in the directory dir returns, unless
// EDUOPS_CONFIG_DIR points elsewhere.
func configPathIn(dir func() (string, error)) (string, error) {
	if path, ok := configDirOverride(); ok {
		return path, nil
	}
	base, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, configFileName), nil
}

// SetKey validates value for key and writes it into the TOML file at path,
// keeping the other keys. The file is replaced atomically.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}
	parsed, err := parseSetValue(key, value)
	if err != nil {
		return err
	}

	tree := map[string]any{}
	if _, err := toml.DecodeFile(path, &tree); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := setNestedKey(tree, strings.Split(key, "."), parsed); err != nil {
		return err
	}
	return writeTOML(path, tree)
}

func writeTOML(path string, tree map[string]any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, configFileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(tree); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load builds the effective config: defaults, then the global file (or the
// EDUOPS_CONFIG_DIR file), then a trusted project file, then environment.
func Load() (*Config, error) {
	cfg := Default()

	if path, ok := configDirOverride(); ok {
		if _, err := mergeFile(path, &cfg); err != nil {
			return nil, err
		}
	} else {
		if path, err := GlobalPath(); err == nil {
			if _, err := mergeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
		if envBool(trustProjectConfigEnvKey) {
			if path, err := ProjectPath(); err == nil {
				found, err := mergeFile(path, &cfg)
				if err != nil {
					return nil, err
				}
				if found {
					cfg.TrustedProjectConfigPath = path
				}
			}
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	applyEnv(&cfg)
	cfg.normalize()
	return &cfg, nil
}

// envOverrides lists the variables that win over any file.
var envOverrides = []struct {
	key   string
	apply func(*Config, string)
}{
	{"EDUOPS_API_URL", func(c *Config, v string) { c.APIURL = v }},
	{"EDUOPS_DB", func(c *Config, v string) { c.DBPath = v }},
	{"EDUOPS_LOG_LEVEL", func(c *Config, v string) { c.LogLevel = v }},
	{"EDUOPS_JWT_SECRET", func(c *Config, v string) { c.Auth.JWTSecret = v }},
	{"EDUOPS_BLOB_BACKEND", func(c *Config, v string) { c.Blobs.Backend = v }},
	{"EDUOPS_S3_BUCKET", func(c *Config, v string) { c.Blobs.S3Bucket = v }},
}

func applyEnv(cfg *Config) {
	for _, override := range envOverrides {
		if value := strings.TrimSpace(os.Getenv(override.key)); value != "" {
			override.apply(cfg, value)
		}
	}
}

// UploadPolicy returns the upload limits and allow-lists. Empty lists fall
// back to the built-in defaults.
func (c *Config) UploadPolicy() upload.Policy {
	return upload.Policy{
		MaxFileBytes:        c.Attachments.MaxFileBytes,
		SingleCallThreshold: c.Attachments.SingleCallThreshold,
		ChunkSize:           c.Attachments.ChunkSize,
		DocumentTypes:       c.Attachments.AllowedDocumentTypes,
		ImageTypes:          c.Attachments.AllowedImageTypes,
	}.Normalized()
}

// BlobOptions returns backend options. A local backend without a root
// keeps blobs next to the database.
func (c *Config) BlobOptions() blobstore.Options {
	root := c.Blobs.Root
	if root == "" && c.DBPath != "" {
		root = filepath.Join(filepath.Dir(c.DBPath), DefaultBlobDirName)
	}
	return blobstore.Options{
		Backend: c.Blobs.Backend,
		Root:    root,
		S3: blobstore.S3Config{
			Bucket:       c.Blobs.S3Bucket,
			Region:       c.Blobs.S3Region,
			Endpoint:     c.Blobs.S3Endpoint,
			UsePathStyle: c.Blobs.S3PathStyle,
			Prefix:       c.Blobs.S3Prefix,
		},
	}
}

// TokenTTL parses auth.token_ttl.
func (c *Config) TokenTTL() (time.Duration, error) {
	return parseDuration("auth.token_ttl", c.Auth.TokenTTL)
}

// GCMinAge parses attachments.gc_min_age. Empty means zero.
func (c *Config) GCMinAge() (time.Duration, error) {
	return parseDuration("attachments.gc_min_age", c.Attachments.GCMinAge)
}

// UpcomingWindow parses timeline.upcoming_window.
func (c *Config) UpcomingWindow() (time.Duration, error) {
	return parseDuration("timeline.upcoming_window", c.Timeline.UpcomingWindow)
}

// parseDuration accepts Go durations plus a whole-day "Nd" form.
func parseDuration(key, value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%s: invalid day count %q", key, value)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "attachments.max_file_bytes", "attachments.single_call_threshold", "attachments.chunk_size":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "attachments.gc_batch_size":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "blobs.s3_path_style":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "attachments.gc_min_age", "auth.token_ttl", "timeline.upcoming_window":
		if _, err := parseDuration(key, value); err != nil {
			return nil, err
		}
		return value, nil
	case "blobs.backend":
		backend := strings.ToLower(value)
		if backend != blobstore.BackendLocal && backend != blobstore.BackendS3 {
			return nil, fmt.Errorf("%s must be %q or %q", key, blobstore.BackendLocal, blobstore.BackendS3)
		}
		return backend, nil
	case "attachments.allowed_document_types", "attachments.allowed_image_types":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.Blobs.Backend) == "" {
		c.Blobs.Backend = blobstore.BackendLocal
	}
	if c.Attachments.MaxFileBytes <= 0 {
		c.Attachments.MaxFileBytes = upload.MaxFileBytes
	}
	if c.Attachments.SingleCallThreshold <= 0 {
		c.Attachments.SingleCallThreshold = upload.SingleCallThreshold
	}
	if c.Attachments.ChunkSize <= 0 {
		c.Attachments.ChunkSize = upload.ChunkSize
	}
	if c.Attachments.GCBatchSize <= 0 {
		c.Attachments.GCBatchSize = DefaultGCBatchSize
	}
	c.Attachments.AllowedDocumentTypes = normalizeConfiguredMediaTypes(c.Attachments.AllowedDocumentTypes)
	c.Attachments.AllowedImageTypes = normalizeConfiguredMediaTypes(c.Attachments.AllowedImageTypes)
}

func normalizeConfiguredMediaTypes(rawValues []string) []string {
	if len(rawValues) == 0 {
		return nil
	}
	out := make([]string, 0, len(rawValues))
	seen := map[string]struct{}{}
	for _, raw := range rawValues {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, _, err := mime.ParseMediaType(raw)
		if err != nil {
			continue
		}
		normalized := strings.ToLower(strings.TrimSpace(parsed))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
