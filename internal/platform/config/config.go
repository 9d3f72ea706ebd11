package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile            = ".env"
	defaultPort               = "8080"
	defaultReadTimeout        = 15 * time.Second
	defaultWriteTimeout       = 30 * time.Second
	defaultIdleTimeout        = 120 * time.Second
	defaultPrintfulBaseURL    = "https://api.printful.com"
	defaultCatalogPageSize    = 20
	defaultDetailConcurrency  = 4
	defaultSyncInterval       = 15 * time.Minute
	defaultUpstreamTimeout    = 30 * time.Second
	defaultSnapshotPath       = "variant-map.json"
	defaultSignatureHeader    = "X-Shopify-Hmac-Sha256"
	defaultArtifactPathPrefix = "qr"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Printful PrintfulConfig
	Webhook  WebhookConfig
	Artifact ArtifactConfig
	Snapshot SnapshotConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// PrintfulConfig holds fulfillment provider credentials and sync tuning.
type PrintfulConfig struct {
	APIKey            string
	BaseURL           string
	CatalogPageSize   int
	DetailConcurrency int
	SyncInterval      time.Duration
	RequestTimeout    time.Duration
}

// WebhookConfig contains inbound webhook security parameters.
type WebhookConfig struct {
	SigningSecret   string
	SignatureHeader string
}

// ArtifactConfig controls where generated QR images are hosted.
type ArtifactConfig struct {
	Bucket        string
	PublicBaseURL string
	PathPrefix    string
}

// SnapshotConfig locates the persisted variant mapping.
type SnapshotConfig struct {
	Path string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

type loadOptions struct {
	envFile string
	lookup  func(string) (string, bool)
}

// Option customises configuration loading.
type Option func(*loadOptions)

// WithEnvFile overrides the dotenv file consulted before the process environment.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		o.envFile = path
	}
}

// WithLookup overrides the environment lookup function, primarily for tests.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(o *loadOptions) {
		if lookup != nil {
			o.lookup = lookup
		}
	}
}

// Load reads configuration from the environment, applying defaults and
// validating required credentials.
func Load(opts ...Option) (Config, error) {
	options := loadOptions{
		envFile: defaultEnvFile,
		lookup:  os.LookupEnv,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	fileValues := loadEnvFile(options.envFile)
	get := func(key string) string {
		if value, ok := options.lookup(key); ok {
			return strings.TrimSpace(value)
		}
		return strings.TrimSpace(fileValues[key])
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         valueOrDefault(get("PORT"), defaultPort),
			ReadTimeout:  durationOrDefault(get("SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationOrDefault(get("SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationOrDefault(get("SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Printful: PrintfulConfig{
			APIKey:            get("PRINTFUL_API_KEY"),
			BaseURL:           valueOrDefault(get("PRINTFUL_BASE_URL"), defaultPrintfulBaseURL),
			CatalogPageSize:   intOrDefault(get("CATALOG_PAGE_SIZE"), defaultCatalogPageSize),
			DetailConcurrency: intOrDefault(get("CATALOG_DETAIL_CONCURRENCY"), defaultDetailConcurrency),
			SyncInterval:      durationOrDefault(get("CATALOG_SYNC_INTERVAL"), defaultSyncInterval),
			RequestTimeout:    durationOrDefault(get("PRINTFUL_REQUEST_TIMEOUT"), defaultUpstreamTimeout),
		},
		Webhook: WebhookConfig{
			SigningSecret:   get("WEBHOOK_SIGNING_SECRET"),
			SignatureHeader: valueOrDefault(get("WEBHOOK_SIGNATURE_HEADER"), defaultSignatureHeader),
		},
		Artifact: ArtifactConfig{
			Bucket:        get("ARTIFACT_BUCKET"),
			PublicBaseURL: get("ARTIFACT_PUBLIC_BASE_URL"),
			PathPrefix:    valueOrDefault(get("ARTIFACT_PATH_PREFIX"), defaultArtifactPathPrefix),
		},
		Snapshot: SnapshotConfig{
			Path: valueOrDefault(get("SNAPSHOT_PATH"), defaultSnapshotPath),
		},
	}

	var missing []string
	if cfg.Printful.APIKey == "" {
		missing = append(missing, "PRINTFUL_API_KEY")
	}
	if cfg.Webhook.SigningSecret == "" {
		missing = append(missing, "WEBHOOK_SIGNING_SECRET")
	}
	if cfg.Printful.CatalogPageSize <= 0 {
		missing = append(missing, "CATALOG_PAGE_SIZE")
	}
	if cfg.Printful.DetailConcurrency <= 0 {
		missing = append(missing, "CATALOG_DETAIL_CONCURRENCY")
	}
	if len(missing) > 0 {
		return Config{}, &ValidationError{fields: missing}
	}

	return cfg, nil
}

// loadEnvFile parses simple KEY=VALUE lines, ignoring comments and blanks.
// A missing file is not an error; the process environment always wins.
func loadEnvFile(path string) map[string]string {
	values := make(map[string]string)
	if path == "" {
		return values
	}

	file, err := os.Open(path)
	if err != nil {
		return values
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key != "" {
			values[key] = value
		}
	}
	return values
}

func valueOrDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func durationOrDefault(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func intOrDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
