package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Delivery  DeliveryConfig
	Webhook   WebhookConfig
	Jobs      JobsConfig
	Scheduler SchedulerConfig
	Orders    OrdersConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings.
// When disabled, order locks are held in process memory.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64 // upper bound for webhook payloads and API bodies
	TrustedProxies []string

	// webhook deliveries accepted per minute for one organization and provider, 0 disables
	WebhookRateLimit int
}

// ProviderEndpoints holds the base URLs of one delivery platform
type ProviderEndpoints struct {
	AuthURL string
	APIURL  string
	Scope   string
}

// DeliveryConfig holds outbound delivery platform settings
type DeliveryConfig struct {
	UberEats       ProviderEndpoints
	Deliveroo      ProviderEndpoints
	JustEat        ProviderEndpoints
	Timeout        time.Duration
	PublicBaseURL  string        // base of the webhook callback URLs handed to providers
	ClientCacheTTL time.Duration // lifetime of a cached provider client
}

// WebhookConfig holds the ingestion queue settings
type WebhookConfig struct {
	ProcessorEnabled bool
	MaxRetries       int
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	BatchSize        int
	PollInterval     time.Duration
	Retention        time.Duration
	Lease            time.Duration
}

// JobsConfig holds the endpoint of the external connectivity-test and menu-sync jobs
type JobsConfig struct {
	BaseURL              string
	APIKey               string
	ConnectivityFunction string
	MenuSyncFunction     string
	Timeout              time.Duration
}

// SchedulerConfig holds the maintenance cron configuration
type SchedulerConfig struct {
	Enabled         bool
	PurgeCron       string
	ReconcileCron   string
	ReconcileWindow time.Duration
	JobTimeout      time.Duration
}

// OrdersConfig holds order decision settings
type OrdersConfig struct {
	LockTTL time.Duration // how long an accept/reject may hold the per-order lock
}

// TelemetryConfig holds OpenTelemetry tracing configuration
type TelemetryConfig struct {
	Enabled           bool    // export spans to the collector
	CollectorEndpoint string  // OTLP gRPC endpoint, host:port
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool

	DBTraceEnabled    bool // add a span per query, only when Enabled
	DBLogFullSQL      bool // keep query variables in spans, never in production
	DBSlowQueryThresh time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with POS_ prefix (e.g., POS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),

			WebhookRateLimit: v.GetInt("http.webhook_rate_limit"),
		},
		Delivery: DeliveryConfig{
			UberEats:       loadEndpoints(v, "delivery.ubereats"),
			Deliveroo:      loadEndpoints(v, "delivery.deliveroo"),
			JustEat:        loadEndpoints(v, "delivery.justeat"),
			Timeout:        v.GetDuration("delivery.timeout"),
			PublicBaseURL:  v.GetString("delivery.public_base_url"),
			ClientCacheTTL: v.GetDuration("delivery.client_cache_ttl"),
		},
		Webhook: WebhookConfig{
			ProcessorEnabled: v.GetBool("webhook.processor_enabled"),
			MaxRetries:       v.GetInt("webhook.max_retries"),
			BaseBackoff:      v.GetDuration("webhook.base_backoff"),
			MaxBackoff:       v.GetDuration("webhook.max_backoff"),
			BatchSize:        v.GetInt("webhook.batch_size"),
			PollInterval:     v.GetDuration("webhook.poll_interval"),
			Retention:        v.GetDuration("webhook.retention"),
			Lease:            v.GetDuration("webhook.lease"),
		},
		Jobs: JobsConfig{
			BaseURL:              v.GetString("jobs.base_url"),
			APIKey:               v.GetString("jobs.api_key"),
			ConnectivityFunction: v.GetString("jobs.connectivity_function"),
			MenuSyncFunction:     v.GetString("jobs.menu_sync_function"),
			Timeout:              v.GetDuration("jobs.timeout"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         v.GetBool("scheduler.enabled"),
			PurgeCron:       v.GetString("scheduler.purge_cron"),
			ReconcileCron:   v.GetString("scheduler.reconcile_cron"),
			ReconcileWindow: v.GetDuration("scheduler.reconcile_window"),
			JobTimeout:      v.GetDuration("scheduler.job_timeout"),
		},
		Orders: OrdersConfig{
			LockTTL: v.GetDuration("orders.lock_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadEndpoints(v *viper.Viper, prefix string) ProviderEndpoints {
	return ProviderEndpoints{
		AuthURL: v.GetString(prefix + ".auth_url"),
		APIURL:  v.GetString(prefix + ".api_url"),
		Scope:   v.GetString(prefix + ".scope"),
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "pos-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "pos"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 5 << 20 // 5MB
	}

	// Delivery platform defaults point at production
	defaultEndpoints(&cfg.Delivery.UberEats, ProviderEndpoints{
		AuthURL: "https://auth.uber.com/oauth/v2/token",
		APIURL:  "https://api.uber.com",
		Scope:   "eats.store eats.order eats.store.orders.read eats.store.status.write",
	})
	defaultEndpoints(&cfg.Delivery.Deliveroo, ProviderEndpoints{
		AuthURL: "https://auth.developers.deliveroo.com/oauth2/token",
		APIURL:  "https://api.developers.deliveroo.com",
	})
	defaultEndpoints(&cfg.Delivery.JustEat, ProviderEndpoints{
		APIURL: "https://uk-partnerapi.just-eat.io",
	})
	if cfg.Delivery.Timeout == 0 {
		cfg.Delivery.Timeout = 30 * time.Second
	}
	if cfg.Delivery.PublicBaseURL == "" {
		cfg.Delivery.PublicBaseURL = "http://localhost:" + cfg.App.Port
	}
	if cfg.Delivery.ClientCacheTTL == 0 {
		cfg.Delivery.ClientCacheTTL = 30 * time.Minute
	}

	if cfg.Webhook.MaxRetries == 0 {
		cfg.Webhook.MaxRetries = 5
	}
	if cfg.Webhook.BaseBackoff == 0 {
		cfg.Webhook.BaseBackoff = 30 * time.Second
	}
	if cfg.Webhook.MaxBackoff == 0 {
		cfg.Webhook.MaxBackoff = time.Hour
	}
	if cfg.Webhook.BatchSize == 0 {
		cfg.Webhook.BatchSize = 50
	}
	if cfg.Webhook.PollInterval == 0 {
		cfg.Webhook.PollInterval = 5 * time.Second
	}
	if cfg.Webhook.Retention == 0 {
		cfg.Webhook.Retention = 168 * time.Hour
	}
	if cfg.Webhook.Lease == 0 {
		cfg.Webhook.Lease = 2 * time.Minute
	}

	if cfg.Jobs.ConnectivityFunction == "" {
		cfg.Jobs.ConnectivityFunction = "test-delivery-connection"
	}
	if cfg.Jobs.MenuSyncFunction == "" {
		cfg.Jobs.MenuSyncFunction = "sync-delivery-menu"
	}
	if cfg.Jobs.Timeout == 0 {
		cfg.Jobs.Timeout = 60 * time.Second
	}

	if cfg.Scheduler.PurgeCron == "" {
		cfg.Scheduler.PurgeCron = "0 3 * * *"
	}
	if cfg.Scheduler.ReconcileCron == "" {
		cfg.Scheduler.ReconcileCron = "*/10 * * * *"
	}
	if cfg.Scheduler.ReconcileWindow == 0 {
		cfg.Scheduler.ReconcileWindow = 24 * time.Hour
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 5 * time.Minute
	}

	if cfg.Orders.LockTTL == 0 {
		cfg.Orders.LockTTL = 45 * time.Second
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

func defaultEndpoints(ep *ProviderEndpoints, def ProviderEndpoints) {
	if ep.AuthURL == "" {
		ep.AuthURL = def.AuthURL
	}
	if ep.APIURL == "" {
		ep.APIURL = def.APIURL
	}
	if ep.Scope == "" {
		ep.Scope = def.Scope
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if _, err := url.ParseRequestURI(c.Delivery.PublicBaseURL); err != nil {
		return fmt.Errorf("delivery.public_base_url is not a valid URL: %w", err)
	}

	if c.Webhook.MaxRetries < 1 {
		return fmt.Errorf("webhook.max_retries must be at least 1")
	}
	if c.Webhook.MaxBackoff < c.Webhook.BaseBackoff {
		return fmt.Errorf("webhook.max_backoff (%s) cannot be shorter than webhook.base_backoff (%s)",
			c.Webhook.MaxBackoff, c.Webhook.BaseBackoff)
	}
	if c.Webhook.BatchSize < 1 {
		return fmt.Errorf("webhook.batch_size must be positive")
	}

	if c.Orders.LockTTL <= c.Delivery.Timeout {
		return fmt.Errorf("orders.lock_ttl (%s) must exceed delivery.timeout (%s)",
			c.Orders.LockTTL, c.Delivery.Timeout)
	}

	if _, err := cron.ParseStandard(c.Scheduler.PurgeCron); err != nil {
		return fmt.Errorf("scheduler.purge_cron is invalid: %w", err)
	}
	if _, err := cron.ParseStandard(c.Scheduler.ReconcileCron); err != nil {
		return fmt.Errorf("scheduler.reconcile_cron is invalid: %w", err)
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if !strings.HasPrefix(c.Delivery.PublicBaseURL, "https://") {
			return fmt.Errorf("delivery.public_base_url must use https in production")
		}
		if c.Jobs.BaseURL == "" {
			return fmt.Errorf("jobs.base_url is required in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
