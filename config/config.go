package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	JWTTTLHours        int
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Optional TLS; both must be set to serve HTTPS.
	TLSCertFile string
	TLSKeyFile  string
	// Timezone in which daily and monthly periods are evaluated.
	Timezone string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: mysql or sqlite
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	SQLitePath  string
	// SMTP for reminder notifications
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool
	// Redis for caching, token blacklist and job locks. Empty host disables it.
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Scheduler
	DecayRunAt string
	// Reminder delivery queue
	QueueBackend          string
	AMQPURL               string
	AMQPQueue             string
	ReminderWorkers       int
	DeliveryRatePerSecond float64
	DeliveryBurst         int
	DeliveryMaxRetries    int
	DeliveryBaseDelaySec  int
	DeliveryMaxDelaySec   int
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: .env -> config/config.json -> defaults -> environment variable overrides
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}
	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		log.Fatal(err)
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}
	if _, err := cfg.Location(); err != nil {
		log.Fatalf("invalid timezone %q: %v", cfg.Timezone, err)
	}
	if _, _, err := cfg.DecayTime(); err != nil {
		log.Fatalf("invalid decay run time %q: %v", cfg.DecayRunAt, err)
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Location returns the timezone used for period boundaries and reminder matching.
func (c AppConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// DecayTime parses DecayRunAt ("HH:MM").
func (c AppConfig) DecayTime() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.DecayRunAt)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}

// RedisEnabled reports whether a Redis host is configured.
func (c AppConfig) RedisEnabled() bool {
	return c.RedisHost != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads a grouped JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if f, ok := m[key].(float64); ok {
			return int(f)
		}
		return 0
	}
	getFloat := func(m map[string]any, key string) float64 {
		f, _ := m[key].(float64)
		return f
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.JWTTTLHours = getInt(app, "JWTTTLHours")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.Timezone = getString(app, "Timezone")
		out.TLSCertFile = getString(app, "TLSCertFile")
		out.TLSKeyFile = getString(app, "TLSKeyFile")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
		out.SQLitePath = getString(dbs, "SQLitePath")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if sm, ok := raw["smtp"].(map[string]any); ok {
		out.SMTPHost = getString(sm, "SMTPHost")
		out.SMTPPort = getInt(sm, "SMTPPort")
		out.SMTPUsername = getString(sm, "SMTPUsername")
		out.SMTPPassword = getString(sm, "SMTPPassword")
		out.SMTPFrom = getString(sm, "SMTPFrom")
		out.SMTPFromName = getString(sm, "SMTPFromName")
		out.SMTPTLS = getBool(sm, "SMTPTLS")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.GinMode = getString(lg, "GinMode")
		out.GinPath = getString(lg, "GinPath")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	if sc, ok := raw["scheduler"].(map[string]any); ok {
		out.DecayRunAt = getString(sc, "DecayRunAt")
	}

	if q, ok := raw["queue"].(map[string]any); ok {
		out.QueueBackend = getString(q, "Backend")
		out.AMQPURL = getString(q, "AMQPURL")
		out.AMQPQueue = getString(q, "AMQPQueue")
		out.ReminderWorkers = getInt(q, "Workers")
		out.DeliveryRatePerSecond = getFloat(q, "RatePerSecond")
		out.DeliveryBurst = getInt(q, "Burst")
		out.DeliveryMaxRetries = getInt(q, "MaxRetries")
		out.DeliveryBaseDelaySec = getInt(q, "BaseDelaySec")
		out.DeliveryMaxDelaySec = getInt(q, "MaxDelaySec")
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.JWTTTLHours == 0 {
		c.JWTTTLHours = 72
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "habitd"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "habitd.db"
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.DecayRunAt == "" {
		c.DecayRunAt = "00:05"
	}
	if c.QueueBackend == "" {
		c.QueueBackend = "memory"
	}
	if c.AMQPQueue == "" {
		c.AMQPQueue = "habitd.reminders"
	}
	if c.ReminderWorkers == 0 {
		c.ReminderWorkers = 4
	}
	if c.DeliveryRatePerSecond == 0 {
		c.DeliveryRatePerSecond = 5
	}
	if c.DeliveryBurst == 0 {
		c.DeliveryBurst = 10
	}
	if c.DeliveryMaxRetries == 0 {
		c.DeliveryMaxRetries = 3
	}
	if c.DeliveryBaseDelaySec == 0 {
		c.DeliveryBaseDelaySec = 30
	}
	if c.DeliveryMaxDelaySec == 0 {
		c.DeliveryMaxDelaySec = 1800
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	strs := map[string]*string{
		"APP_PORT":       &c.AppPort,
		"JWT_SECRET":     &c.JWTSecret,
		"TIMEZONE":       &c.Timezone,
		"TLS_CERT_FILE":  &c.TLSCertFile,
		"TLS_KEY_FILE":   &c.TLSKeyFile,
		"GIN_MODE":       &c.GinMode,
		"GIN_PATH":       &c.GinPath,
		"DB_DRIVER":      &c.DBDriver,
		"DATABASE_URI":   &c.DatabaseURI,
		"DB_HOST":        &c.DBHost,
		"DB_PORT":        &c.DBPort,
		"DB_USER":        &c.DBUser,
		"DB_PASSWORD":    &c.DBPassword,
		"DB_NAME":        &c.DBName,
		"SQLITE_PATH":    &c.SQLitePath,
		"SMTP_HOST":      &c.SMTPHost,
		"SMTP_USERNAME":  &c.SMTPUsername,
		"SMTP_PASSWORD":  &c.SMTPPassword,
		"SMTP_FROM":      &c.SMTPFrom,
		"SMTP_FROM_NAME": &c.SMTPFromName,
		"REDIS_HOST":     &c.RedisHost,
		"REDIS_PASSWORD": &c.RedisPassword,
		"LOG_LEVEL":      &c.LogLevel,
		"LOG_PATH":       &c.LogPath,
		"DECAY_RUN_AT":   &c.DecayRunAt,
		"QUEUE_BACKEND":  &c.QueueBackend,
		"AMQP_URL":       &c.AMQPURL,
		"AMQP_QUEUE":     &c.AMQPQueue,
	}
	for key, dst := range strs {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"JWT_TTL_HOURS":           &c.JWTTTLHours,
		"RATE_LIMIT_PER_MINUTE":   &c.RateLimitPerMinute,
		"SMTP_PORT":               &c.SMTPPort,
		"REDIS_PORT":              &c.RedisPort,
		"REDIS_DB":                &c.RedisDB,
		"LOG_MAX_SIZE_MB":         &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":         &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":        &c.LogMaxAgeDays,
		"REMINDER_WORKERS":        &c.ReminderWorkers,
		"DELIVERY_BURST":          &c.DeliveryBurst,
		"DELIVERY_MAX_RETRIES":    &c.DeliveryMaxRetries,
		"DELIVERY_BASE_DELAY_SEC": &c.DeliveryBaseDelaySec,
		"DELIVERY_MAX_DELAY_SEC":  &c.DeliveryMaxDelaySec,
	}
	for key, dst := range ints {
		if v := getEnv(key, ""); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
			*dst = i
		}
	}

	if v := getEnv("DELIVERY_RATE_PER_SECOND", ""); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid number for DELIVERY_RATE_PER_SECOND: %w", err)
		}
		c.DeliveryRatePerSecond = f
	}
	if v := getEnv("SMTP_TLS", ""); v != "" {
		c.SMTPTLS = v == "true"
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	return nil
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
