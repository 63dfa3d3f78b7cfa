// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/rc4lifting/rc4-facilities-bot/internal/facility"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken      = "TELEGRAM_TOKEN"
	KeyBotOwner           = "BOT_OWNER"
	KeyStoreDriver        = "STORE_DRIVER"
	KeyMongoURI           = "MONGO_URI"
	KeyMongoDB            = "MONGO_DB"
	KeySQLitePath         = "SQLITE_PATH"
	KeyAppEnv             = "APP_ENV"
	KeyLogLevel           = "LOG_LEVEL"
	KeyHTTPPort           = "HTTP_PORT"
	KeyTimezone           = "FACILITY_TIMEZONE"
	KeyDailyStart         = "FACILITY_DAILY_START"
	KeyDailyEnd           = "FACILITY_DAILY_END"
	KeyIntervalMinutes    = "FACILITY_INTERVAL_MINUTES"
	KeyMaxLengthMinutes   = "FACILITY_MAX_LENGTH_MINUTES"
	KeyWeekendsDisallowed = "FACILITY_WEEKENDS_DISALLOWED"
	KeyResolveSchedule    = "RESOLVE_SCHEDULE"
	KeyBoardRefresh       = "BOARD_REFRESH_MINUTES"
	KeyEmailAPIKey        = "EMAIL_API_KEY"
	KeyEmailFrom          = "EMAIL_FROM"
	KeyEmailDomain        = "EMAIL_ALLOWED_DOMAIN"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Supported store drivers.
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"

	// Defaults for optional settings.
	DefaultAppEnv             = EnvProduction
	DefaultLogLevel           = "info"
	DefaultHTTPPort           = 8080
	DefaultStoreDriver        = DriverMongo
	DefaultTimezone           = "Asia/Singapore"
	DefaultDailyStart         = "08:00"
	DefaultDailyEnd           = "21:00"
	DefaultIntervalMinutes    = 20
	DefaultMaxLengthMinutes   = 120
	DefaultWeekendsDisallowed = true
	DefaultResolveSchedule    = "sunday 20:00"
	DefaultBoardRefresh       = 5
	DefaultEmailFrom          = "rc4gym@yongtaufoo.xyz"
	DefaultEmailDomain        = "u.nus.edu"

	// Recommended database names by environment.
	DefaultMongoDBProd = "facilities_bot"
	DefaultMongoDBDev  = "facilities_bot_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyBotOwner,
		Example:     "123456789",
		Required:    true,
		Description: "Telegram user_id allowed to run /resolve and /status.",
	},
	{
		Key:         KeyStoreDriver,
		Example:     DriverMongo + " / " + DriverSQLite,
		Default:     DefaultStoreDriver,
		Description: "Persistence backend for users, slots, and ballots.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017/?replicaSet=rs0",
		Description: "MongoDB connection string.",
		Notes:       "Required when " + KeyStoreDriver + "=" + DriverMongo + ". Slot booking uses transactions, so the deployment must be a replica set.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Description: "MongoDB database name.",
		Notes:       "Required when " + KeyStoreDriver + "=" + DriverMongo + ". Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeySQLitePath,
		Example:     "./facilities.db",
		Description: "SQLite database file.",
		Notes:       "Required when " + KeyStoreDriver + "=" + DriverSQLite + ".",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
	{
		Key:         KeyTimezone,
		Example:     DefaultTimezone,
		Default:     DefaultTimezone,
		Description: "IANA time zone of the facility; weeks and opening hours are local to it.",
	},
	{
		Key:         KeyDailyStart,
		Example:     DefaultDailyStart,
		Default:     DefaultDailyStart,
		Description: "Local opening time (HH:MM).",
	},
	{
		Key:         KeyDailyEnd,
		Example:     DefaultDailyEnd,
		Default:     DefaultDailyEnd,
		Description: "Local closing time (HH:MM).",
	},
	{
		Key:         KeyIntervalMinutes,
		Example:     strconv.Itoa(DefaultIntervalMinutes),
		Default:     strconv.Itoa(DefaultIntervalMinutes),
		Description: "Slot grid size; bookings start and end on multiples of it from opening time.",
	},
	{
		Key:         KeyMaxLengthMinutes,
		Example:     strconv.Itoa(DefaultMaxLengthMinutes),
		Default:     strconv.Itoa(DefaultMaxLengthMinutes),
		Description: "Longest single booking or ballot.",
	},
	{
		Key:         KeyWeekendsDisallowed,
		Example:     "true / false",
		Default:     strconv.FormatBool(DefaultWeekendsDisallowed),
		Description: "Reject requests starting on Saturday or Sunday.",
	},
	{
		Key:         KeyResolveSchedule,
		Example:     DefaultResolveSchedule,
		Default:     DefaultResolveSchedule,
		Description: "Weekday and local time at which next week's ballots are resolved.",
	},
	{
		Key:         KeyBoardRefresh,
		Example:     strconv.Itoa(DefaultBoardRefresh),
		Default:     strconv.Itoa(DefaultBoardRefresh),
		Description: "Minutes between refreshes of the /view booking board.",
	},
	{
		Key:         KeyEmailAPIKey,
		Example:     "elastic-email-api-key",
		Description: "Elastic Email API key for verification codes.",
		Notes:       "When unset, codes are written to the log instead of mailed.",
	},
	{
		Key:         KeyEmailFrom,
		Example:     DefaultEmailFrom,
		Default:     DefaultEmailFrom,
		Description: "Sender address of verification emails.",
	},
	{
		Key:         KeyEmailDomain,
		Example:     DefaultEmailDomain,
		Default:     DefaultEmailDomain,
		Description: "Only addresses in this domain may register.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken string
	BotOwnerID    int64
	StoreDriver   string
	MongoURI      string
	MongoDB       string
	SQLitePath    string
	AppEnv        string
	LogLevel      string
	HTTPPort      int

	Facility     facility.Rules
	ResolveDay   time.Weekday
	ResolveAt    time.Duration // offset from local midnight
	BoardRefresh time.Duration

	EmailAPIKey string
	EmailFrom   string
	EmailDomain string
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken: strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		StoreDriver:   firstNonEmpty(normalizeEnv(os.Getenv(KeyStoreDriver)), DefaultStoreDriver),
		MongoURI:      strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:       strings.TrimSpace(os.Getenv(KeyMongoDB)),
		SQLitePath:    strings.TrimSpace(os.Getenv(KeySQLitePath)),
		LogLevel:      firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:      DefaultHTTPPort,
		EmailAPIKey:   strings.TrimSpace(os.Getenv(KeyEmailAPIKey)),
		EmailFrom:     firstNonEmpty(os.Getenv(KeyEmailFrom), DefaultEmailFrom),
		EmailDomain:   strings.ToLower(firstNonEmpty(os.Getenv(KeyEmailDomain), DefaultEmailDomain)),
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	ownerRaw := strings.TrimSpace(os.Getenv(KeyBotOwner))
	if ownerRaw == "" {
		missing = append(missing, KeyBotOwner)
	} else {
		ownerID, parseErr := strconv.ParseInt(ownerRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyBotOwner, parseErr)
		}
		cfg.BotOwnerID = ownerID
	}

	switch cfg.StoreDriver {
	case DriverMongo:
		if cfg.MongoURI == "" {
			missing = append(missing, KeyMongoURI)
		}
		if cfg.MongoDB == "" {
			missing = append(missing, KeyMongoDB)
		}
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			missing = append(missing, KeySQLitePath)
		}
	default:
		return Config{}, fmt.Errorf("invalid %s: must be %q or %q", KeyStoreDriver, DriverMongo, DriverSQLite)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if cfg.StoreDriver == DriverMongo {
		if err := validateMongoURI(cfg.MongoURI); err != nil {
			return Config{}, err
		}
	}

	port, err := intFromEnv(KeyHTTPPort, DefaultHTTPPort)
	if err != nil {
		return Config{}, err
	}
	cfg.HTTPPort = port

	if cfg.Facility, err = loadFacility(); err != nil {
		return Config{}, err
	}

	cfg.ResolveDay, cfg.ResolveAt, err = parseResolveSchedule(firstNonEmpty(os.Getenv(KeyResolveSchedule), DefaultResolveSchedule))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", KeyResolveSchedule, err)
	}

	refresh, err := intFromEnv(KeyBoardRefresh, DefaultBoardRefresh)
	if err != nil {
		return Config{}, err
	}
	cfg.BoardRefresh = time.Duration(refresh) * time.Minute

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// FormatRedacted renders the configuration for display with secrets masked.
func FormatRedacted(cfg Config) string {
	var b strings.Builder

	fmt.Fprintf(&b, "app_env: %s\n", cfg.AppEnv)
	fmt.Fprintf(&b, "log_level: %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "http_port: %d\n", cfg.HTTPPort)
	fmt.Fprintf(&b, "telegram_token: %s\n", maskSecret(cfg.TelegramToken))
	fmt.Fprintf(&b, "bot_owner: %d\n", cfg.BotOwnerID)
	fmt.Fprintf(&b, "store_driver: %s\n", cfg.StoreDriver)
	if cfg.StoreDriver == DriverSQLite {
		fmt.Fprintf(&b, "sqlite_path: %s\n", cfg.SQLitePath)
	} else {
		fmt.Fprintf(&b, "mongo_uri: %s\n", redactURI(cfg.MongoURI))
		fmt.Fprintf(&b, "mongo_db: %s\n", cfg.MongoDB)
	}

	rules := cfg.Facility
	if rules.Location != nil {
		fmt.Fprintf(&b, "facility_timezone: %s\n", rules.Location)
	}
	fmt.Fprintf(&b, "facility_hours: %s-%s\n", facility.FormatClock(rules.DailyStart), facility.FormatClock(rules.DailyEnd))
	fmt.Fprintf(&b, "facility_interval: %s\n", rules.Interval)
	fmt.Fprintf(&b, "facility_max_length: %s\n", rules.MaxLength)
	fmt.Fprintf(&b, "facility_weekends_disallowed: %t\n", rules.WeekendsDisallowed)
	fmt.Fprintf(&b, "resolve_schedule: %s %s\n", strings.ToLower(cfg.ResolveDay.String()), facility.FormatClock(cfg.ResolveAt))
	fmt.Fprintf(&b, "board_refresh: %s\n", cfg.BoardRefresh)
	fmt.Fprintf(&b, "email_api_key: %s\n", maskSecret(cfg.EmailAPIKey))
	fmt.Fprintf(&b, "email_from: %s\n", cfg.EmailFrom)
	fmt.Fprintf(&b, "email_allowed_domain: %s", cfg.EmailDomain)

	return b.String()
}

func loadFacility() (facility.Rules, error) {
	tzName := firstNonEmpty(os.Getenv(KeyTimezone), DefaultTimezone)
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return facility.Rules{}, fmt.Errorf("invalid %s: %w", KeyTimezone, err)
	}

	dailyStart, err := facility.ParseClock(firstNonEmpty(os.Getenv(KeyDailyStart), DefaultDailyStart))
	if err != nil {
		return facility.Rules{}, fmt.Errorf("invalid %s: %w", KeyDailyStart, err)
	}

	dailyEnd, err := facility.ParseClock(firstNonEmpty(os.Getenv(KeyDailyEnd), DefaultDailyEnd))
	if err != nil {
		return facility.Rules{}, fmt.Errorf("invalid %s: %w", KeyDailyEnd, err)
	}

	interval, err := intFromEnv(KeyIntervalMinutes, DefaultIntervalMinutes)
	if err != nil {
		return facility.Rules{}, err
	}

	maxLength, err := intFromEnv(KeyMaxLengthMinutes, DefaultMaxLengthMinutes)
	if err != nil {
		return facility.Rules{}, err
	}

	weekends := DefaultWeekendsDisallowed
	if raw := strings.TrimSpace(os.Getenv(KeyWeekendsDisallowed)); raw != "" {
		weekends, err = strconv.ParseBool(raw)
		if err != nil {
			return facility.Rules{}, fmt.Errorf("invalid %s: %w", KeyWeekendsDisallowed, err)
		}
	}

	rules := facility.Rules{
		Location:           loc,
		DailyStart:         dailyStart,
		DailyEnd:           dailyEnd,
		Interval:           time.Duration(interval) * time.Minute,
		MaxLength:          time.Duration(maxLength) * time.Minute,
		WeekendsDisallowed: weekends,
	}
	if err := rules.Check(); err != nil {
		return facility.Rules{}, fmt.Errorf("invalid facility rules: %w", err)
	}

	return rules, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseResolveSchedule(value string) (time.Weekday, time.Duration, error) {
	fields := strings.Fields(strings.ToLower(value))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("%q must be \"<weekday> <HH:MM>\"", value)
	}

	day, ok := weekdays[fields[0]]
	if !ok {
		return 0, 0, fmt.Errorf("unknown weekday %q", fields[0])
	}

	at, err := facility.ParseClock(fields[1])
	if err != nil {
		return 0, 0, err
	}
	if at >= 24*time.Hour {
		return 0, 0, fmt.Errorf("time of day %q is out of range", fields[1])
	}

	return day, at, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return value, nil
}

func validateMongoURI(uri string) error {
	if strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://") {
		return nil
	}

	return fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
}

func redactURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.User == nil {
		return raw
	}

	parsed.User = nil
	return parsed.String()
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 4 {
		return "...redacted"
	}
	return value[:4] + "...redacted"
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
