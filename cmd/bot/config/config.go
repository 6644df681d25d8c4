package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Jacobbrewer1/ticketbot/pkg/dataaccess"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is the name of the application.
	AppName = "ticketbot"

	// EnvConfigFile is the environment variable for an optional YAML config file.
	EnvConfigFile = `CONFIG_FILE`

	// EnvBotToken is the environment variable for the bot token.
	EnvBotToken = `BOT_TOKEN`

	// EnvApplicationId is the environment variable for the application ID.
	EnvApplicationId = `APPLICATION_ID`

	EnvPublicChannelId  = `PUBLIC_CHANNEL_ID`
	EnvSupportChannelId = `SUPPORT_CHANNEL_ID`
	EnvLogChannelId     = `LOG_CHANNEL_ID`

	// EnvAdminRoleIds is a comma separated list of role IDs.
	EnvAdminRoleIds = `ADMIN_ROLE_IDS`

	EnvEscalationRoleId = `ESCALATION_ROLE_ID`

	// EnvStoreDriver selects the store, sqlite or mongo.
	EnvStoreDriver = `STORE_DRIVER`

	// EnvDbPath is the environment variable for the SQLite database file.
	EnvDbPath = `DB_PATH`

	// EnvMongoUri is the environment variable for the MongoDB URI.
	EnvMongoUri = `MONGO_URI`

	// EnvMonitoringPort is the environment variable for the monitoring port.
	EnvMonitoringPort = `MONITORING_PORT`

	EnvStalePublicDays       = `STALE_PUBLIC_DAYS`
	EnvStalePrivateDays      = `STALE_PRIVATE_DAYS`
	EnvReminderHours         = `REMINDER_HOURS`
	EnvAutoPurgeDays         = `AUTO_PURGE_DAYS`
	EnvMaxTitleLen           = `MAX_TITLE_LEN`
	EnvTicketCooldownSeconds = `TICKET_COOLDOWN_SECONDS`
	EnvDuplicateSimilarity   = `DUPLICATE_SIMILARITY`
	EnvDmOnClose             = `DM_ON_CLOSE`
	EnvAllowAnonPublic       = `ALLOW_ANON_PUBLIC`
	EnvInProgressEmoji       = `IN_PROGRESS_EMOJI`
)

// Config is the configuration of the bot. It is built once at start up and never changed; the runtime tunable
// subset lives in the settings package.
type Config struct {
	BotToken      string `yaml:"bot_token"`
	ApplicationId string `yaml:"application_id"`

	PublicChannelId  string   `yaml:"public_channel_id"`
	SupportChannelId string   `yaml:"support_channel_id"`
	LogChannelId     string   `yaml:"log_channel_id"`
	AdminRoleIds     []string `yaml:"admin_role_ids"`
	EscalationRoleId string   `yaml:"escalation_role_id"`

	StoreDriver    string `yaml:"store_driver"`
	DbPath         string `yaml:"db_path"`
	MongoUri       string `yaml:"mongo_uri"`
	MonitoringPort string `yaml:"monitoring_port"`

	StalePublicDays  int `yaml:"stale_public_days"`
	StalePrivateDays int `yaml:"stale_private_days"`
	ReminderHours    int `yaml:"reminder_hours"`
	AutoPurgeDays    int `yaml:"auto_purge_days"`

	MaxTitleLen           int     `yaml:"max_title_len"`
	TicketCooldownSeconds int     `yaml:"ticket_cooldown_seconds"`
	DuplicateSimilarity   float64 `yaml:"duplicate_similarity"`
	DmOnClose             bool    `yaml:"dm_on_close"`
	AllowAnonPublic       bool    `yaml:"allow_anon_public"`
	InProgressEmoji       string  `yaml:"in_progress_emoji"`
}

// Default returns the configuration with every optional value set.
func Default() *Config {
	return &Config{
		StoreDriver:           dataaccess.DriverSQLite,
		DbPath:                "tickets.db",
		MonitoringPort:        "8080",
		StalePublicDays:       10,
		StalePrivateDays:      7,
		ReminderHours:         24,
		AutoPurgeDays:         45,
		MaxTitleLen:           90,
		TicketCooldownSeconds: 120,
		DuplicateSimilarity:   0.78,
		InProgressEmoji:       "🛠️",
	}
}

// MissingError is returned when a required value is not set.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// InvalidError is returned when a value cannot be used.
type InvalidError struct {
	Key    string
	Value  string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Key, e.Value, e.Reason)
}

// Load builds the configuration from the defaults, a .env file, the optional YAML file named by CONFIG_FILE and
// the environment, each overriding the last.
func Load(l *slog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	c := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		l.Debug("Reading config file", slog.String("path", path))
		if err := c.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := c.applyEnv(l); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(l *slog.Logger) error {
	strs := map[string]*string{
		EnvBotToken:         &c.BotToken,
		EnvApplicationId:    &c.ApplicationId,
		EnvPublicChannelId:  &c.PublicChannelId,
		EnvSupportChannelId: &c.SupportChannelId,
		EnvLogChannelId:     &c.LogChannelId,
		EnvEscalationRoleId: &c.EscalationRoleId,
		EnvStoreDriver:      &c.StoreDriver,
		EnvDbPath:           &c.DbPath,
		EnvMongoUri:         &c.MongoUri,
		EnvMonitoringPort:   &c.MonitoringPort,
		EnvInProgressEmoji:  &c.InProgressEmoji,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			l.Debug("Found value in environment", slog.String("key", key))
			*dst = strings.TrimSpace(v)
		}
	}

	if v := os.Getenv(EnvAdminRoleIds); v != "" {
		c.AdminRoleIds = splitList(v)
	}

	ints := map[string]*int{
		EnvStalePublicDays:       &c.StalePublicDays,
		EnvStalePrivateDays:      &c.StalePrivateDays,
		EnvReminderHours:         &c.ReminderHours,
		EnvAutoPurgeDays:         &c.AutoPurgeDays,
		EnvMaxTitleLen:           &c.MaxTitleLen,
		EnvTicketCooldownSeconds: &c.TicketCooldownSeconds,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &InvalidError{Key: key, Value: v, Reason: "expected a whole number"}
		}
		*dst = n
	}

	bools := map[string]*bool{
		EnvDmOnClose:       &c.DmOnClose,
		EnvAllowAnonPublic: &c.AllowAnonPublic,
	}
	for key, dst := range bools {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &InvalidError{Key: key, Value: v, Reason: "expected true or false"}
		}
		*dst = b
	}

	if v := os.Getenv(EnvDuplicateSimilarity); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return &InvalidError{Key: EnvDuplicateSimilarity, Value: v, Reason: "expected a number"}
		}
		c.DuplicateSimilarity = f
	}
	return nil
}

// Validate checks that the required values are present and the rest are usable.
func (c *Config) Validate() error {
	missing := make([]string, 0)
	if c.BotToken == "" {
		missing = append(missing, EnvBotToken)
	}
	if c.ApplicationId == "" {
		missing = append(missing, EnvApplicationId)
	}
	if c.PublicChannelId == "" && c.SupportChannelId == "" {
		missing = append(missing, EnvPublicChannelId+" or "+EnvSupportChannelId)
	}

	switch c.StoreDriver {
	case dataaccess.DriverSQLite:
		if c.DbPath == "" {
			missing = append(missing, EnvDbPath)
		}
	case dataaccess.DriverMongo:
		if c.MongoUri == "" {
			missing = append(missing, EnvMongoUri)
		}
	default:
		return &InvalidError{Key: EnvStoreDriver, Value: c.StoreDriver, Reason: "expected sqlite or mongo"}
	}

	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}

	if c.DuplicateSimilarity < 0 || c.DuplicateSimilarity > 1 {
		return &InvalidError{Key: EnvDuplicateSimilarity, Value: strconv.FormatFloat(c.DuplicateSimilarity, 'f', -1, 64), Reason: "expected a number between 0 and 1"}
	}
	if c.MaxTitleLen <= 0 {
		return &InvalidError{Key: EnvMaxTitleLen, Value: strconv.Itoa(c.MaxTitleLen), Reason: "must be positive"}
	}
	if c.TicketCooldownSeconds < 0 {
		return &InvalidError{Key: EnvTicketCooldownSeconds, Value: strconv.Itoa(c.TicketCooldownSeconds), Reason: "must not be negative"}
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
