package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full option surface of the uploader.
type Config struct {
	WNS       WNSConfig
	Overrides OverridesConfig
	Archive   ArchiveConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
}

// WNSConfig covers the upload endpoint and delivery policy.
type WNSConfig struct {
	Enable         bool
	Station        string
	APIKey         string
	ServerURL      string
	SkipUpload     bool
	LogURL         bool
	Timeout        time.Duration // per-try timeout
	MaxTries       int
	RetryWait      time.Duration
	PostInterval   time.Duration
	MaxBacklogAge  time.Duration
	QueueCapacity  int
	EnqueueTimeout time.Duration
}

// OverridesConfig holds the environment-specific field-source overrides.
// The values are observation names; empty or "None" leaves the default
// field table entry in place.
type OverridesConfig struct {
	SecondaryTemp string
	SunshineDur   string
	SoilTemp10    string
	SoilTemp20    string
	SoilTemp50    string
}

// ArchiveConfig points at the host engine's archive database.
type ArchiveConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Table    string
}

func (a ArchiveConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		a.Host, a.Port, a.User, a.Password, a.DBName, a.SSLMode)
}

// KafkaConfig is the host engine's record topic.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// RedisConfig is the optional upload-status store; an empty Addr disables
// it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DefaultServerURL is the fixed vendor endpoint used when WNS_URL is not
// set.
const DefaultServerURL = "http://www.wetternetz-sachsen.de/get_daten_23.php"

// Load reads configuration from the environment, with a .env file as an
// optional source. Malformed values fall back to their defaults; only a
// missing station or API key is an error.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		WNS: WNSConfig{
			Enable:         getEnvAsBool("WNS_ENABLE", true),
			Station:        getEnv("WNS_STATION", ""),
			APIKey:         getEnv("WNS_API_KEY", ""),
			ServerURL:      getEnv("WNS_URL", DefaultServerURL),
			SkipUpload:     getEnvAsBool("WNS_SKIP_UPLOAD", false),
			LogURL:         getEnvAsBool("WNS_LOG_URL", false),
			Timeout:        getEnvAsDuration("WNS_TIMEOUT", 60*time.Second),
			MaxTries:       getEnvAsInt("WNS_MAX_TRIES", 3),
			RetryWait:      getEnvAsDuration("WNS_RETRY_WAIT", 5*time.Second),
			PostInterval:   getEnvAsDuration("WNS_POST_INTERVAL", 0),
			MaxBacklogAge:  getEnvAsDuration("WNS_MAX_BACKLOG_AGE", 0),
			QueueCapacity:  getEnvAsInt("WNS_QUEUE_CAPACITY", 5),
			EnqueueTimeout: getEnvAsDuration("WNS_ENQUEUE_TIMEOUT", 2*time.Second),
		},
		Overrides: OverridesConfig{
			SecondaryTemp: getEnv("WNS_T5AKT_SOURCE", ""),
			SunshineDur:   getEnv("WNS_SOD1D_SOURCE", ""),
			SoilTemp10:    getEnv("WNS_TSOI10_SOURCE", ""),
			SoilTemp20:    getEnv("WNS_TSOI20_SOURCE", ""),
			SoilTemp50:    getEnv("WNS_TSOI50_SOURCE", ""),
		},
		Archive: ArchiveConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "weewx"),
			Password: getEnv("DB_PASSWORD", "weewx"),
			DBName:   getEnv("DB_NAME", "weewx"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Table:    getEnv("DB_ARCHIVE_TABLE", "archive"),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC_RECORDS", "weather.archive.records"),
			GroupID: getEnv("KAFKA_GROUP_ID", "wns-uploader"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}

	if config.WNS.Enable {
		if config.WNS.Station == "" {
			return nil, fmt.Errorf("WNS_STATION is required")
		}
		if config.WNS.APIKey == "" {
			return nil, fmt.Errorf("WNS_API_KEY is required")
		}
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
