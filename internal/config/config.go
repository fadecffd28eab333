package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const DEFAULT_REFRESH_INTERVAL = 60

// allowed refresh intervals, in seconds
var REFRESH_INTERVALS = []int{10, 15, 30, 45, 60, 90, 120}

type Config struct {
	LogLevel      zapcore.Level
	ConfigVersion int          `mapstructure:"config_version"`
	Remo          RemoConfig   `mapstructure:"remo"`
	MQTT          MQTTConfig   `mapstructure:"mqtt"`
	Influx        InfluxConfig `mapstructure:"influx"`
	Notice        NoticeConfig `mapstructure:"notice"`
	Port          uint         `mapstructure:"port"`
	HttpLog       bool         `mapstructure:"http_log"`
}

type RemoConfig struct {
	AccessToken          string `mapstructure:"access_token"`
	BaseURL              string `mapstructure:"base_url"`
	RefreshInterval      int    `mapstructure:"refresh_interval"`
	RequestTimeoutMillis uint32 `mapstructure:"request_timeout_millis"`
}

func (c RemoConfig) Interval() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

func (c RemoConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMillis) * time.Millisecond
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type InfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

type NoticeConfig struct {
	StateFile      string `mapstructure:"state_file"`
	AutoAckSeconds uint32 `mapstructure:"auto_ack_seconds"`
}

func (c NoticeConfig) AutoAckAfter() time.Duration {
	return time.Duration(c.AutoAckSeconds) * time.Second
}

func ValidateRefreshInterval(seconds int) error {
	if !slices.Contains(REFRESH_INTERVALS, seconds) {
		return fmt.Errorf("refresh interval %ds not allowed, must be one of %v", seconds, REFRESH_INTERVALS)
	}
	return nil
}

// Validate checks bounds and normalizes topics in place.
func (cfg *Config) Validate() error {
	if cfg.Remo.AccessToken == "" {
		return errors.New("config param remo.access_token is required")
	}
	if err := ValidateRefreshInterval(cfg.Remo.RefreshInterval); err != nil {
		return fmt.Errorf("config param remo.refresh_interval: %w", err)
	}
	if cfg.Remo.RequestTimeoutMillis < 1000 {
		return errors.New("config param remo.request_timeout_millis should be >= 1000")
	}
	if cfg.Influx.Enabled() && cfg.Influx.Bucket == "" {
		return errors.New("config param influx.bucket is required when influx.url is set")
	}

	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	hadBaseTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic
	return nil
}

var topicRegexp = regexp.MustCompile("^[a-z0-9_]+$")

func CheckMQTTTopic(baseTopic string) (string, error) {
	lowerBaseTopic := strings.ToLower(baseTopic)
	if !topicRegexp.MatchString(lowerBaseTopic) {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// ParseLogLevel maps the log_level setting to a zap level, defaulting to info.
func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
