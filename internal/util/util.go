package util

import (
	"github.com/berfenger/remo2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel:      zap.DebugLevel,
		ConfigVersion: config.CURRENT_CONFIG_VERSION,
		Remo: config.RemoConfig{
			AccessToken:          "test-token",
			RefreshInterval:      config.DEFAULT_REFRESH_INTERVAL,
			RequestTimeoutMillis: 10000,
		},
		MQTT: config.MQTTConfig{
			Host:              "localhost",
			Port:              1883,
			BaseTopic:         "remo2mqtt",
			HADiscoveryEnable: true,
			HADiscoveryTopic:  "homeassistant",
		},
		Notice: config.NoticeConfig{
			StateFile:      "notice.json",
			AutoAckSeconds: 300,
		},
		Port: 8080,
	}
}
