package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func validConfig() Config {
	return Config{
		Remo: RemoConfig{
			AccessToken:          "token",
			RefreshInterval:      60,
			RequestTimeoutMillis: 10000,
		},
		MQTT: MQTTConfig{
			BaseTopic:        "Remo2MQTT",
			HADiscoveryTopic: "homeassistant",
		},
	}
}

func TestValidateRefreshInterval(t *testing.T) {
	for _, seconds := range REFRESH_INTERVALS {
		assert.NoError(t, ValidateRefreshInterval(seconds))
	}
	for _, seconds := range []int{0, 5, 20, 61, 600} {
		assert.Error(t, ValidateRefreshInterval(seconds), "interval %d", seconds)
	}
}

func TestValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "remo2mqtt", cfg.MQTT.BaseTopic)

	cfg = validConfig()
	cfg.Remo.RefreshInterval = 20
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Remo.AccessToken = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.MQTT.BaseTopic = "remo/mqtt"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Influx.URL = "http://localhost:8086"
	assert.Error(t, cfg.Validate())
}

func TestCheckMQTTTopic(t *testing.T) {
	topic, err := CheckMQTTTopic("Home_Assistant")
	assert.NoError(t, err)
	assert.Equal(t, "home_assistant", topic)

	_, err = CheckMQTTTopic("home assistant")
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLogLevel("trace"))
	assert.Equal(t, zapcore.WarnLevel, ParseLogLevel("WARN"))
	assert.Equal(t, zapcore.InfoLevel, ParseLogLevel("nonsense"))
}

func TestMigrateV1(t *testing.T) {
	assert := assert.New(t)

	stored := StoredConfig{
		Version: 1,
		Data: map[string]any{
			"remo": map[string]any{"access_token": "abc", "refresh_interval": 30},
		},
	}
	migrated, changed := Migrate(stored)
	assert.True(changed)
	assert.Equal(2, migrated.Version)
	assert.Equal(2, migrated.Data["config_version"])

	remo := migrated.Data["remo"].(map[string]any)
	assert.Equal(30, remo["refresh_interval"], "configured interval is kept")
	assert.Equal("abc", remo["access_token"])

	stored = StoredConfig{
		Version: 1,
		Data:    map[string]any{"remo": map[string]any{"access_token": "abc"}},
	}
	migrated, changed = Migrate(stored)
	assert.True(changed)
	assert.Equal(DEFAULT_REFRESH_INTERVAL, migrated.Data["remo"].(map[string]any)["refresh_interval"])

	// input untouched
	assert.NotContains(stored.Data["remo"].(map[string]any), "refresh_interval")
}

func TestMigrateUnversioned(t *testing.T) {
	migrated, changed := Migrate(StoredConfig{Data: map[string]any{}})
	assert.True(t, changed)
	assert.Equal(t, 2, migrated.Version)
	assert.Equal(t, DEFAULT_REFRESH_INTERVAL, migrated.Data["remo"].(map[string]any)["refresh_interval"])
}

func TestMigrateCurrent(t *testing.T) {
	stored := StoredConfig{
		Version: CURRENT_CONFIG_VERSION,
		Data:    map[string]any{"remo": map[string]any{"refresh_interval": 30}},
	}
	migrated, changed := Migrate(stored)
	assert.False(t, changed)
	assert.Equal(t, 30, migrated.Data["remo"].(map[string]any)["refresh_interval"])
}

func TestMigrateFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/remo2mqtt.yaml", []byte("remo:\n  access_token: abc\n"), 0o644))

	changed, err := MigrateFile(fs, "/etc/remo2mqtt.yaml")
	require.NoError(t, err)
	assert.True(t, changed)

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile("/etc/remo2mqtt.yaml")
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, 2, v.GetInt("config_version"))
	assert.Equal(t, DEFAULT_REFRESH_INTERVAL, v.GetInt("remo.refresh_interval"))
	assert.Equal(t, "abc", v.GetString("remo.access_token"))

	changed, err = MigrateFile(fs, "/etc/remo2mqtt.yaml")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestMigrateFileKeepsInterval(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/remo2mqtt.yaml",
		[]byte("remo:\n  access_token: abc\n  refresh_interval: 30\n"), 0o644))

	changed, err := MigrateFile(fs, "/etc/remo2mqtt.yaml")
	require.NoError(t, err)
	assert.True(t, changed)

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile("/etc/remo2mqtt.yaml")
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, 2, v.GetInt("config_version"))
	assert.Equal(t, 30, v.GetInt("remo.refresh_interval"))
}
