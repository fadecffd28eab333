package config

import (
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const CURRENT_CONFIG_VERSION = 2

// StoredConfig is the raw settings tree as read from the config file.
type StoredConfig struct {
	Version int
	Data    map[string]any
}

type migration func(data map[string]any) map[string]any

// keyed by the version a migration upgrades from
var migrations = map[int]migration{
	1: addRefreshInterval,
}

// Migrate upgrades stored settings to CURRENT_CONFIG_VERSION. It never mutates
// its input and reports whether any step ran.
func Migrate(stored StoredConfig) (StoredConfig, bool) {
	version := stored.Version
	if version == 0 {
		// files written before versioning are version 1
		version = 1
	}
	data := copyTree(stored.Data)
	ran := false
	for version < CURRENT_CONFIG_VERSION {
		step, ok := migrations[version]
		if !ok {
			break
		}
		data = step(data)
		version++
		ran = true
	}
	if ran {
		data["config_version"] = version
	}
	return StoredConfig{Version: version, Data: data}, ran
}

func addRefreshInterval(data map[string]any) map[string]any {
	remo, _ := data["remo"].(map[string]any)
	if remo == nil {
		remo = map[string]any{}
	}
	if _, ok := remo["refresh_interval"]; !ok {
		remo["refresh_interval"] = DEFAULT_REFRESH_INTERVAL
	}
	data["remo"] = remo
	return data
}

func copyTree(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			dst[k] = copyTree(sub)
			continue
		}
		dst[k] = v
	}
	return dst
}

// MigrateFile applies Migrate to a config file and writes the result back when
// a migration ran.
func MigrateFile(fs afero.Fs, path string) (bool, error) {
	reader := viper.New()
	reader.SetFs(fs)
	reader.SetConfigFile(path)
	if err := reader.ReadInConfig(); err != nil {
		return false, err
	}

	migrated, changed := Migrate(StoredConfig{
		Version: reader.GetInt("config_version"),
		Data:    reader.AllSettings(),
	})
	if !changed {
		return false, nil
	}

	writer := viper.New()
	writer.SetFs(fs)
	if err := writer.MergeConfigMap(migrated.Data); err != nil {
		return false, err
	}
	if err := writer.WriteConfigAs(path); err != nil {
		return false, err
	}
	return true, nil
}
