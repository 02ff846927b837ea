package config

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

// SettingsProvider adapts rows of the settings table (name -> value) into a
// koanf provider. Names use the same flat form as environment variables.
func SettingsProvider(settings map[string]string) *Settings {
	return &Settings{values: settings}
}

type Settings struct {
	values map[string]string
}

func (s *Settings) ReadBytes() ([]byte, error) {
	return nil, errors.New("settings provider does not support ReadBytes")
}

func (s *Settings) Read() (map[string]interface{}, error) {
	flat := make(map[string]interface{}, len(s.values))
	for name, value := range s.values {
		path, v := envTransform(name, value)
		if path == "" || value == "" {
			continue
		}
		flat[path] = v
	}
	return maps.Unflatten(flat, "."), nil
}
