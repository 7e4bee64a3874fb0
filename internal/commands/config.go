package commands

import (
	"context"

	"github.com/paulsmith/jjq/internal/config"
)

// ConfigEntry is one key/value pair as rendered by `jjq config list`.
type ConfigEntry struct {
	Key   string
	Value string
	Set   bool
}

// ConfigGet reads a single config key's raw value.
func (c *Commands) ConfigGet(ctx context.Context, key string) (string, bool, error) {
	return c.Config.Get(ctx, key)
}

// ConfigSet validates and writes a single config key.
func (c *Commands) ConfigSet(ctx context.Context, key, value string) error {
	return c.Config.Set(ctx, key, value)
}

// ConfigList reads every valid config key, in declaration order.
func (c *Commands) ConfigList(ctx context.Context) ([]ConfigEntry, error) {
	entries := make([]ConfigEntry, 0, len(config.ValidKeys))
	for _, key := range config.ValidKeys {
		value, ok, err := c.Config.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ConfigEntry{Key: key, Value: value, Set: ok})
	}
	return entries, nil
}
