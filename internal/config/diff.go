package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Log level and
// alert targets are applied live; every other section needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	AlertsChanged bool

	// RestartRequired lists the top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.AlertsChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !slices.Equal(old.Alerts.URLs, new.Alerts.URLs) || old.Alerts.Timeout != new.Alerts.Timeout {
		d.AlertsChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	sections := []struct {
		name     string
		old, new any
	}{
		{"providers", old.Providers, new.Providers},
		{"storage", old.Storage, new.Storage},
		{"transcription", old.Transcription, new.Transcription},
		{"recording", old.Recording, new.Recording},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}
