package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Log level and
// access rules are applied live; any other change is listed in
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AccessChanged is set when a role, the order channel list or the DM
	// setting changed.
	AccessChanged bool

	// RestartRequired names the top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.AccessChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	od, nd := old.Discord, new.Discord
	if od.OrderRoleID != nd.OrderRoleID ||
		od.StaffRoleID != nd.StaffRoleID ||
		od.AllowDMs != nd.AllowDMs ||
		!slices.Equal(od.OrderChannelIDs, nd.OrderChannelIDs) {
		d.AccessChanged = true
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Menu != new.Menu {
		d.RestartRequired = append(d.RestartRequired, "menu")
	}
	if !reflect.DeepEqual(old.LLM, new.LLM) {
		d.RestartRequired = append(d.RestartRequired, "llm")
	}
	if !reflect.DeepEqual(old.Transcription, new.Transcription) {
		d.RestartRequired = append(d.RestartRequired, "transcription")
	}
	if old.Storage != new.Storage {
		d.RestartRequired = append(d.RestartRequired, "storage")
	}
	if old.Orders != new.Orders {
		d.RestartRequired = append(d.RestartRequired, "orders")
	}
	if od.Token != nd.Token || od.GuildID != nd.GuildID || od.StaffChannelID != nd.StaffChannelID {
		d.RestartRequired = append(d.RestartRequired, "discord")
	}
	if old.Events != new.Events {
		d.RestartRequired = append(d.RestartRequired, "events")
	}
	if old.Observability != new.Observability {
		d.RestartRequired = append(d.RestartRequired, "observability")
	}
	return d
}
