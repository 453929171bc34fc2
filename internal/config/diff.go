package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged  bool
	NewLogLevel      LogLevel
	SchedulesChanged bool           // true if any schedule was added, removed, or modified
	ScheduleChanges  []ScheduleDiff // per-channel schedule diffs
}

// ScheduleDiff describes what changed for a single channel schedule
// between two configs.
type ScheduleDiff struct {
	ChannelID string
	Modified  bool
	Added     bool
	Removed   bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Build schedule lookup maps keyed by channel ID.
	oldScheds := make(map[string]*ScheduleConfig, len(old.Schedules))
	for i := range old.Schedules {
		oldScheds[old.Schedules[i].ChannelID] = &old.Schedules[i]
	}
	newScheds := make(map[string]*ScheduleConfig, len(new.Schedules))
	for i := range new.Schedules {
		newScheds[new.Schedules[i].ChannelID] = &new.Schedules[i]
	}

	// Detect modified and removed schedules.
	for id, oldSched := range oldScheds {
		newSched, exists := newScheds[id]
		if !exists {
			d.ScheduleChanges = append(d.ScheduleChanges, ScheduleDiff{
				ChannelID: id,
				Removed:   true,
			})
			d.SchedulesChanged = true
			continue
		}
		if *oldSched != *newSched {
			d.ScheduleChanges = append(d.ScheduleChanges, ScheduleDiff{
				ChannelID: id,
				Modified:  true,
			})
			d.SchedulesChanged = true
		}
	}

	// Detect added schedules.
	for id := range newScheds {
		if _, exists := oldScheds[id]; !exists {
			d.ScheduleChanges = append(d.ScheduleChanges, ScheduleDiff{
				ChannelID: id,
				Added:     true,
			})
			d.SchedulesChanged = true
		}
	}

	return d
}
