package config

const (
	defaultDataDir   = "~/.local/share/clipline"
	defaultLogDir    = "~/.local/share/clipline/logs"
	defaultAPIBind   = "127.0.0.1:7519"
	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultLeaseTTLMinutes      = 60
	defaultStaleMarginMinutes   = 60
	defaultReclaimIntervalMins  = 5
	defaultStaleIntervalMins    = 15
	defaultOverdueScanMins      = 30
	defaultNotifyRequestTimeout = 10

	// Stage deadlines follow the production SLAs: recording should start
	// within 4h of assignment, edits complete within 24h, review within 8h,
	// and posting within 12h of approval.
	defaultNotRecordedHours = 4
	defaultRecordedHours    = 24
	defaultEditedHours      = 8
	defaultReadyToPostHours = 12

	defaultDueSoonWindowMins = 120
	defaultAgeWeightPerHour  = 1.0
	defaultDueSoonWeight     = 10.0
	defaultOverdueWeight     = 100.0
	defaultBacklogWeight     = 0.5
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Lease: Lease{
			DefaultTTLMinutes:       defaultLeaseTTLMinutes,
			StaleReleaseMarginMins:  defaultStaleMarginMinutes,
			ReclaimIntervalMinutes:  defaultReclaimIntervalMins,
			StaleSweepIntervalMins:  defaultStaleIntervalMins,
			OverdueScanIntervalMins: defaultOverdueScanMins,
		},
		SLA: SLA{
			NotRecordedHours:  defaultNotRecordedHours,
			RecordedHours:     defaultRecordedHours,
			EditedHours:       defaultEditedHours,
			ReadyToPostHours:  defaultReadyToPostHours,
			DueSoonWindowMins: defaultDueSoonWindowMins,
			AgeWeightPerHour:  defaultAgeWeightPerHour,
			DueSoonWeight:     defaultDueSoonWeight,
			OverdueWeight:     defaultOverdueWeight,
			BacklogWeight:     defaultBacklogWeight,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Overdue:        true,
			Claims:         true,
			Transitions:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
