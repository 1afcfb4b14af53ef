package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLease(); err != nil {
		return err
	}
	if err := c.validateSLA(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateLease() error {
	if c.Lease.DefaultTTLMinutes <= 0 {
		return errors.New("lease.default_ttl_minutes must be positive")
	}
	if c.Lease.StaleReleaseMarginMins < 0 {
		return errors.New("lease.stale_release_margin_minutes must not be negative")
	}
	if c.Lease.ReclaimIntervalMinutes <= 0 {
		return errors.New("lease.reclaim_interval_minutes must be positive")
	}
	if c.Lease.StaleSweepIntervalMins <= 0 {
		return errors.New("lease.stale_sweep_interval_minutes must be positive")
	}
	if c.Lease.OverdueScanIntervalMins <= 0 {
		return errors.New("lease.overdue_scan_interval_minutes must be positive")
	}
	return nil
}

func (c *Config) validateSLA() error {
	hours := map[string]int{
		"sla.not_recorded_hours":  c.SLA.NotRecordedHours,
		"sla.recorded_hours":      c.SLA.RecordedHours,
		"sla.edited_hours":        c.SLA.EditedHours,
		"sla.ready_to_post_hours": c.SLA.ReadyToPostHours,
	}
	for key, value := range hours {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if c.SLA.DueSoonWindowMins < 0 {
		return errors.New("sla.due_soon_window_minutes must not be negative")
	}
	for key, value := range map[string]float64{
		"sla.age_weight_per_hour": c.SLA.AgeWeightPerHour,
		"sla.due_soon_weight":     c.SLA.DueSoonWeight,
		"sla.overdue_weight":      c.SLA.OverdueWeight,
		"sla.backlog_weight":      c.SLA.BacklogWeight,
	} {
		if value < 0 {
			return fmt.Errorf("%s must not be negative", key)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
