package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"clipline/internal/admin"
	"clipline/internal/audit"
	"clipline/internal/config"
	"clipline/internal/lease"
	"clipline/internal/logging"
	"clipline/internal/notifications"
	"clipline/internal/sla"
	"clipline/internal/stage"
	"clipline/internal/tasks"
)

type commandContext struct {
	configFlag *string
	actorFlag  *string
	roleFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, actorFlag, roleFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		actorFlag:  actorFlag,
		roleFlag:   roleFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// withStore opens the task store for the duration of one command.
func (c *commandContext) withStore(fn func(*config.Config, *tasks.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := tasks.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

func (c *commandContext) actor() string {
	if c.actorFlag != nil {
		if actor := strings.TrimSpace(*c.actorFlag); actor != "" {
			return actor
		}
	}
	if user := strings.TrimSpace(os.Getenv("USER")); user != "" {
		return user
	}
	return "unknown"
}

func (c *commandContext) role() (tasks.Role, error) {
	raw := ""
	if c.roleFlag != nil {
		raw = strings.TrimSpace(*c.roleFlag)
	}
	if raw == "" {
		return "", fmt.Errorf("a role is required; pass --role recorder|editor|uploader|admin")
	}
	role, ok := tasks.ParseRole(raw)
	if !ok {
		return "", fmt.Errorf("unknown role %q; expected recorder, editor, uploader, or admin", raw)
	}
	return role, nil
}

func (c *commandContext) leaseManager(cfg *config.Config, store *tasks.Store) *lease.Manager {
	return lease.NewManager(store, cfg.DefaultTTL(), logging.NewNop())
}

func (c *commandContext) machine(store *tasks.Store) *stage.Machine {
	if cfg := c.configValue(); cfg != nil {
		return stage.NewMachineWithNotifier(store, logging.NewNop(), notifications.NewService(cfg))
	}
	return stage.NewMachine(store, logging.NewNop())
}

func (c *commandContext) adminService(store *tasks.Store) *admin.Service {
	return admin.NewService(store, audit.NewLog(store, logging.NewNop()), logging.NewNop())
}

func (c *commandContext) calculator(cfg *config.Config) *sla.Calculator {
	return sla.NewCalculator(cfg)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
