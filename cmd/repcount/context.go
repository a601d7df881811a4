package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/claude/repcounter/internal/profiles"
	"github.com/claude/repcounter/internal/storage"
)

type commandContext struct {
	storeFlag   *string
	jsonFlag    *bool
	verboseFlag *bool
}

func newCommandContext(storeFlag *string, jsonFlag, verboseFlag *bool) *commandContext {
	return &commandContext{
		storeFlag:   storeFlag,
		jsonFlag:    jsonFlag,
		verboseFlag: verboseFlag,
	}
}

func (c *commandContext) json() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) logger(cmd *cobra.Command) *slog.Logger {
	verbose := c.verboseFlag != nil && *c.verboseFlag
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel(verbose)}))
}

func (c *commandContext) storeDir() string {
	if c.storeFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.storeFlag)
}

// withRegistry opens the profile registry for the duration of fn. Without a
// store directory, taught profiles live in memory and vanish on exit.
func (c *commandContext) withRegistry(cmd *cobra.Command, fn func(*profiles.Registry) error) error {
	log := c.logger(cmd)
	dir := c.storeDir()
	if dir == "" {
		return fn(profiles.NewRegistry(storage.NewMemory(), log))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	store, err := storage.OpenSQLite(dir)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(profiles.NewRegistry(store, log))
}
