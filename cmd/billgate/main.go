package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var version = "dev"

type cli struct {
	Config   string `help:"Path to the TOML config file." short:"c" env:"BILLGATE_CONFIG" type:"path"`
	LogLevel string `help:"Override logging.level." env:"BILLGATE_LOG_LEVEL"`

	Serve   serveCmd   `cmd:"" default:"withargs" help:"Run the gateway HTTP server."`
	Migrate migrateCmd `cmd:"" help:"Apply store migrations and exit."`
	Version versionCmd `cmd:"" help:"Print the build version."`
}

type serveCmd struct {
	Host string `help:"Override server.host."`
	Port int    `help:"Override server.port."`
}

type migrateCmd struct{}

type versionCmd struct{}

func (c *serveCmd) Run(root *cli) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	overrides := root.overrides()
	overrides.Server.Host = c.Host
	overrides.Server.Port = c.Port
	cfg, err := loadConfig(ctx, root.Config, overrides)
	if err != nil {
		return err
	}
	app, err := NewApp(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

func (c *migrateCmd) Run(root *cli) error {
	ctx := context.Background()
	cfg, err := loadConfig(ctx, root.Config, root.overrides())
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)
	return migrate(ctx, cfg, logger)
}

func (c *versionCmd) Run() error {
	fmt.Println(version)
	return nil
}

func main() {
	var root cli
	kctx := kong.Parse(&root,
		kong.Name("billgate"),
		kong.Description("Biller processor gateway."),
		kong.UsageOnError(),
	)
	kctx.FatalIfErrorf(kctx.Run(&root))
}
