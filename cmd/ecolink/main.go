// Copyright 2026 the ecolink authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/ecolink/ecolink/pkg/bridge"
	"github.com/ecolink/ecolink/pkg/chatlog"
	"github.com/ecolink/ecolink/pkg/config"
	"github.com/ecolink/ecolink/pkg/gamechat"
)

func main() {
	app := &cli.App{
		Name:  "ecolink",
		Usage: "relay chat between a game server and Discord",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "ecolink.toml",
				Usage:   "path to the configuration file (TOML or YAML)",
				EnvVars: []string{"ECOLINK_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level: trace, debug, info, warn or error",
				EnvVars: []string{"ECOLINK_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "connect both sides and relay until interrupted",
				Action: runBridge,
			},
			{
				Name:   "check-config",
				Usage:  "load the configuration and report corrections without connecting",
				Action: checkConfig,
			},
			{
				Name:   "init-config",
				Usage:  "write a commented sample configuration file",
				Action: initConfig,
			},
		},
		DefaultCommand: "run",
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ecolink:", err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.String("log-level"))
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level %q: %w", c.String("log-level"), err)
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger(), nil
}

func runBridge(c *cli.Context) error {
	log, err := newLogger(c)
	if err != nil {
		return err
	}

	store, err := config.NewStore(c.String("config"), log)
	if err != nil {
		return err
	}
	cfg := store.Current()
	if cfg.BotToken == "" {
		return fmt.Errorf("bot_token is not configured")
	}
	if cfg.GatewayURL == "" {
		return fmt.Errorf("gateway_url is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SIGHUP reloads the configuration in place.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			log.Info().Msg("Reloading configuration")
			if err := store.Reload(); err != nil {
				log.Error().Err(err).Msg("Failed to reload configuration")
			}
		}
	}()

	clog := chatlog.New(log)
	defer clog.Close()

	gateway := gamechat.NewGateway(cfg.GatewayURL, log)
	if err := gateway.Connect(ctx); err != nil {
		return err
	}
	defer gateway.Close()

	return bridge.New(log, store, gateway, clog).Run(ctx)
}

func checkConfig(c *cli.Context) error {
	log, err := newLogger(c)
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	for _, line := range cfg.Normalize() {
		log.Warn().Msg("Correction: " + line)
	}
	if cfg.BotToken == "" {
		log.Warn().Msg("bot_token is empty")
	}
	if cfg.GatewayURL == "" {
		log.Warn().Msg("gateway_url is empty")
	}
	log.Info().
		Int("chat_links", len(cfg.ChatLinks)).
		Int("status_channels", len(cfg.StatusChannels)).
		Msg("Configuration is loadable")
	return nil
}

func initConfig(c *cli.Context) error {
	path := c.String("config")
	if err := config.Init(path); err != nil {
		return err
	}
	fmt.Println("Wrote sample configuration to", path)
	return nil
}
