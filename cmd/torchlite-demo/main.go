// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

// torchlite-demo is a small instrumented HTTP service showing the reporting
// pipeline end to end: scoped requests, explicit notifies, panic reporting,
// and the queue metrics exposed over prometheus.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
	"go.uber.org/zap"

	torchlite "github.com/torchlite-io/torchlite-go"
)

const applicationName = "torchlite-demo"

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

func main() {
	v, logger, err := setup(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app := fx.New(
		arrange.LoggerFunc(logger.Sugar().Infof),
		arrange.ForViper(v),
		fx.Supply(logger, v),
		touchstone.Provide(),
		torchlite.Provide(),
		fx.Provide(
			arrange.UnmarshalKey("prometheus", touchstone.Config{}),
			arrange.UnmarshalKey("torchlite", torchlite.Config{}),
			candlelight.New,
			func(v *viper.Viper) (candlelight.Config, error) {
				var config candlelight.Config
				err := v.UnmarshalKey("tracing", &config)
				if err != nil {
					return candlelight.Config{}, err
				}
				config.ApplicationName = applicationName
				return config, nil
			},
		),
		fx.Decorate(
			func(config torchlite.Config, l *zap.Logger) torchlite.Config {
				config.Logger = l
				if config.Revision == "" {
					config.Revision = GitCommit
				}
				if config.AppName == "" {
					config.AppName = applicationName
				}
				return config
			},
		),
		fx.Invoke(runServer),
	)

	switch err := app.Err(); {
	case errors.Is(err, pflag.ErrHelp):
		return
	case err == nil:
		app.Run()
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
