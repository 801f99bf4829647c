// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
)

func setupFlagSet(fs *pflag.FlagSet) {
	fs.StringP("file", "f", "", "the configuration file to use.  Overrides the search path.")
	fs.StringP("api-key", "k", "", "the reporting API key.  Overrides configuration.")
	fs.StringP("address", "a", "", "the address the demo server listens on.  Overrides configuration.")
	fs.BoolP("debug", "d", false, "enables debug logging.  Overrides configuration.")
	fs.BoolP("version", "v", false, "print version and exit")
}

// setup builds the viper instance and logger for the demo. The demo runs
// fine without a config file: flags and TORCHLITE_* environment variables
// cover everything, so only an explicitly named file is required to exist.
func setup(args []string) (*viper.Viper, *zap.Logger, error) {
	l, err := zap.NewDevelopment() // initial value
	if err != nil {
		return nil, l, fmt.Errorf("failed to create zap logger: %w", err)
	}

	fs := pflag.NewFlagSet(applicationName, pflag.ContinueOnError)
	setupFlagSet(fs)
	if err := fs.Parse(args); err != nil {
		return nil, l, err
	}
	if printVersion, _ := fs.GetBool("version"); printVersion {
		printVersionInfo()
	}

	v := viper.New()
	v.SetEnvPrefix("torchlite")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file, _ := fs.GetString("file"); len(file) > 0 {
		v.SetConfigFile(file)
		err = v.ReadInConfig()
	} else {
		v.SetConfigName(applicationName)
		v.AddConfigPath(fmt.Sprintf("/etc/%s", applicationName))
		v.AddConfigPath(fmt.Sprintf("$HOME/.%s", applicationName))
		v.AddConfigPath(".")
		var notFound viper.ConfigFileNotFoundError
		if err = v.ReadInConfig(); errors.As(err, &notFound) {
			err = nil
		}
	}
	if err != nil {
		return v, l, fmt.Errorf("failed to read config file: %w", err)
	}

	if apiKey, _ := fs.GetString("api-key"); len(apiKey) > 0 {
		v.Set("torchlite.apikey", apiKey)
	}
	if address, _ := fs.GetString("address"); len(address) > 0 {
		v.Set("servers.primary.address", address)
	}
	if debug, _ := fs.GetBool("debug"); debug {
		v.Set("logging.level", "DEBUG")
	}

	var c sallust.Config
	err = v.UnmarshalKey("logging", &c, arrange.ComposeDecodeHooks(sallust.DecodeHook))
	if err != nil {
		return v, l, err
	}

	l, err = c.Build()
	return v, l, err
}

func printVersionInfo() {
	fmt.Fprintf(os.Stdout, "%s %s (commit %s, built %s, %s %s/%s)\n",
		applicationName, Version, GitCommit, BuildTime,
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	os.Exit(0)
}
