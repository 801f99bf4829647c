// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package torchlite

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/torchlite-io/torchlite-go/model"
	"github.com/torchlite-io/torchlite-go/queue"
	"github.com/torchlite-io/torchlite-go/transport"
)

const (
	// DefaultEndpoint receives payloads unless overridden.
	DefaultEndpoint = "https://ingest.torchlite.io"

	// DefaultMaxQueueSize bounds the async delivery queue.
	DefaultMaxQueueSize = 1000

	// DefaultShutdownTimeout bounds Stop and the panic monitor's flush.
	DefaultShutdownTimeout = 5 * time.Second
)

// developmentEnvironments disable reporting unless Enabled is set
// explicitly.
var developmentEnvironments = []string{"development", "dev", "test"}

// Filter inspects a notice before delivery. Returning false vetoes the
// notice. A returned error (or a panic) is a filter fault: it is logged
// and the remaining filters still run, so a faulty filter can never block
// reporting.
type Filter func(n *model.Notice) (bool, error)

// Config is the process-wide configuration for one reporting session. It
// is read once by New and never mutated afterwards.
type Config struct {
	// APIKey identifies the project to the ingestion endpoint. Without
	// it the session is inert.
	APIKey string `validate:"required"`

	// Endpoint is the ingest base URL.
	// (Optional) Defaults to DefaultEndpoint.
	Endpoint string `validate:"omitempty,url"`

	// Environment names the deployment environment (e.g. "production").
	// Reporting is disabled for development environments unless Enabled
	// says otherwise.
	Environment string

	// Enabled overrides the inference from Environment when set.
	Enabled *bool

	// Timeout bounds a single delivery attempt.
	// (Optional) Defaults to transport.DefaultTimeout.
	Timeout time.Duration

	// IgnoreRules drop matching errors before any delivery attempt.
	IgnoreRules []IgnoreRule

	// FilterKeys are additional sensitive key names, merged with the
	// sanitizer's built-in list.
	FilterKeys []string

	// BeforeNotify filters run in order against every notice.
	BeforeNotify []Filter

	// Sync sends notices directly on the calling goroutine instead of
	// through the delivery queue. Meant for short-lived processes.
	Sync bool

	// MaxQueueSize bounds the async delivery queue.
	// (Optional) Defaults to DefaultMaxQueueSize.
	MaxQueueSize int

	// ShutdownTimeout bounds Stop and the panic monitor's flush.
	// (Optional) Defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Root, when set, is replaced by a placeholder in backtrace frames
	// so traces are portable across machines.
	Root string

	// AppName and Revision identify the reporting application build.
	AppName  string
	Revision string

	// SendRequest, SendUser and SendEnvironment gate whole categories
	// of notice data. All default to true.
	SendRequest     *bool
	SendUser        *bool
	SendEnvironment *bool

	// Auth provides the mechanism to add extra auth headers to outgoing
	// requests, beyond the API key header.
	// (Optional)
	Auth transport.Auth

	// Measures allows delivery queue activity to be collected.
	// (Optional) If not provided, no metrics are recorded.
	Measures *queue.Measures

	// Logger to be used by the session.
	// (Optional) Defaults to the sallust default logger.
	Logger *zap.Logger

	// HTTPClient refers to the client that will be used to send
	// requests.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

var configValidator = validator.New()

// validateConfig applies defaults in place and reports whether the config
// can produce a working session.
func validateConfig(config *Config) error {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Timeout == 0 {
		config.Timeout = transport.DefaultTimeout
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = DefaultMaxQueueSize
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	return configValidator.Struct(config)
}

// reportingEnabled resolves the explicit flag, falling back to inference
// from the environment name.
func reportingEnabled(config *Config) bool {
	if config.Enabled != nil {
		return *config.Enabled
	}
	if config.APIKey == "" {
		return false
	}
	env := strings.ToLower(config.Environment)
	for _, dev := range developmentEnvironments {
		if env == dev {
			return false
		}
	}
	return true
}

func boolOrTrue(v *bool) bool {
	return v == nil || *v
}
