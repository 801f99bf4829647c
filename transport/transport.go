// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package transport performs single, timed HTTP delivery attempts of
// notice payloads against the ingestion endpoint and classifies the
// outcome. It never retries; retry and backoff policy belong to the
// delivery queue.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/xmidt-org/bascule/acquire"
	"go.uber.org/zap"

	"github.com/torchlite-io/torchlite-go/model"
	"github.com/torchlite-io/torchlite-go/notice"
)

// Errors that can be returned by this package. Since some of these errors
// are returned wrapped, it is safest to use errors.Is() to check for them.
var (
	ErrEndpointEmpty       = errors.New("ingest endpoint is required")
	ErrAPIKeyEmpty         = errors.New("API key is required")
	ErrAuthAcquirerFailure = errors.New("failed acquiring auth token")

	// ErrMalformedRequest corresponds to a 400 response.
	ErrMalformedRequest = errors.New("ingest rejected the request as malformed")
	// ErrFailedAuthentication corresponds to a 401 response.
	ErrFailedAuthentication = errors.New("failed to authenticate with ingest")
	// ErrInvalidPayload corresponds to a 422 response.
	ErrInvalidPayload = errors.New("ingest rejected the payload as invalid")
	// ErrRateLimited corresponds to a 429 response.
	ErrRateLimited = errors.New("ingest rate limited this reporter")
	// ErrServerFailure corresponds to any 5xx response.
	ErrServerFailure = errors.New("ingest responded with a server error")
	// ErrUnexpectedResponse covers any other non-201 status code.
	ErrUnexpectedResponse = errors.New("ingest responded with an unexpected status code")
)

var (
	errNewRequestFailure  = errors.New("failed creating an HTTP request")
	errDoRequestFailure   = errors.New("http client failed while sending request")
	errReadingBodyFailure = errors.New("failed while reading http response body")
	errJSONUnmarshal      = errors.New("failed unmarshaling JSON response payload")
	errJSONMarshal        = errors.New("failed marshaling notice payload as JSON")
)

const (
	ingestPath       = "/ingest/v1/errors"
	apiKeyHeader     = "X-API-Key"
	errWrappedFmt    = "%w: %s"
	errStatusCodeFmt = "%w: received status %v"

	// DefaultTimeout bounds a single delivery attempt.
	DefaultTimeout = 15 * time.Second
)

// Config contains the data needed to reach the ingestion endpoint.
type Config struct {
	// Endpoint is the ingest base URL (i.e. https://ingest.torchlite.io).
	Endpoint string

	// APIKey identifies the caller; it is sent on every request.
	APIKey string

	// Timeout bounds a single delivery attempt, including connection
	// setup and body read.
	// (Optional) Defaults to DefaultTimeout.
	Timeout time.Duration

	// HTTPClient refers to the client that will be used to send requests.
	// (Optional) Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Auth provides the mechanism to add extra auth headers to outgoing
	// requests.
	// (Optional) If not provided, only the API key header is added.
	Auth Auth

	// Logger to be used by the transport.
	// (Optional) By default a no op logger will be used.
	Logger *zap.Logger
}

// Auth contains optional additional authorization data for requests to the
// ingestion endpoint.
type Auth struct {
	JWT   acquire.RemoteBearerTokenAcquirerOptions
	Basic string
}

// T performs delivery attempts. One instance is safe for concurrent use.
type T struct {
	client    *http.Client
	auth      acquire.Acquirer
	ingestURL string
	apiKey    string
	timeout   time.Duration
	userAgent string
	logger    *zap.Logger
	getLogger func(context.Context) *zap.Logger
}

// New creates a transport for the given config. getLogger, when non-nil,
// supplies a request-scoped logger from the context (e.g. sallust.Get);
// the configured logger is the fallback.
func New(config Config, getLogger func(context.Context) *zap.Logger) (*T, error) {
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	tokenAcquirer, err := buildTokenAcquirer(config.Auth)
	if err != nil {
		return nil, err
	}
	if getLogger == nil {
		getLogger = func(context.Context) *zap.Logger { return nil }
	}
	return &T{
		client:    config.HTTPClient,
		auth:      tokenAcquirer,
		ingestURL: config.Endpoint + ingestPath,
		apiKey:    config.APIKey,
		timeout:   config.Timeout,
		userAgent: fmt.Sprintf("%s/%s %s", notice.NotifierName, notice.Version, runtime.Version()),
		logger:    config.Logger,
		getLogger: getLogger,
	}, nil
}

func validateConfig(config *Config) error {
	if config.Endpoint == "" {
		return ErrEndpointEmpty
	}
	if config.APIKey == "" {
		return ErrAPIKeyEmpty
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return nil
}

func isEmpty(options acquire.RemoteBearerTokenAcquirerOptions) bool {
	return len(options.AuthURL) < 1 || options.Buffer == 0 || options.Timeout == 0
}

func buildTokenAcquirer(auth Auth) (acquire.Acquirer, error) {
	if !isEmpty(auth.JWT) {
		return acquire.NewRemoteBearerTokenAcquirer(auth.JWT)
	} else if len(auth.Basic) > 0 {
		return acquire.NewFixedAuthAcquirer(auth.Basic)
	}
	return &acquire.DefaultAcquirer{}, nil
}

// classifyStatusCode returns a specific error for known ingest status
// codes.
func classifyStatusCode(code int) error {
	switch {
	case code == http.StatusBadRequest:
		return ErrMalformedRequest
	case code == http.StatusUnauthorized:
		return ErrFailedAuthentication
	case code == http.StatusUnprocessableEntity:
		return ErrInvalidPayload
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= http.StatusInternalServerError:
		return ErrServerFailure
	default:
		return ErrUnexpectedResponse
	}
}

// Send issues exactly one delivery attempt for payload, bounded by the
// configured timeout. On a 201 it returns the parsed ingest response; every
// failure path returns a nil response and a classified, logged error. Send
// never panics past its own boundary.
func (t *T) Send(ctx context.Context, payload model.NoticePayload) (*model.IngestResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		t.loggerFor(ctx).Error("failed marshaling notice payload as JSON", zap.Error(err))
		return nil, fmt.Errorf(errWrappedFmt, errJSONMarshal, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, t.ingestURL, bytes.NewReader(data))
	if err != nil {
		t.loggerFor(ctx).Error("failed creating the delivery request", zap.Error(err))
		return nil, fmt.Errorf(errWrappedFmt, errNewRequestFailure, err.Error())
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(apiKeyHeader, t.apiKey)
	r.Header.Set("User-Agent", t.userAgent)
	if err := acquire.AddAuth(r, t.auth); err != nil {
		return nil, fmt.Errorf(errWrappedFmt, ErrAuthAcquirerFailure, err.Error())
	}

	resp, err := t.client.Do(r)
	if err != nil {
		t.loggerFor(ctx).Error("delivery attempt failed before a response was received",
			zap.Error(err))
		return nil, fmt.Errorf(errWrappedFmt, errDoRequestFailure, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.loggerFor(ctx).Error("failed reading the ingest response body", zap.Error(err))
		return nil, fmt.Errorf(errWrappedFmt, errReadingBodyFailure, err.Error())
	}

	if resp.StatusCode != http.StatusCreated {
		classified := classifyStatusCode(resp.StatusCode)
		t.loggerFor(ctx).Error("ingest responded with a non-success status code",
			zap.Int("code", resp.StatusCode), zap.String("reason", classified.Error()))
		return nil, fmt.Errorf(errStatusCodeFmt, classified, resp.StatusCode)
	}

	var ir model.IngestResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		t.loggerFor(ctx).Error("ingest accepted the payload but returned an unreadable body",
			zap.Error(err))
		return nil, fmt.Errorf(errWrappedFmt, errJSONUnmarshal, err.Error())
	}
	return &ir, nil
}

func (t *T) loggerFor(ctx context.Context) *zap.Logger {
	if l := t.getLogger(ctx); l != nil {
		return l
	}
	return t.logger
}
