// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package torchlite

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"emperror.dev/emperror"
	"github.com/spf13/cast"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/torchlite-io/torchlite-go/model"
	"github.com/torchlite-io/torchlite-go/notice"
	"github.com/torchlite-io/torchlite-go/queue"
	"github.com/torchlite-io/torchlite-go/sanitize"
	"github.com/torchlite-io/torchlite-go/scope"
	"github.com/torchlite-io/torchlite-go/transport"
)

const panicClass = "Panic"

// Client is one reporting session: the pipeline from raw error to delivered
// payload. A Client is safe for concurrent use; typical applications create
// one per process and share it.
type Client struct {
	config    Config
	enabled   bool
	logger    *zap.Logger
	sanitizer *sanitize.Sanitizer
	builder   notice.Builder
	transport *transport.T
	queue     *queue.Q
	scopes    *scope.Store
	stopped   int32
}

// New creates a reporting session from config. New never fails: when the
// config cannot produce a working session (e.g. no API key), the returned
// client is inert and every Notify call no-ops with a warning logged once
// here, so error reporting can never take the host application down.
func New(config Config) *Client {
	c := &Client{
		logger: config.Logger,
		scopes: scope.NewStore(),
	}
	if c.logger == nil {
		c.logger = sallust.Default()
	}

	if err := validateConfig(&config); err != nil {
		c.logger.Warn("torchlite disabled: invalid configuration", zap.Error(err))
		return c
	}
	c.config = config
	c.logger = config.Logger
	c.sanitizer = sanitize.New(sanitize.Config{FilterKeys: config.FilterKeys})
	c.builder = notice.Builder{Root: config.Root}

	if !reportingEnabled(&config) {
		c.logger.Info("torchlite reporting disabled for this environment",
			zap.String("environment", config.Environment))
		return c
	}

	t, err := transport.New(transport.Config{
		Endpoint:   config.Endpoint,
		APIKey:     config.APIKey,
		Timeout:    config.Timeout,
		HTTPClient: config.HTTPClient,
		Auth:       config.Auth,
		Logger:     config.Logger,
	}, nil)
	if err != nil {
		c.logger.Warn("torchlite disabled: transport setup failed", zap.Error(err))
		return c
	}
	c.transport = t

	if !config.Sync {
		q, err := queue.New(queue.Config{
			MaxSize:  config.MaxQueueSize,
			Logger:   config.Logger,
			Measures: config.Measures,
		}, t, c.builder)
		if err != nil {
			c.logger.Warn("torchlite disabled: queue setup failed", zap.Error(err))
			return c
		}
		c.queue = q
	}

	c.enabled = true
	return c
}

// Notify reports err. It merges scoped context, user and request data from
// ctx, sanitizes everything, applies ignore rules and the pre-send filters,
// and then either queues the notice (the default) or, in Sync mode, sends it
// on the calling goroutine. It reports whether the notice was accepted for
// delivery (queued, or sent in Sync mode).
func (c *Client) Notify(ctx context.Context, err error, opts ...notice.Option) bool {
	if err == nil || !c.reporting() {
		return false
	}
	n := c.buildNotice(ctx, err, 3, opts...)
	return c.deliver(ctx, n, notice.ErrorCode(err))
}

// NotifyPanic reports a recovered panic value alongside the stack text
// captured at the recovery site (runtime/debug.Stack). It is the reporting
// primitive behind Monitor and the HTTP middleware.
func (c *Client) NotifyPanic(ctx context.Context, value interface{}, stack []byte, opts ...notice.Option) bool {
	if value == nil || !c.reporting() {
		return false
	}
	err, ok := value.(error)
	if !ok {
		err = fmt.Errorf("%v", value)
		opts = append(opts, notice.WithErrorClass(panicClass))
	}
	opts = append(opts, notice.WithBacktrace(c.builder.ParseStack(stack)))
	n := c.buildNotice(ctx, err, 3, opts...)
	return c.deliver(ctx, n, notice.ErrorCode(err))
}

// Monitor reports an in-flight panic and re-raises it. Use it as a deferred
// last line of defense at the top of main or a worker goroutine:
//
//	defer client.Monitor()
//
// The notice is flushed before the panic resumes, so it survives the crash.
func (c *Client) Monitor() {
	value := recover()
	if value == nil {
		return
	}
	c.NotifyPanic(context.Background(), value, debug.Stack())
	c.Flush(c.shutdownTimeout())
	panic(value)
}

// Flush blocks until every notice accepted before the call has been handed
// to the transport, or until timeout elapses. It reports whether the drain
// completed in time.
func (c *Client) Flush(timeout time.Duration) bool {
	if c.queue == nil {
		return true
	}
	return c.queue.Flush(timeout)
}

// Stop drains pending notices and shuts the session down. Notify calls made
// after Stop report false. Stop reports whether the drain completed within
// timeout; on timeout the worker keeps draining in the background, Stop just
// stops waiting for it.
func (c *Client) Stop(timeout time.Duration) bool {
	if !atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		return true
	}
	if c.queue == nil {
		return true
	}
	return c.queue.Stop(timeout)
}

// EnterScope derives a context carrying a fresh reporting scope. Data set
// through the derived context stays isolated to it. Most callers want
// RunScoped or the HTTP middleware instead.
func (c *Client) EnterScope(ctx context.Context) context.Context {
	return c.scopes.Enter(ctx)
}

// RunScoped runs fn inside a fresh reporting scope, so context, user and
// request data set by fn never bleed into concurrent work.
func (c *Client) RunScoped(ctx context.Context, fn func(context.Context) error) error {
	return c.scopes.RunScoped(ctx, fn)
}

// SetContext attaches key/value data to future notices. Inside a scope the
// data is scoped; outside it applies process-wide.
func (c *Client) SetContext(ctx context.Context, m map[string]interface{}) {
	c.scopes.SetContext(ctx, m)
}

// SetUser attaches user data to future notices. Inside a scope the data is
// scoped; outside it applies process-wide.
func (c *Client) SetUser(ctx context.Context, m map[string]interface{}) {
	c.scopes.SetUser(ctx, m)
}

// SetRequest records the request being served by the active scope. It
// reports false outside a scope; there is no process-wide current request.
func (c *Client) SetRequest(ctx context.Context, r model.RequestInfo) bool {
	return c.scopes.SetRequest(ctx, r)
}

// Clear resets the active scope's data, or the process-wide data when no
// scope is active.
func (c *Client) Clear(ctx context.Context) {
	c.scopes.Clear(ctx)
}

// Scope returns the underlying scope store, for adapters that manage scopes
// directly.
func (c *Client) Scope() *scope.Store {
	return c.scopes
}

func (c *Client) reporting() bool {
	return c.enabled && atomic.LoadInt32(&c.stopped) == 0
}

func (c *Client) shutdownTimeout() time.Duration {
	if c.config.ShutdownTimeout > 0 {
		return c.config.ShutdownTimeout
	}
	return DefaultShutdownTimeout
}

// buildNotice assembles and sanitizes a notice: explicit options win over
// scoped data, scoped data wins over the process-wide fallback.
func (c *Client) buildNotice(ctx context.Context, err error, skip int, opts ...notice.Option) *model.Notice {
	n := c.builder.BuildSkip(err, skip, opts...)

	ambient := c.scopes.Context(ctx)
	merged := make(map[string]interface{}, len(ambient)+len(n.Context))
	for k, v := range ambient {
		merged[k] = v
	}
	for k, v := range n.Context {
		merged[k] = v
	}
	n.Context = c.sanitizer.SanitizeMap(merged)

	if boolOrTrue(c.config.SendUser) {
		if n.User.IsZero() {
			n.User = userFromMap(c.scopes.User(ctx))
		}
		n.User.Extra = c.sanitizer.SanitizeMap(n.User.Extra)
	} else {
		n.User = model.UserInfo{}
	}

	if boolOrTrue(c.config.SendRequest) {
		if n.Request.IsZero() {
			if r, ok := c.scopes.Request(ctx); ok {
				n.Request = r
			}
		}
		n.Request = c.sanitizeRequest(n.Request)
	} else {
		n.Request = model.RequestInfo{}
	}

	if boolOrTrue(c.config.SendEnvironment) {
		n.Environment = c.config.Environment
	}
	n.AppName = c.config.AppName
	n.Revision = c.config.Revision
	return n
}

// userFromMap lifts scoped user data into the structured user block. The
// well-known keys become fields; everything else rides along in Extra.
func userFromMap(m map[string]interface{}) model.UserInfo {
	u := model.UserInfo{}
	for k, v := range m {
		switch k {
		case "id":
			u.ID = cast.ToString(v)
		case "email":
			u.Email = cast.ToString(v)
		case "name":
			u.Name = cast.ToString(v)
		default:
			if u.Extra == nil {
				u.Extra = map[string]interface{}{}
			}
			u.Extra[k] = v
		}
	}
	return u
}

func (c *Client) sanitizeRequest(r model.RequestInfo) model.RequestInfo {
	if len(r.Headers) > 0 {
		headers := make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			if c.sanitizer.FilterKey(k) {
				headers[k] = sanitize.Filtered
				continue
			}
			headers[k] = v
		}
		r.Headers = headers
	}
	r.Params = c.sanitizer.SanitizeMap(r.Params)
	if r.Body != nil {
		r.Body = c.sanitizer.Sanitize(r.Body)
	}
	r.Extra = c.sanitizer.SanitizeMap(r.Extra)
	return r
}

func (c *Client) deliver(ctx context.Context, n *model.Notice, code string) bool {
	for _, rule := range c.config.IgnoreRules {
		if rule.Matches(n.ErrorClass, n.Message, code) {
			c.logger.Debug("notice ignored by rule",
				zap.String("errorClass", n.ErrorClass))
			return false
		}
	}
	if c.vetoed(n) {
		return false
	}
	if c.config.Sync {
		_, err := c.transport.Send(ctx, c.builder.ToPayload(n))
		return err == nil
	}
	return c.queue.Push(n)
}

// vetoed runs the pre-send filters in order. A filter returning false vetoes
// the notice. A returned error or a panic is a filter fault: it is logged
// and the remaining filters still run, so a broken filter cannot veto
// reporting.
func (c *Client) vetoed(n *model.Notice) bool {
	for i, f := range c.config.BeforeNotify {
		proceed, err := runFilter(f, n)
		if err != nil {
			c.logger.Warn("pre-send filter fault",
				zap.Int("filter", i), zap.Error(err))
			continue
		}
		if !proceed {
			c.logger.Debug("notice vetoed by pre-send filter",
				zap.Int("filter", i),
				zap.String("errorClass", n.ErrorClass))
			return true
		}
	}
	return false
}

func runFilter(f Filter, n *model.Notice) (proceed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			proceed, err = true, emperror.Wrap(fmt.Errorf("%v", r), "filter panicked")
		}
	}()
	return f(n)
}
