// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package torchlite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/torchlite-io/torchlite-go/model"
	"github.com/torchlite-io/torchlite-go/notice"
)

type boomError struct{ msg string }

func (e *boomError) Error() string { return e.msg }

// ingestServer is an in-process stand-in for the ingestion endpoint.
type ingestServer struct {
	*httptest.Server
	payloads chan model.NoticePayload
	apiKeys  chan string
}

func newIngestServer(t *testing.T) *ingestServer {
	t.Helper()
	s := &ingestServer{
		payloads: make(chan model.NoticePayload, 16),
		apiKeys:  make(chan string, 16),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p model.NoticePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		s.payloads <- p
		s.apiKeys <- r.Header.Get("X-API-Key")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 7, "problem_id": 3}`))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *ingestServer) waitForPayload(t *testing.T) model.NoticePayload {
	t.Helper()
	select {
	case p := <-s.payloads:
		return p
	case <-time.After(5 * time.Second):
		require.FailNow(t, "no payload delivered")
		return model.NoticePayload{}
	}
}

func newTestClient(t *testing.T, config Config, server *ingestServer) *Client {
	t.Helper()
	if config.APIKey == "" {
		config.APIKey = "test-key"
	}
	if config.Endpoint == "" {
		config.Endpoint = server.URL
	}
	if config.Environment == "" {
		config.Environment = "production"
	}
	c := New(config)
	t.Cleanup(func() { c.Stop(time.Second) })
	return c
}

func TestNotifyEndToEnd(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := newIngestServer(t)
	c := newTestClient(t, Config{
		AppName:  "checkout",
		Revision: "abc123",
	}, server)

	c.SetContext(context.Background(), map[string]interface{}{"region": "eu-1"})

	err := c.RunScoped(context.Background(), func(ctx context.Context) error {
		c.SetContext(ctx, map[string]interface{}{
			"orderId":  42,
			"password": "hunter2",
		})
		c.SetUser(ctx, map[string]interface{}{"id": "u-1", "plan": "pro"})
		require.True(c.Notify(ctx, &boomError{"bad thing"}))
		return nil
	})
	require.NoError(err)
	require.True(c.Flush(5 * time.Second))

	p := server.waitForPayload(t)
	assert.Equal("torchlite.boomError", p.Error.Class)
	assert.Equal("bad thing", p.Error.Message)
	assert.NotEmpty(p.Error.Backtrace)

	assert.Equal("eu-1", p.Context["region"])
	assert.Equal(float64(42), p.Context["orderId"])
	assert.Equal("[FILTERED]", p.Context["password"])
	assert.Equal("production", p.Context["environment"])
	assert.Equal("checkout", p.Context["app_name"])
	assert.Equal("abc123", p.Context["revision"])

	assert.Equal("u-1", p.User["id"])
	assert.Equal("pro", p.User["plan"])

	assert.Equal("torchlite-go", p.Notifier.Name)
	assert.Equal("test-key", <-server.apiKeys)
}

func TestNotifyNilError(t *testing.T) {
	server := newIngestServer(t)
	c := newTestClient(t, Config{}, server)
	assert.False(t, c.Notify(context.Background(), nil))
}

func TestNotifyOptionsWinOverScope(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := newIngestServer(t)
	c := newTestClient(t, Config{Sync: true}, server)

	require.NoError(c.RunScoped(context.Background(), func(ctx context.Context) error {
		c.SetContext(ctx, map[string]interface{}{"tier": "free", "region": "eu-1"})
		require.True(c.Notify(ctx, errors.New("boom"),
			notice.WithContext(map[string]interface{}{"tier": "pro"}),
			notice.WithTags("billing"),
			notice.WithFingerprint("custom-group"),
		))
		return nil
	}))

	p := server.waitForPayload(t)
	assert.Equal("pro", p.Context["tier"], "explicit context wins over scoped")
	assert.Equal("eu-1", p.Context["region"])
	assert.Equal([]string{"billing"}, p.Error.Tags)
	assert.Equal("custom-group", p.Error.Fingerprint)
}

func TestInertClient(t *testing.T) {
	assert := assert.New(t)

	// No API key: New succeeds but the session never reports.
	c := New(Config{})
	assert.False(c.Notify(context.Background(), errors.New("boom")))
	assert.True(c.Flush(time.Second))
	assert.True(c.Stop(time.Second))

	// Scope operations still work so instrumented code keeps running.
	c.SetContext(context.Background(), map[string]interface{}{"k": "v"})
	assert.NotPanics(func() { c.Clear(context.Background()) })
}

func TestReportingDisabledInDevelopment(t *testing.T) {
	assert := assert.New(t)

	server := newIngestServer(t)
	c := New(Config{APIKey: "k", Endpoint: server.URL, Environment: "development"})
	assert.False(c.Notify(context.Background(), errors.New("boom")))

	// The explicit flag overrides the environment inference.
	enabled := true
	c = newTestClient(t, Config{
		Environment: "development",
		Enabled:     &enabled,
		Sync:        true,
	}, server)
	assert.True(c.Notify(context.Background(), errors.New("boom")))
}

func TestIgnoreRulesSuppressDelivery(t *testing.T) {
	assert := assert.New(t)

	server := newIngestServer(t)
	c := newTestClient(t, Config{
		Sync: true,
		IgnoreRules: []IgnoreRule{
			IgnoreClass("torchlite.boomError"),
			IgnorePattern("(?i)timed out"),
		},
	}, server)

	assert.False(c.Notify(context.Background(), &boomError{"bad thing"}),
		"class rule")
	assert.False(c.Notify(context.Background(), errors.New("request Timed Out after 5s")),
		"pattern rule against message")
	assert.True(c.Notify(context.Background(), errors.New("boom")))

	p := server.waitForPayload(t)
	assert.Equal("boom", p.Error.Message)
	assert.Empty(server.payloads, "ignored errors must never reach the endpoint")
}

func TestBeforeNotifyVeto(t *testing.T) {
	assert := assert.New(t)

	server := newIngestServer(t)
	c := newTestClient(t, Config{
		Sync: true,
		BeforeNotify: []Filter{
			func(n *model.Notice) (bool, error) {
				return n.ErrorClass != "torchlite.boomError", nil
			},
		},
	}, server)

	assert.False(c.Notify(context.Background(), &boomError{"vetoed"}))
	assert.True(c.Notify(context.Background(), errors.New("allowed")))

	p := server.waitForPayload(t)
	assert.Equal("allowed", p.Error.Message)
	assert.Empty(server.payloads)
}

func TestBeforeNotifyFaultsDoNotBlock(t *testing.T) {
	assert := assert.New(t)

	var mutated bool
	server := newIngestServer(t)
	c := newTestClient(t, Config{
		Sync: true,
		BeforeNotify: []Filter{
			func(*model.Notice) (bool, error) {
				return false, errors.New("filter broke")
			},
			func(*model.Notice) (bool, error) {
				panic("filter panicked")
			},
			func(n *model.Notice) (bool, error) {
				mutated = true
				n.Fingerprint = "set-by-filter"
				return true, nil
			},
		},
	}, server)

	assert.True(c.Notify(context.Background(), errors.New("boom")),
		"faulty filters must not veto")
	assert.True(mutated, "filters after a fault still run")

	p := server.waitForPayload(t)
	assert.Equal("set-by-filter", p.Error.Fingerprint)
}

func TestSendFlagsStripCategories(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	off := false
	server := newIngestServer(t)
	c := newTestClient(t, Config{
		Sync:            true,
		SendUser:        &off,
		SendRequest:     &off,
		SendEnvironment: &off,
	}, server)

	require.NoError(c.RunScoped(context.Background(), func(ctx context.Context) error {
		c.SetUser(ctx, map[string]interface{}{"id": "u-1"})
		c.SetRequest(ctx, model.RequestInfo{URL: "http://x", Method: "GET"})
		require.True(c.Notify(ctx, errors.New("boom")))
		return nil
	}))

	p := server.waitForPayload(t)
	assert.Empty(p.User)
	assert.Empty(p.Request)
	assert.NotContains(p.Context, "environment")
}

func TestScopedRequestIsReported(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := newIngestServer(t)
	c := newTestClient(t, Config{Sync: true}, server)

	require.NoError(c.RunScoped(context.Background(), func(ctx context.Context) error {
		require.True(c.SetRequest(ctx, model.RequestInfo{
			URL:    "http://svc/orders/42",
			Method: "POST",
			Headers: map[string]string{
				"Authorization": "Bearer abc",
				"Accept":        "application/json",
			},
			Params: map[string]interface{}{"password": "hunter2", "q": "x"},
		}))
		require.True(c.Notify(ctx, errors.New("boom")))
		return nil
	}))

	p := server.waitForPayload(t)
	assert.Equal("http://svc/orders/42", p.Request["url"])
	assert.Equal("POST", p.Request["method"])

	headers := p.Request["headers"].(map[string]interface{})
	assert.Equal("[FILTERED]", headers["Authorization"])
	assert.Equal("application/json", headers["Accept"])

	params := p.Request["params"].(map[string]interface{})
	assert.Equal("[FILTERED]", params["password"])
	assert.Equal("x", params["q"])
}

func TestNotifyAfterStop(t *testing.T) {
	assert := assert.New(t)

	server := newIngestServer(t)
	c := newTestClient(t, Config{}, server)

	assert.True(c.Stop(time.Second))
	assert.False(c.Notify(context.Background(), errors.New("boom")))
	assert.Empty(server.payloads)
}

func TestNotifyPanicValue(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	server := newIngestServer(t)
	c := newTestClient(t, Config{Sync: true}, server)

	require.True(c.NotifyPanic(context.Background(), "kaboom", stackFixture))
	p := server.waitForPayload(t)
	assert.Equal("Panic", p.Error.Class)
	assert.Equal("kaboom", p.Error.Message)
	require.NotEmpty(p.Error.Backtrace)
	assert.Contains(p.Error.Backtrace[0], "main.handle")
}

// stackFixture mimics runtime/debug.Stack output.
var stackFixture = []byte(`goroutine 1 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x64
main.handle(0x0?)
	/srv/app/handler.go:42 +0x1c
main.main()
	/srv/app/main.go:12 +0x30
`)

func TestMonitorReportsAndRepanics(t *testing.T) {
	assert := assert.New(t)

	server := newIngestServer(t)
	c := newTestClient(t, Config{Sync: true}, server)

	recovered := func() (r interface{}) {
		defer func() { r = recover() }()
		func() {
			defer c.Monitor()
			panic("kaboom")
		}()
		return nil
	}()

	assert.Equal("kaboom", recovered, "the panic must resume after reporting")

	p := server.waitForPayload(t)
	assert.Equal("Panic", p.Error.Class)
	assert.Equal("kaboom", p.Error.Message)
	assert.NotEmpty(p.Error.Backtrace)
}

func TestMonitorWithoutPanic(t *testing.T) {
	server := newIngestServer(t)
	c := newTestClient(t, Config{Sync: true}, server)

	assert.NotPanics(t, func() {
		defer c.Monitor()
	})
	assert.Empty(t, server.payloads)
}

func TestSyncNotifyReportsDeliveryFailure(t *testing.T) {
	assert := assert.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{
		APIKey:      "k",
		Endpoint:    server.URL,
		Environment: "production",
		Sync:        true,
		Logger:      zap.NewNop(),
	})
	assert.False(c.Notify(context.Background(), errors.New("boom")))
}
