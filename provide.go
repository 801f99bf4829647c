// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package torchlite

import (
	"context"

	"go.uber.org/fx"

	"github.com/torchlite-io/torchlite-go/queue"
)

// ClientIn collects the dependencies for an fx-managed Client.
type ClientIn struct {
	fx.In
	Config   Config
	Measures queue.Measures
	LC       fx.Lifecycle
}

// Provide bundles the queue metrics with an fx-managed Client built from an
// injected Config. The client drains and stops when the app shuts down.
func Provide() fx.Option {
	return fx.Options(
		queue.ProvideMetrics(),
		fx.Provide(newClient),
	)
}

func newClient(in ClientIn) *Client {
	in.Config.Measures = &in.Measures
	c := New(in.Config)
	in.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			c.Stop(c.shutdownTimeout())
			return nil
		},
	})
	return c
}
