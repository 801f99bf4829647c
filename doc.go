// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package torchlite reports application errors to the Torchlite ingestion
service.

A Client is the pipeline from a raw error value to a delivered payload:
it builds a notice with a backtrace, merges in scoped context, user and
request data, scrubs sensitive values, applies ignore rules and pre-send
filters, and hands the result to a bounded asynchronous delivery queue
with adaptive throttling. A minimal session:

	client := torchlite.New(torchlite.Config{
		APIKey:      os.Getenv("TORCHLITE_API_KEY"),
		Environment: "production",
	})
	defer client.Stop(5 * time.Second)

	if err := doWork(); err != nil {
		client.Notify(ctx, err)
	}

Reporting never takes the host application down: a misconfigured session
is inert, a full queue drops instead of blocking, and filter faults are
logged and skipped.
*/
package torchlite
