// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package model

// Notice is the canonical, immutable representation of a single error event.
// A Notice is created once by the notice builder and must not be mutated
// after the pre-send filters have run; it is either handed to the transport
// or dropped.
type Notice struct {
	// ErrorClass is the name of the error's concrete type.
	ErrorClass string

	// Message is the error message, capped by the builder.
	Message string

	// Backtrace holds the stack frames of the error, newest first,
	// capped by the builder.
	Backtrace []string

	// Fingerprint overrides server-side grouping when set.
	Fingerprint string

	// Tags is an ordered set of labels attached to the error.
	Tags []string

	// Context holds arbitrary, sanitized key/value data.
	Context map[string]interface{}

	// Request describes the inbound request being served when the
	// error occurred, if any.
	Request RequestInfo

	// User identifies the user affected by the error, if known.
	User UserInfo

	Environment string
	AppName     string
	Revision    string

	// OccurredAt is the notice creation time in RFC 3339 form.
	OccurredAt string
}

// RequestInfo describes the request during which an error occurred. All
// fields are optional; Extra carries any additional keys an adapter wants
// to attach.
type RequestInfo struct {
	URL           string
	Method        string
	Path          string
	Query         string
	Headers       map[string]string
	Params        map[string]interface{}
	Body          interface{}
	RemoteIP      string
	UserAgent     string
	Referer       string
	ContentType   string
	ContentLength int64
	Extra         map[string]interface{}
}

// IsZero reports whether no request data has been recorded.
func (r RequestInfo) IsZero() bool {
	return r.URL == "" && r.Method == "" && r.Path == "" && r.Query == "" &&
		len(r.Headers) == 0 && len(r.Params) == 0 && r.Body == nil &&
		r.RemoteIP == "" && r.UserAgent == "" && r.Referer == "" &&
		r.ContentType == "" && r.ContentLength == 0 && len(r.Extra) == 0
}

// UserInfo identifies the user affected by an error. All fields are
// optional; Extra carries any additional keys.
type UserInfo struct {
	ID    string
	Email string
	Name  string
	Extra map[string]interface{}
}

// IsZero reports whether no user data has been recorded.
func (u UserInfo) IsZero() bool {
	return u.ID == "" && u.Email == "" && u.Name == "" && len(u.Extra) == 0
}

// NoticePayload is the wire-format projection of a Notice. It has no
// lifecycle of its own; it is produced by the notice builder immediately
// before delivery.
type NoticePayload struct {
	Error    ErrorBlock             `json:"error"`
	Context  map[string]interface{} `json:"context"`
	Request  map[string]interface{} `json:"request"`
	User     map[string]interface{} `json:"user"`
	Notifier NotifierInfo           `json:"notifier"`
}

// ErrorBlock is the error portion of a NoticePayload. Tags is omitted
// entirely when empty; the ingestion side treats a present-but-empty tag
// list differently during grouping, so an empty slice must never be
// emitted.
type ErrorBlock struct {
	Class       string   `json:"class"`
	Message     string   `json:"message"`
	Backtrace   []string `json:"backtrace"`
	OccurredAt  string   `json:"occurred_at"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// NotifierInfo identifies the SDK producing a payload.
type NotifierInfo struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	Language        string `json:"language"`
	LanguageVersion string `json:"language_version"`
}

// IngestResponse is the body returned by the ingestion endpoint on a
// successful (201) delivery.
type IngestResponse struct {
	ID        int64 `json:"id"`
	ProblemID int64 `json:"problem_id"`
}
