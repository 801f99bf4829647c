// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package notice

import (
	"runtime"

	"github.com/torchlite-io/torchlite-go/model"
)

// Keys under which deployment data is folded into the payload context.
const (
	environmentKey = "environment"
	appNameKey     = "app_name"
	revisionKey    = "revision"
)

// ToPayload projects a Notice into its wire shape. It is a pure function
// of the notice: environment, app name and revision are folded into the
// context block only when present, and the tags field is omitted entirely
// when the tag list is empty.
func (b Builder) ToPayload(n *model.Notice) model.NoticePayload {
	return model.NoticePayload{
		Error: model.ErrorBlock{
			Class:       n.ErrorClass,
			Message:     n.Message,
			Backtrace:   copyStrings(n.Backtrace),
			OccurredAt:  n.OccurredAt,
			Fingerprint: n.Fingerprint,
			Tags:        tags(n.Tags),
		},
		Context:  contextBlock(n),
		Request:  requestBlock(n.Request),
		User:     userBlock(n.User),
		Notifier: Notifier(),
	}
}

// Notifier returns the SDK metadata attached to every payload.
func Notifier() model.NotifierInfo {
	return model.NotifierInfo{
		Name:            NotifierName,
		Version:         Version,
		Language:        languageName,
		LanguageVersion: runtime.Version(),
	}
}

// tags returns nil for an empty list so the field is dropped from the
// JSON encoding rather than serialized as [].
func tags(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return copyStrings(in)
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func contextBlock(n *model.Notice) map[string]interface{} {
	out := make(map[string]interface{}, len(n.Context)+3)
	for k, v := range n.Context {
		out[k] = v
	}
	if n.Environment != "" {
		out[environmentKey] = n.Environment
	}
	if n.AppName != "" {
		out[appNameKey] = n.AppName
	}
	if n.Revision != "" {
		out[revisionKey] = n.Revision
	}
	return out
}

func requestBlock(r model.RequestInfo) map[string]interface{} {
	out := make(map[string]interface{})
	setString(out, "url", r.URL)
	setString(out, "method", r.Method)
	setString(out, "path", r.Path)
	setString(out, "query", r.Query)
	if len(r.Headers) > 0 {
		headers := make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			headers[k] = v
		}
		out["headers"] = headers
	}
	if len(r.Params) > 0 {
		params := make(map[string]interface{}, len(r.Params))
		for k, v := range r.Params {
			params[k] = v
		}
		out["params"] = params
	}
	if r.Body != nil {
		out["body"] = r.Body
	}
	setString(out, "remote_ip", r.RemoteIP)
	setString(out, "user_agent", r.UserAgent)
	setString(out, "referer", r.Referer)
	setString(out, "content_type", r.ContentType)
	if r.ContentLength > 0 {
		out["content_length"] = r.ContentLength
	}
	for k, v := range r.Extra {
		out[k] = v
	}
	return out
}

func userBlock(u model.UserInfo) map[string]interface{} {
	out := make(map[string]interface{})
	setString(out, "id", u.ID)
	setString(out, "email", u.Email)
	setString(out, "name", u.Name)
	for k, v := range u.Extra {
		out[k] = v
	}
	return out
}

func setString(m map[string]interface{}, key, value string) {
	if value != "" {
		m[key] = value
	}
}
