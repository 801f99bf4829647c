// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package notice turns raw errors plus contextual inputs into immutable
// Notice values and projects them into their wire payload shape.
package notice

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	pkgerrors "github.com/pkg/errors"
	"github.com/torchlite-io/torchlite-go/model"
)

const (
	// NotifierName identifies this SDK in payload metadata.
	NotifierName = "torchlite-go"

	// Version is the SDK version reported in payload metadata.
	Version = "0.3.0"

	languageName = "go"

	// DefaultMessageCap caps notice messages.
	DefaultMessageCap = 10000

	// DefaultBacktraceCap caps the number of backtrace frames.
	DefaultBacktraceCap = 100

	// projectRootMarker replaces the configured root path in backtrace
	// frames so traces are portable across machines.
	projectRootMarker = "[PROJECT_ROOT]"

	ellipsis = "..."

	fallbackClass   = "Error"
	fallbackMessage = "Unknown error"
)

// stackTracer is satisfied by errors created with github.com/pkg/errors.
type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// coder is satisfied by errors that expose a platform error code.
type coder interface {
	ErrorCode() string
}

// Builder constructs Notice values. The zero value is usable and applies
// the default caps with no root-path rewriting.
type Builder struct {
	// MessageCap caps the notice message length. Longer messages are
	// truncated with an ellipsis. Defaults to DefaultMessageCap.
	MessageCap int

	// BacktraceCap caps the number of backtrace frames kept.
	// Defaults to DefaultBacktraceCap.
	BacktraceCap int

	// Root, when set, is replaced by a placeholder in every backtrace
	// frame.
	Root string
}

// Option adjusts a Notice while it is being built.
type Option func(*model.Notice)

// WithContext shallow-merges m into the notice context.
func WithContext(m map[string]interface{}) Option {
	return func(n *model.Notice) {
		if n.Context == nil {
			n.Context = make(map[string]interface{}, len(m))
		}
		for k, v := range m {
			n.Context[k] = v
		}
	}
}

// WithTags appends tags to the notice.
func WithTags(tags ...string) Option {
	return func(n *model.Notice) {
		n.Tags = append(n.Tags, tags...)
	}
}

// WithFingerprint sets a custom grouping fingerprint.
func WithFingerprint(fingerprint string) Option {
	return func(n *model.Notice) {
		n.Fingerprint = fingerprint
	}
}

// WithErrorClass overrides the error class derived from the error's type.
func WithErrorClass(class string) Option {
	return func(n *model.Notice) {
		if class != "" {
			n.ErrorClass = class
		}
	}
}

// WithUser sets the affected user.
func WithUser(u model.UserInfo) Option {
	return func(n *model.Notice) {
		n.User = u
	}
}

// WithRequest sets the request being served when the error occurred.
func WithRequest(r model.RequestInfo) Option {
	return func(n *model.Notice) {
		n.Request = r
	}
}

// WithBacktrace replaces the captured backtrace, e.g. with frames parsed
// from a recovered panic's stack text.
func WithBacktrace(frames []string) Option {
	return func(n *model.Notice) {
		n.Backtrace = frames
	}
}

// Build creates a Notice for err. The backtrace comes from the error
// itself when it carries one, otherwise from the caller's stack.
func (b Builder) Build(err error, opts ...Option) *model.Notice {
	return b.BuildSkip(err, 1, opts...)
}

// BuildSkip is Build with explicit control over how many caller frames to
// drop when the stack is captured at the call site.
func (b Builder) BuildSkip(err error, skip int, opts ...Option) *model.Notice {
	n := &model.Notice{
		ErrorClass: ErrorClass(err),
		Message:    b.message(err),
		Backtrace:  b.backtrace(err, skip+1),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.Message = b.truncate(n.Message)
	if len(n.Backtrace) > b.backtraceCap() {
		n.Backtrace = n.Backtrace[:b.backtraceCap()]
	}
	return n
}

// ErrorClass derives a grouping class name from the error's concrete type,
// falling back to "Error" for anonymous stdlib error values.
func ErrorClass(err error) string {
	if err == nil {
		return fallbackClass
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch name := t.String(); name {
	case "", "errors.errorString", "errors.fundamental", "errors.joinError",
		"errors.withStack", "errors.withMessage",
		"fmt.wrapError", "fmt.wrapErrors":
		return fallbackClass
	default:
		return name
	}
}

// ErrorCode returns the platform error code carried by err or any error it
// wraps, or the empty string.
func ErrorCode(err error) string {
	for err != nil {
		if c, ok := err.(coder); ok {
			return c.ErrorCode()
		}
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			err = u.Unwrap()
		default:
			return ""
		}
	}
	return ""
}

func (b Builder) message(err error) string {
	if err == nil {
		return fallbackMessage
	}
	msg := err.Error()
	if msg == "" {
		return fallbackMessage
	}
	return msg
}

func (b Builder) truncate(msg string) string {
	limit := b.messageCap()
	if len(msg) <= limit {
		return msg
	}
	cut := limit - len(ellipsis)
	// Never split a multi-byte rune; back off to its first byte.
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + ellipsis
}

func (b Builder) messageCap() int {
	if b.MessageCap > 0 {
		return b.MessageCap
	}
	return DefaultMessageCap
}

func (b Builder) backtraceCap() int {
	if b.BacktraceCap > 0 {
		return b.BacktraceCap
	}
	return DefaultBacktraceCap
}

// backtrace prefers the stack recorded inside the error; otherwise it
// captures the current one, skipping builder internals.
func (b Builder) backtrace(err error, skip int) []string {
	if frames := b.errorStack(err); len(frames) > 0 {
		return frames
	}
	return b.captureStack(skip + 1)
}

func (b Builder) errorStack(err error) []string {
	for err != nil {
		if st, ok := err.(stackTracer); ok {
			return b.formatStackTrace(st.StackTrace())
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

func (b Builder) formatStackTrace(st pkgerrors.StackTrace) []string {
	frames := make([]string, 0, len(st))
	for _, f := range st {
		if len(frames) == b.backtraceCap() {
			break
		}
		// "%+v" renders "pkg.Func\n\tfile:line".
		text := fmt.Sprintf("%+v", f)
		parts := strings.SplitN(text, "\n\t", 2)
		if len(parts) != 2 {
			continue
		}
		frames = append(frames, b.frame(parts[1], parts[0]))
	}
	return frames
}

func (b Builder) captureStack(skip int) []string {
	pcs := make([]uintptr, b.backtraceCap()+8)
	n := runtime.Callers(skip+1, pcs)
	callers := runtime.CallersFrames(pcs[:n])
	frames := make([]string, 0, n)
	for {
		f, more := callers.Next()
		if !more {
			break
		}
		if len(frames) == b.backtraceCap() {
			break
		}
		if skipFunction(f.Function) {
			continue
		}
		frames = append(frames, b.frame(fmt.Sprintf("%s:%d", f.File, f.Line), f.Function))
	}
	return frames
}

// skipFunction identifies frames internal to the runtime or to notice
// construction itself.
func skipFunction(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.HasPrefix(fn, "runtime/debug.") ||
		strings.HasPrefix(fn, "github.com/torchlite-io/torchlite-go/notice.Builder")
}

func (b Builder) frame(location, function string) string {
	if b.Root != "" {
		location = strings.ReplaceAll(location, b.Root, projectRootMarker)
	}
	return fmt.Sprintf("%s in %s", location, function)
}

// ParseStack extracts frame lines from raw goroutine stack text, as
// produced by runtime/debug.Stack. Frame lines are selected structurally:
// a tab-indented "file:line" under its function line.
func (b Builder) ParseStack(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")
	frames := make([]string, 0, len(lines)/2)
	function := ""
	for _, line := range lines {
		if !strings.HasPrefix(line, "\t") {
			function = strings.TrimSuffix(strings.TrimSpace(line), ")")
			if i := strings.LastIndex(function, "("); i > 0 {
				function = function[:i]
			}
			continue
		}
		location := strings.TrimSpace(line)
		if i := strings.Index(location, " +0x"); i > 0 {
			location = location[:i]
		}
		if !strings.Contains(location, ".go:") {
			continue
		}
		if skipFunction(function) {
			continue
		}
		if len(frames) == b.backtraceCap() {
			break
		}
		frames = append(frames, b.frame(location, function))
	}
	return frames
}
