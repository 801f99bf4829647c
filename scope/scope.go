// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package scope supplies per-logical-task context, user and request data
// for notices. Each task (e.g. one inbound HTTP request) owns an isolated
// triple carried by its context.Context; a process-wide fallback triple
// serves code running outside any scoped task.
//
// Contexts already provide the isolation and cross-suspension persistence
// the pipeline needs: a derived context follows its task across goroutine
// and await boundaries, and two tasks never share one.
package scope

import (
	"context"
	"sync"

	"github.com/torchlite-io/torchlite-go/model"
)

type contextKey struct{}

// triple is the ambient {context, user, request} data owned by one scope.
// A mutex guards it because a task may fan out into goroutines that write
// concurrently.
type triple struct {
	lock    sync.RWMutex
	context map[string]interface{}
	user    map[string]interface{}
	request *model.RequestInfo
}

func newTriple() *triple {
	return &triple{
		context: map[string]interface{}{},
		user:    map[string]interface{}{},
	}
}

func (t *triple) merge(dst string, m map[string]interface{}) {
	t.lock.Lock()
	defer t.lock.Unlock()
	target := t.context
	if dst == "user" {
		target = t.user
	}
	for k, v := range m {
		target[k] = v
	}
}

func (t *triple) clear() {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.context = map[string]interface{}{}
	t.user = map[string]interface{}{}
	t.request = nil
}

// snapshot copies one of the triple's maps under the read lock.
func (t *triple) snapshot(src string) map[string]interface{} {
	t.lock.RLock()
	defer t.lock.RUnlock()
	source := t.context
	if src == "user" {
		source = t.user
	}
	out := make(map[string]interface{}, len(source))
	for k, v := range source {
		out[k] = v
	}
	return out
}

// Store provides scoped ambient data plus the process-wide fallback.
type Store struct {
	fallback triple
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Enter derives a context carrying a fresh, empty scope triple, isolated
// from any scope the parent context carries and from sibling scopes. The
// triple is discarded with the context.
func (s *Store) Enter(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, newTriple())
}

// RunScoped runs fn inside a fresh scope. The scope lives for the duration
// of fn, including across any blocking or asynchronous work fn performs
// with the derived context, and is discarded when fn returns.
func (s *Store) RunScoped(ctx context.Context, fn func(context.Context) error) error {
	return fn(s.Enter(ctx))
}

func (s *Store) active(ctx context.Context) *triple {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(contextKey{}).(*triple)
	return t
}

// SetContext shallow-merges m into the active scope, or into the
// process-wide fallback when no scope is active.
func (s *Store) SetContext(ctx context.Context, m map[string]interface{}) {
	if t := s.active(ctx); t != nil {
		t.merge("context", m)
		return
	}
	s.fallback.merge("context", m)
}

// SetUser shallow-merges m into the active scope, or into the process-wide
// fallback when no scope is active.
func (s *Store) SetUser(ctx context.Context, m map[string]interface{}) {
	if t := s.active(ctx); t != nil {
		t.merge("user", m)
		return
	}
	s.fallback.merge("user", m)
}

// SetRequest records the request for the active scope. There is no global
// current request, so it reports false and records nothing outside a
// scope.
func (s *Store) SetRequest(ctx context.Context, r model.RequestInfo) bool {
	t := s.active(ctx)
	if t == nil {
		return false
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	t.request = &r
	return true
}

// Context returns the fallback context data shallow-merged with the active
// scope's; scoped values win.
func (s *Store) Context(ctx context.Context) map[string]interface{} {
	return s.merged(ctx, "context")
}

// User returns the fallback user data shallow-merged with the active
// scope's; scoped values win.
func (s *Store) User(ctx context.Context) map[string]interface{} {
	return s.merged(ctx, "user")
}

// Request returns the active scope's request data, if any was recorded.
func (s *Store) Request(ctx context.Context) (model.RequestInfo, bool) {
	t := s.active(ctx)
	if t == nil {
		return model.RequestInfo{}, false
	}
	t.lock.RLock()
	defer t.lock.RUnlock()
	if t.request == nil {
		return model.RequestInfo{}, false
	}
	return *t.request, true
}

func (s *Store) merged(ctx context.Context, src string) map[string]interface{} {
	out := s.fallback.snapshot(src)
	if t := s.active(ctx); t != nil {
		for k, v := range t.snapshot(src) {
			out[k] = v
		}
	}
	return out
}

// Clear resets the active scope to empty, or the fallback when no scope is
// active.
func (s *Store) Clear(ctx context.Context) {
	if t := s.active(ctx); t != nil {
		t.clear()
		return
	}
	s.fallback.clear()
}
