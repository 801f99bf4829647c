// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sanitize scrubs sensitive keys and oversized values from
// arbitrary structured data before it leaves the process.
package sanitize

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"
)

const (
	// Filtered replaces the value of any key matching a filter pattern,
	// and any subtree nested beyond the depth bound.
	Filtered = "[FILTERED]"

	// binaryPlaceholder replaces binary blobs, which are never traversed
	// or stringified.
	binaryPlaceholder = "[BINARY]"

	// truncationMarker terminates strings cut down to the length cap.
	truncationMarker = "...[TRUNCATED]"

	// DefaultMaxStringLength is the cap applied to string values.
	DefaultMaxStringLength = 10000

	// DefaultMaxDepth bounds recursion into nested containers.
	DefaultMaxDepth = 10
)

// DefaultFilterKeys are always scrubbed, regardless of configuration.
var DefaultFilterKeys = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"api_key",
	"apikey",
	"access_key",
	"private_key",
	"authorization",
	"bearer",
	"credit_card",
	"card_number",
	"cvv",
	"ssn",
	"social_security",
}

// Config holds the sanitizer knobs. The zero value yields a sanitizer with
// the built-in filter keys and default caps.
type Config struct {
	// FilterKeys are additional key names to scrub, merged with
	// DefaultFilterKeys. Matching is case-insensitive and matches
	// anywhere within the key.
	FilterKeys []string

	// MaxStringLength caps string values. Longer strings are truncated
	// and terminated with a marker. Defaults to DefaultMaxStringLength.
	MaxStringLength int

	// MaxDepth bounds recursion into nested containers. Subtrees beyond
	// the bound are replaced wholesale. Defaults to DefaultMaxDepth.
	MaxDepth int

	// DisableDefaultKeys skips merging DefaultFilterKeys, leaving only
	// FilterKeys in effect. An empty effective key set matches nothing.
	DisableDefaultKeys bool
}

// Sanitizer produces deep, scrubbed copies of arbitrary values. It never
// mutates its input, and sanitizing the same input twice yields
// structurally identical output.
type Sanitizer struct {
	pattern   *regexp.Regexp
	maxString int
	maxDepth  int
}

// New builds a Sanitizer from config. The filter pattern is compiled once,
// as a single case-insensitive alternation over all configured keys.
func New(config Config) *Sanitizer {
	keys := config.FilterKeys
	if !config.DisableDefaultKeys {
		keys = append(append([]string{}, DefaultFilterKeys...), keys...)
	}
	if config.MaxStringLength == 0 {
		config.MaxStringLength = DefaultMaxStringLength
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	return &Sanitizer{
		pattern:   compileKeys(keys),
		maxString: config.MaxStringLength,
		maxDepth:  config.MaxDepth,
	}
}

// compileKeys returns nil for an empty key list: no pattern, no matches.
func compileKeys(keys []string) *regexp.Regexp {
	if len(keys) == 0 {
		return nil
	}
	quoted := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(k))
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile("(?i)(" + strings.Join(quoted, "|") + ")")
}

// FilterKey reports whether a mapping key matches the configured filter
// pattern.
func (s *Sanitizer) FilterKey(key string) bool {
	return s.pattern != nil && s.pattern.MatchString(key)
}

// Sanitize returns a deep copy of v with filtered keys redacted, long
// strings truncated, binary blobs replaced and over-deep subtrees
// collapsed.
func (s *Sanitizer) Sanitize(v interface{}) interface{} {
	return s.value(v, 0)
}

// SanitizeMap is a convenience wrapper for the common case of scrubbing a
// string-keyed map. It returns nil only for nil input.
func (s *Sanitizer) SanitizeMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out, ok := s.value(m, 0).(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return out
}

func (s *Sanitizer) value(v interface{}, depth int) interface{} {
	if v == nil {
		return nil
	}

	// Fast paths for the types that dominate notice data.
	switch t := v.(type) {
	case string:
		return s.str(t)
	case []byte:
		return binaryPlaceholder
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case map[string]interface{}:
		if depth >= s.maxDepth {
			return Filtered
		}
		out := make(map[string]interface{}, len(t))
		for k, mv := range t {
			if s.FilterKey(k) {
				out[k] = Filtered
				continue
			}
			out[k] = s.value(mv, depth+1)
		}
		return out
	case []interface{}:
		if depth >= s.maxDepth {
			return Filtered
		}
		out := make([]interface{}, len(t))
		for i, ev := range t {
			out[i] = s.value(ev, depth+1)
		}
		return out
	}

	return s.reflectValue(reflect.ValueOf(v), depth)
}

func (s *Sanitizer) reflectValue(rv reflect.Value, depth int) interface{} {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return s.value(rv.Elem().Interface(), depth)
	case reflect.String:
		return s.str(rv.String())
	case reflect.Map:
		if depth >= s.maxDepth {
			return Filtered
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := mapKey(iter.Key())
			if s.FilterKey(key) {
				out[key] = Filtered
				continue
			}
			out[key] = s.value(iter.Value().Interface(), depth+1)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return binaryPlaceholder
		}
		if depth >= s.maxDepth {
			return Filtered
		}
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = s.value(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Struct:
		if depth >= s.maxDepth {
			return Filtered
		}
		return s.structValue(rv, depth)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Not representable on the wire.
		return fmt.Sprintf("[%s]", rv.Kind())
	default:
		return rv.Interface()
	}
}

// structValue lowers a struct to a map keyed by exported field name so key
// filtering applies to it like any other mapping.
func (s *Sanitizer) structValue(rv reflect.Value, depth int) interface{} {
	t := rv.Type()
	out := make(map[string]interface{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" { // unexported
			continue
		}
		if s.FilterKey(field.Name) {
			out[field.Name] = Filtered
			continue
		}
		out[field.Name] = s.value(rv.Field(i).Interface(), depth+1)
	}
	return out
}

func (s *Sanitizer) str(v string) string {
	if len(v) <= s.maxString {
		return v
	}
	cut := s.maxString - len(truncationMarker)
	// Never split a multi-byte rune; back off to its first byte.
	for cut > 0 && !utf8.RuneStart(v[cut]) {
		cut--
	}
	return v[:cut] + truncationMarker
}

func mapKey(k reflect.Value) string {
	key := cast.ToString(k.Interface())
	if key == "" && k.Kind() != reflect.String {
		key = fmt.Sprint(k.Interface())
	}
	return key
}
