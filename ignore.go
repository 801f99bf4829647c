// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package torchlite

import "regexp"

// IgnoreRule suppresses reporting of matching errors. A rule matches when
// either its Class equals the error class exactly, or its Pattern matches
// the error class, message or platform error code.
type IgnoreRule struct {
	Class   string
	Pattern *regexp.Regexp
}

// Matches reports whether the rule applies to the given error attributes.
func (r IgnoreRule) Matches(class, message, code string) bool {
	if r.Class != "" && r.Class == class {
		return true
	}
	if r.Pattern == nil {
		return false
	}
	if r.Pattern.MatchString(class) || r.Pattern.MatchString(message) {
		return true
	}
	return code != "" && r.Pattern.MatchString(code)
}

// IgnoreClass builds a rule matching an error class exactly.
func IgnoreClass(class string) IgnoreRule {
	return IgnoreRule{Class: class}
}

// IgnorePattern builds a rule from a regular expression matched against
// class, message and code.
func IgnorePattern(pattern string) IgnoreRule {
	return IgnoreRule{Pattern: regexp.MustCompile(pattern)}
}
