// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterKeys(t *testing.T) {
	type testCase struct {
		Description string
		Config      Config
		Input       map[string]interface{}
		Expected    map[string]interface{}
	}

	tcs := []testCase{
		{
			Description: "Built-in keys",
			Input: map[string]interface{}{
				"password": "hunter2",
				"orderId":  42,
			},
			Expected: map[string]interface{}{
				"password": Filtered,
				"orderId":  42,
			},
		},
		{
			Description: "Case insensitive match",
			Input: map[string]interface{}{
				"Authorization": "Bearer abc",
				"API_KEY":       "xyz",
			},
			Expected: map[string]interface{}{
				"Authorization": Filtered,
				"API_KEY":       Filtered,
			},
		},
		{
			Description: "User supplied keys are merged with defaults",
			Config:      Config{FilterKeys: []string{"session"}},
			Input: map[string]interface{}{
				"sessionId": "s-1",
				"token":     "t-1",
				"plain":     "ok",
			},
			Expected: map[string]interface{}{
				"sessionId": Filtered,
				"token":     Filtered,
				"plain":     "ok",
			},
		},
		{
			Description: "Non-string values are replaced at matching keys",
			Input: map[string]interface{}{
				"secret": map[string]interface{}{"inner": 1},
			},
			Expected: map[string]interface{}{
				"secret": Filtered,
			},
		},
		{
			Description: "Nested maps are scrubbed recursively",
			Input: map[string]interface{}{
				"outer": map[string]interface{}{
					"password": "x",
					"keep":     "y",
				},
			},
			Expected: map[string]interface{}{
				"outer": map[string]interface{}{
					"password": Filtered,
					"keep":     "y",
				},
			},
		},
		{
			Description: "Empty key list matches nothing",
			Config:      Config{DisableDefaultKeys: true},
			Input: map[string]interface{}{
				"password": "still here",
			},
			Expected: map[string]interface{}{
				"password": "still here",
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			s := New(tc.Config)
			assert.Equal(tc.Expected, s.Sanitize(tc.Input))
		})
	}
}

func TestStringTruncation(t *testing.T) {
	assert := assert.New(t)
	s := New(Config{MaxStringLength: 50})

	long := strings.Repeat("a", 51)
	out, ok := s.Sanitize(long).(string)
	require.True(t, ok)
	assert.Len(out, 50)
	assert.True(strings.HasSuffix(out, truncationMarker))

	exact := strings.Repeat("b", 50)
	assert.Equal(exact, s.Sanitize(exact))

	short := "short"
	assert.Equal(short, s.Sanitize(short))
}

func TestStringTruncationKeepsValidUTF8(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	s := New(Config{MaxStringLength: 50})

	// The byte cap lands mid-rune; the cut must back off to the rune
	// boundary instead of emitting a split UTF-8 sequence.
	long := strings.Repeat("a", 20) + strings.Repeat("é", 30)
	out, ok := s.Sanitize(long).(string)
	require.True(ok)
	assert.True(utf8.ValidString(out))
	assert.LessOrEqual(len(out), 50)
	assert.True(strings.HasSuffix(out, truncationMarker))

	allMultiByte := strings.Repeat("界", 40)
	out, ok = s.Sanitize(allMultiByte).(string)
	require.True(ok)
	assert.True(utf8.ValidString(out))
	assert.LessOrEqual(len(out), 50)
}

func TestIdempotence(t *testing.T) {
	assert := assert.New(t)
	s := New(Config{MaxStringLength: 50})

	input := map[string]interface{}{
		"password": "x",
		"note":     strings.Repeat("c", 200),
		"nested":   map[string]interface{}{"token": 1, "n": 2},
	}
	once := s.Sanitize(input)
	twice := s.Sanitize(once)
	assert.Equal(once, twice)

	// A value that happens to be the filtered marker is left alone.
	assert.Equal(Filtered, s.Sanitize(Filtered))
}

func TestDepthBound(t *testing.T) {
	assert := assert.New(t)
	s := New(Config{MaxDepth: 3})

	deep := map[string]interface{}{
		"l1": map[string]interface{}{
			"l2": map[string]interface{}{
				"l3": map[string]interface{}{
					"l4": "unreachable",
				},
			},
		},
	}
	out := s.Sanitize(deep).(map[string]interface{})
	l1 := out["l1"].(map[string]interface{})
	l2 := l1["l2"].(map[string]interface{})
	assert.Equal(Filtered, l2["l3"])
}

func TestBinaryValues(t *testing.T) {
	assert := assert.New(t)
	s := New(Config{})

	out := s.Sanitize(map[string]interface{}{
		"blob": []byte{0x01, 0x02, 0x03},
	})
	assert.Equal(map[string]interface{}{"blob": binaryPlaceholder}, out)
}

func TestSequencesSkipKeyFiltering(t *testing.T) {
	assert := assert.New(t)
	s := New(Config{})

	// Element values that look like filter keys are not scrubbed; filtering
	// applies to mapping keys only.
	out := s.Sanitize([]interface{}{"password", "token", 3})
	assert.Equal([]interface{}{"password", "token", 3}, out)
}

func TestStructsLoweredToMaps(t *testing.T) {
	assert := assert.New(t)
	s := New(Config{})

	type login struct {
		Username string
		Password string
		attempts int
	}
	out := s.Sanitize(login{Username: "ada", Password: "x", attempts: 3})
	assert.Equal(map[string]interface{}{
		"Username": "ada",
		"Password": Filtered,
	}, out)
}

func TestInputNotMutated(t *testing.T) {
	assert := assert.New(t)
	s := New(Config{})

	input := map[string]interface{}{
		"password": "x",
		"inner":    map[string]interface{}{"token": "y"},
	}
	s.Sanitize(input)
	assert.Equal("x", input["password"])
	assert.Equal("y", input["inner"].(map[string]interface{})["token"])
}

func TestDeterminism(t *testing.T) {
	assert := assert.New(t)
	s := New(Config{})

	input := map[string]interface{}{
		"a": []interface{}{1, "two", map[string]interface{}{"secret": true}},
		"b": map[interface{}]interface{}{1: "one"},
	}
	assert.Equal(s.Sanitize(input), s.Sanitize(input))
}

func TestSanitizeMap(t *testing.T) {
	assert := assert.New(t)
	s := New(Config{})

	assert.Nil(s.SanitizeMap(nil))
	assert.Equal(map[string]interface{}{"cvv": Filtered},
		s.SanitizeMap(map[string]interface{}{"cvv": "123"}))
}
