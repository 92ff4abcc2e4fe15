package llmutil

import (
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Type string `json:"type"`
	N    int    `json:"n"`
}

func TestParseJSONResponse(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"bare", `{"type":"click","n":2}`},
		{"padded", "\n  {\"type\":\"click\",\"n\":2}  \n"},
		{"fenced", "```json\n{\"type\":\"click\",\"n\":2}\n```"},
		{"fenced without tag", "```\n{\"type\":\"click\",\"n\":2}\n```"},
		{"prose", `Sure! Here is the action: {"type":"click","n":2} Let me know.`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseJSONResponse[sample](tc.input)
			require.NoError(t, err)
			assert.Equal(t, sample{Type: "click", N: 2}, *got)
		})
	}
}

func TestParseJSONResponse_Error(t *testing.T) {
	// The first balanced object wins even when it is not JSON.
	_, err := ParseJSONResponse[sample](`{x} is not it, this is: {"type":"click","n":2}`)
	assert.Error(t, err)

	_, err = ParseJSONResponse[sample]("no json here")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal LLM JSON response")

	_, err = ParseJSONResponse[sample](`{"type": ` + strings.Repeat("x", 1000))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "...", "long snippets are truncated")
}

func TestExtractJSONObject(t *testing.T) {
	testCases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{`text {"a":{"b":2}} more {"c":3}`, `{"a":{"b":2}}`, true},
		{`{"s":"a } inside"} tail`, `{"s":"a } inside"}`, true},
		{`{"s":"quote \" and { brace"}`, `{"s":"quote \" and { brace"}`, true},
		{`{"unterminated": 1`, "", false},
		{`no braces`, "", false},
		{``, "", false},
	}
	for _, tc := range testCases {
		got, ok := ExtractJSONObject(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "ab...", truncateString("abcdef", 2))
	assert.Equal(t, "", truncateString("abc", 0))
}

// FuzzExtractJSONObject checks that any extracted object is a balanced
// substring of the input that starts and ends with braces.
func FuzzExtractJSONObject(f *testing.F) {
	f.Add([]byte(`{"a":"}"}`))
	f.Add([]byte(`xx{{}}`))
	f.Fuzz(func(t *testing.T, data []byte) {
		var input struct{ Text string }
		consumer := fuzz.NewConsumer(data)
		if err := consumer.GenerateStruct(&input); err != nil {
			return
		}
		obj, ok := ExtractJSONObject(input.Text)
		if !ok {
			return
		}
		if !strings.Contains(input.Text, obj) || obj[0] != '{' || obj[len(obj)-1] != '}' {
			t.Fatalf("bad extraction %q from %q", obj, input.Text)
		}
	})
}
