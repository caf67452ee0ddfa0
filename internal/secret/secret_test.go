package secret

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_Redaction(t *testing.T) {
	v := Value("hunter2")

	t.Run("Stringer redacts", func(t *testing.T) {
		assert.Equal(t, Redacted, v.String())
		assert.Equal(t, Redacted, fmt.Sprintf("%v", v))
		assert.Equal(t, Redacted, fmt.Sprintf("%s", v))
	})

	t.Run("GoStringer redacts", func(t *testing.T) {
		assert.Equal(t, Redacted, fmt.Sprintf("%#v", v))
	})

	t.Run("JSON redacts", func(t *testing.T) {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, `"`+Redacted+`"`, string(data))
	})

	t.Run("plaintext is explicit", func(t *testing.T) {
		assert.Equal(t, "hunter2", v.Plaintext())
	})
}

func TestRecord_NeverLeaksValue(t *testing.T) {
	record := &Record{Name: "deploy-key", Value: Value("hunter2"), Version: 1}

	t.Run("formatted record", func(t *testing.T) {
		out := fmt.Sprintf("%+v", *record)
		assert.NotContains(t, out, "hunter2")
	})

	t.Run("marshaled record", func(t *testing.T) {
		data, err := json.Marshal(record)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "hunter2")
		assert.Contains(t, string(data), "deploy-key")
	})
}

func TestRecord_InScope(t *testing.T) {
	tests := []struct {
		name   string
		scopes []string
		target string
		want   bool
	}{
		{"empty scopes admit every target", nil, "prod-1", true},
		{"empty scopes admit empty target", nil, "", true},
		{"listed target", []string{"prod-1", "prod-2"}, "prod-2", true},
		{"unlisted target", []string{"prod-1"}, "staging", false},
		{"scoped secret rejects empty target", []string{"prod-1"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Record{Name: "s", Scopes: tt.scopes}
			assert.Equal(t, tt.want, r.InScope(tt.target))
		})
	}
}
