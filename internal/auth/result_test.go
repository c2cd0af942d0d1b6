package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultEnvelope(t *testing.T) {
	tests := []struct {
		name string
		res  json.Marshaler
		want string
	}{
		{"ok with data", Ok("x"), `{"success":true,"data":"x"}`},
		{"ok without data", Done(), `{"success":true}`},
		{"failure", Fail[string](KindRejected, "Invalid login credentials"), `{"success":false,"error":"Invalid login credentials"}`},
		{"failure without message", Fail[string](KindFault, ""), `{"success":false,"error":"fault"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(tt.res)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(body))
		})
	}
}

func TestResultAccessors(t *testing.T) {
	ok := Ok(42)
	v, isOk := ok.Value()
	assert.True(t, isOk)
	assert.Equal(t, 42, v)
	_, failed := ok.Err()
	assert.False(t, failed)
	assert.Equal(t, KindNone, ok.Kind())

	bad := Fail[int](KindNone, "boom")
	_, isOk = bad.Value()
	assert.False(t, isOk)
	msg, failed := bad.Err()
	assert.True(t, failed)
	assert.Equal(t, "boom", msg)
	assert.Equal(t, KindFault, bad.Kind())
}
