package camunda

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		err  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"read: connection reset by peer", true},
		{"rpc error: code = PermissionDenied desc = unauthorized", false},
		{"rpc error: code = NotFound desc = job not found", false},
	}
	for _, tt := range tests {
		t.Run(tt.err, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(stderrors.New(tt.err)))
		})
	}
}

func TestEncodeVariables(t *testing.T) {
	_, ok := encodeVariables(nil)
	assert.False(t, ok)

	raw, ok := encodeVariables(map[string]interface{}{"errorCode": "EVENT_DECODE_FAILED"})
	assert.True(t, ok)
	assert.JSONEq(t, `{"errorCode":"EVENT_DECODE_FAILED"}`, raw)
}
