package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

type thrown struct {
	jobKey int64
	code   string
	vars   map[string]interface{}
}

type fakeSettler struct {
	calls []thrown
	err   error
}

func (f *fakeSettler) ThrowError(ctx context.Context, jobKey int64, code, message string, vars map[string]interface{}) error {
	f.calls = append(f.calls, thrown{jobKey: jobKey, code: code, vars: vars})
	return f.err
}

type recordingLogger struct {
	entries []map[string]interface{}
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, fields)
}

// ==========================
// StandardError Tests
// ==========================

func TestStandardError(t *testing.T) {
	cause := stderrors.New("dial tcp: i/o timeout")
	err := NewMailSendFailedError("smtp", cause)

	assert.Equal(t, ErrCodeMailSendFailed, err.Code)
	assert.True(t, err.Retryable)
	assert.Contains(t, err.Error(), "StandardError[MAIL_SEND_FAILED]")
	assert.Contains(t, err.Error(), "provider: smtp")
	assert.True(t, stderrors.Is(err, cause))

	wrapped := fmt.Errorf("dispatch: %w", err)
	assert.Equal(t, "MAIL_SEND_FAILED", CodeOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "UNKNOWN_ERROR", CodeOf(nil))
	assert.Equal(t, "UNKNOWN_ERROR", CodeOf(stderrors.New("boom")))
	assert.Equal(t, "INVALID_RECIPIENT", CodeOf(NewInvalidRecipientError("", nil)))
}

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	std := NewUnknownCollectionError("shops")
	assert.Same(t, std, Normalize(std))

	n := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, n.Code)
	assert.Equal(t, "boom", n.Details)
	assert.False(t, n.Retryable)
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeMailSendFailed, "MAIL"},
		{ErrCodeInvalidRecipient, "MAIL"},
		{ErrCodeEventSchemaInvalid, "EVENT"},
		{ErrCodeUnknownCollection, "EVENT"},
		{ErrCodeSourceUnavailable, "CHANGEFEED"},
		{ErrCodeInternal, "OTHER"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCategory(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewEventDecodeFailedError("zeebe", stderrors.New("unexpected EOF")))
	assert.Equal(t, "EVENT_DECODE_FAILED", bpmn.Code)
	assert.False(t, bpmn.Retryable)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "EVENT_DECODE_FAILED", vars["errorCode"])
	assert.Equal(t, "EVENT_DECODE_FAILED", vars["originalErrorCode"])
	assert.Contains(t, vars, "timestamp")
	assert.Equal(t, false, vars["retryable"])
}

// ==========================
// ErrorHandler Tests
// ==========================

func TestErrorHandler_HandleJobError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "schema error",
			err:      NewEventSchemaInvalidError("shopId is required"),
			wantCode: "EVENT_SCHEMA_INVALID",
		},
		{
			name:     "decode error",
			err:      NewEventDecodeFailedError("zeebe", stderrors.New("unexpected EOF")),
			wantCode: "EVENT_DECODE_FAILED",
		},
		{
			name:     "foreign error throws as internal",
			err:      stderrors.New("boom"),
			wantCode: "INTERNAL_ERROR",
		},
		{
			name:     "retryable error is thrown too",
			err:      NewSourceUnavailableError("zeebe", stderrors.New("unavailable")),
			wantCode: "SOURCE_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settler := &fakeSettler{}
			log := &recordingLogger{}
			h := NewErrorHandler(log)

			err := h.HandleJobError(context.Background(), settler, JobInfo{Key: 42, Type: "shop-approval-notify"}, tt.err)
			require.NoError(t, err)

			require.Len(t, settler.calls, 1)
			call := settler.calls[0]
			assert.Equal(t, int64(42), call.jobKey)
			assert.Equal(t, tt.wantCode, call.code)
			assert.Equal(t, tt.wantCode, call.vars["originalErrorCode"])

			require.Len(t, log.entries, 1)
			assert.Equal(t, int64(42), log.entries[0]["jobKey"])
		})
	}
}

func TestErrorHandler_ReturnsEngineRejection(t *testing.T) {
	settler := &fakeSettler{err: stderrors.New("NOT_FOUND: job 42 already completed")}
	h := NewErrorHandler(nil)

	err := h.HandleJobError(context.Background(), settler, JobInfo{Key: 42}, NewEventSchemaInvalidError("bad"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already completed")
}
