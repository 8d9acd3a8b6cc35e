// internal/common/errors/handler.go
package errors

import (
	"context"
)

// JobSettler is the part of the workflow engine client needed to close out
// a job whose input cannot be handled.
type JobSettler interface {
	ThrowError(ctx context.Context, jobKey int64, code, message string, vars map[string]interface{}) error
}

// JobInfo identifies the job being settled.
type JobInfo struct {
	Key                int64
	Type               string
	ProcessInstanceKey int64
}

// ErrorHandler turns a job error into a BPMN error the process can catch.
// Job errors here come from the job's own variables, so an engine retry would
// fail the same way.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError throws err on job and returns the error the engine rejected
// the command with, if any.
func (h *ErrorHandler) HandleJobError(ctx context.Context, settler JobSettler, job JobInfo, err error) error {
	stdErr := Normalize(err)
	bpmnErr := ConvertToBPMNError(stdErr)

	h.logError(job, stdErr, bpmnErr)

	return settler.ThrowError(ctx, job.Key, bpmnErr.Code, bpmnErr.Message, bpmnErr.ToErrorVariables())
}

func (h *ErrorHandler) logError(job JobInfo, stdErr *StandardError, bpmnErr *BPMNError) {
	if h.logger == nil {
		return
	}
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}
