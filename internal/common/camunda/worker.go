// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shop-notifier/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

type WorkerOptions struct {
	JobType       string
	Name          string
	MaxJobsActive int
	Timeout       time.Duration
}

// StartWorker opens a job worker for opts.JobType. Close the returned worker
// to stop activating jobs.
func StartWorker(client zbc.Client, opts WorkerOptions, handler worker.JobHandler, log logger.Logger) worker.JobWorker {
	step := client.NewJobWorker().
		JobType(opts.JobType).
		Handler(handler).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout)
	if opts.Name != "" {
		step = step.Name(opts.Name)
	}
	jw := step.Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      opts.JobType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout_ms":    opts.Timeout.Milliseconds(),
	})
	return jw
}

// JobResponder settles activated jobs through a worker.JobClient.
type JobResponder struct {
	client worker.JobClient
}

func NewJobResponder(client worker.JobClient) *JobResponder {
	return &JobResponder{client: client}
}

func (r *JobResponder) Complete(ctx context.Context, jobKey int64, vars map[string]interface{}) error {
	cmd, err := r.client.NewCompleteJobCommand().
		JobKey(jobKey).
		VariablesFromMap(vars)
	if err != nil {
		return fmt.Errorf("build complete command: %w", err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		return fmt.Errorf("complete job %d: %w", jobKey, err)
	}
	return nil
}

func (r *JobResponder) ThrowError(ctx context.Context, jobKey int64, code, message string, vars map[string]interface{}) error {
	cmd := r.client.NewThrowErrorCommand().
		JobKey(jobKey).
		ErrorCode(code).
		ErrorMessage(message)

	if raw, ok := encodeVariables(vars); ok {
		if withVars, err := cmd.VariablesFromString(raw); err == nil {
			_, err = withVars.Send(ctx)
			return err
		}
	}
	_, err := cmd.Send(ctx)
	return err
}

func encodeVariables(vars map[string]interface{}) (string, bool) {
	if len(vars) == 0 {
		return "", false
	}
	raw, err := json.Marshal(vars)
	if err != nil {
		return "", false
	}
	return string(raw), true
}
