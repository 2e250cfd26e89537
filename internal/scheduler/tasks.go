package scheduler

import (
	"oxicrm_backend/internal/jobs"

	"github.com/hibiken/asynq"
)

// NewJobTask maps a job onto an asynq task: the job name is the task type and
// the job payload is carried as is.
func NewJobTask(job jobs.Job) *asynq.Task {
	payload := job.Payload
	if payload == "" {
		payload = "{}"
	}
	return asynq.NewTask(job.Name, []byte(payload))
}

// JobFromTask is the inverse of NewJobTask.
func JobFromTask(task *asynq.Task) jobs.Job {
	return jobs.Job{Name: task.Type(), Payload: string(task.Payload())}
}
