package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"soulchat-backend/internal/logger"
)

// State is a job's lifecycle phase. Transitions are monotonic: once a job
// reaches success or failure it never changes again.
type State string

const (
	StatePending  State = "pending"
	StateProgress State = "progress"
	StateSuccess  State = "success"
	StateFailure  State = "failure"
)

// Status is the poll view of a job.
type Status struct {
	ID      string `json:"id"`
	State   State  `json:"state"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Task is one unit of asynchronous work. Tasks sharing a non-empty
// SessionKey never run concurrently: the per-session read-modify-write of
// state and history is not atomic, so the key is serialized here.
// The progress callback publishes interim status; no current task uses it.
type Task struct {
	SessionKey string
	Run        func(ctx context.Context, progress func(payload any)) (any, error)
}

type job struct {
	id     string
	task   Task
	state  State
	result any
	errMsg string
	doneAt time.Time
}

// Queue runs submitted tasks on a fixed worker pool and retains finished
// results until the retention window expires. There is no cancellation:
// once submitted, a job runs to completion or failure.
type Queue struct {
	mu        sync.Mutex
	jobs      map[string]*job
	sessionMu map[string]*sync.Mutex
	tasks     chan *job
	retention time.Duration
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	log       *logger.Logger
}

func NewQueue(workers int, retention time.Duration, log *logger.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:      make(map[string]*job),
		sessionMu: make(map[string]*sync.Mutex),
		tasks:     make(chan *job, 256),
		retention: retention,
		ctx:       ctx,
		cancel:    cancel,
		log:       log,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	if retention > 0 {
		q.wg.Add(1)
		go q.janitor()
	}
	return q
}

// Submit enqueues the task and returns its generated identifier immediately.
func (q *Queue) Submit(task Task) string {
	j := &job{id: uuid.NewString(), task: task, state: StatePending}
	q.mu.Lock()
	q.jobs[j.id] = j
	q.mu.Unlock()
	q.tasks <- j
	return j.id
}

// Status is a pure read and safe to call repeatedly. An unrecognized id
// reports pending: the job may simply not have been observed yet.
func (q *Queue) Status(id string) Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return Status{ID: id, State: StatePending}
	}
	return Status{ID: j.id, State: j.state, Payload: j.result, Error: j.errMsg}
}

// Close stops accepting progress and waits for in-flight jobs to finish.
func (q *Queue) Close() {
	q.cancel()
	close(q.tasks)
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.tasks {
		q.run(j)
	}
}

func (q *Queue) run(j *job) {
	if key := j.task.SessionKey; key != "" {
		mu := q.sessionLock(key)
		mu.Lock()
		defer mu.Unlock()
	}

	defer func() {
		if r := recover(); r != nil {
			q.log.Error("job panicked", "job_id", j.id, "panic", r)
			q.finish(j, nil, fmt.Errorf("internal error: %v", r))
		}
	}()

	progress := func(payload any) {
		q.mu.Lock()
		if j.state == StatePending || j.state == StateProgress {
			j.state = StateProgress
			j.result = payload
		}
		q.mu.Unlock()
	}

	result, err := j.task.Run(q.ctx, progress)
	q.finish(j, result, err)
}

func (q *Queue) finish(j *job, result any, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j.state == StateSuccess || j.state == StateFailure {
		return
	}
	j.doneAt = time.Now()
	if err != nil {
		j.state = StateFailure
		j.result = nil
		j.errMsg = err.Error()
		return
	}
	j.state = StateSuccess
	j.result = result
}

func (q *Queue) sessionLock(key string) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()
	mu, ok := q.sessionMu[key]
	if !ok {
		mu = &sync.Mutex{}
		q.sessionMu[key] = mu
	}
	return mu
}

func (q *Queue) janitor() {
	defer q.wg.Done()
	ticker := time.NewTicker(q.retention / 2)
	defer ticker.Stop()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.sweep()
		}
	}
}

func (q *Queue) sweep() {
	cutoff := time.Now().Add(-q.retention)
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, j := range q.jobs {
		if (j.state == StateSuccess || j.state == StateFailure) && j.doneAt.Before(cutoff) {
			delete(q.jobs, id)
		}
	}
}
