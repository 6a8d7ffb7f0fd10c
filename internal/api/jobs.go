package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/relprobe/relprobe/internal/prompt"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one background mining request.
type Job struct {
	ID         string         `json:"id"`
	Status     JobStatus      `json:"status"`
	CreatedAt  int64          `json:"created_at"`
	FinishedAt *int64         `json:"finished_at,omitempty"`
	Error      string         `json:"error,omitempty"`
	Result     *prompt.Result `json:"result,omitempty"`
}

// JobStore is the in-memory job registry. Jobs live for the process
// lifetime; there is no eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

func (s *JobStore) Create(now time.Time) Job {
	job := &Job{
		ID:        "job_" + uuid.NewString(),
		Status:    JobQueued,
		CreatedAt: now.Unix(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return *job
}

// Get returns a copy, so callers never race the background writer.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (s *JobStore) start(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = JobRunning
	}
}

func (s *JobStore) finish(id string, res *prompt.Result, err error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	done := now.Unix()
	job.FinishedAt = &done
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
		return
	}
	job.Status = JobCompleted
	job.Result = res
}

// mineRequest mirrors the mining knobs under their historical names.
// Pointer fields distinguish omitted from zero.
type mineRequest struct {
	Pairs            []prompt.Pair `json:"pairs"`
	SeedType         *string       `json:"seed_type"`
	Blanks           *int          `json:"n_blank"`
	PrefixBlanks     *int          `json:"n_blank_prefix"`
	SuffixBlanks     *int          `json:"n_blank_suffix"`
	BatchSize        *int          `json:"batch_size"`
	TopK             *int          `json:"topk"`
	TopKPerPosition  *int          `json:"topk_per_position"`
	Revisions        *int          `json:"n_revision"`
	PerplexityFilter *bool         `json:"perplexity_filter"`
}

func (r mineRequest) options() (prompt.Options, error) {
	opts := prompt.Options{
		Blanks:           r.Blanks,
		PrefixBlanks:     r.PrefixBlanks,
		SuffixBlanks:     r.SuffixBlanks,
		BatchSize:        r.BatchSize,
		TopK:             r.TopK,
		TopKPerPosition:  r.TopKPerPosition,
		Revisions:        r.Revisions,
		PerplexityFilter: r.PerplexityFilter,
	}
	if r.SeedType != nil {
		kind, err := prompt.ParseSeedKind(*r.SeedType)
		if err != nil {
			return opts, err
		}
		opts.Kind = &kind
	}
	return opts, nil
}

func (s *Server) handleMine(c *echo.Context) error {
	if s.prompter == nil {
		return writeServerError(c, "no prompter bound")
	}
	req, err := decodeJSON[mineRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Pairs) == 0 {
		return writeBadRequest(c, "pairs required")
	}
	for _, p := range req.Pairs {
		if p.Head == "" || p.Tail == "" {
			return writeBadRequest(c, "every pair requires a head and a tail")
		}
	}
	opts, err := req.options()
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	job := s.jobs.Create(s.clock())
	go s.runMine(job.ID, req.Pairs, opts)
	return c.JSON(http.StatusAccepted, job)
}

// runMine executes a mining job detached from the request context; the
// caller polls /v1/jobs/:id for the outcome.
func (s *Server) runMine(id string, pairs []prompt.Pair, opts prompt.Options) {
	s.jobs.start(id)
	res, err := s.prompter.Mine(context.Background(), pairs, opts)
	s.jobs.finish(id, res, err, s.clock())
}

func (s *Server) handleGetJob(c *echo.Context) error {
	job, ok := s.jobs.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "job "+c.Param("id")+" not found")
	}
	return c.JSON(http.StatusOK, job)
}
