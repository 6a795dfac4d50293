package worker

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Job is one unit of repair work.
type Job interface {
	Execute() error
	ID() string
}

// Result pairs a job with its outcome.
type Result struct {
	JobID string
	Err   error
}

// Pool runs batches of jobs with bounded concurrency. Unlike a
// long-lived dispatcher there is no queue to drain on shutdown: RunAll
// blocks until every submitted job has finished, which is what the
// synchronous repair report needs.
type Pool struct {
	Workers int
	Logger  *logrus.Logger
}

// NewPool returns a pool running at most workers jobs at once.
func NewPool(workers int, logger *logrus.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{Workers: workers, Logger: logger}
}

// RunAll executes all jobs and returns one Result per job, in
// completion order.
func (p *Pool) RunAll(jobs []Job) []Result {
	jobCh := make(chan Job)
	resCh := make(chan Result, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobCh {
				err := job.Execute()
				if err != nil {
					p.Logger.WithFields(logrus.Fields{
						"worker": workerID,
						"job":    job.ID(),
					}).WithError(err).Warn("Job failed")
				} else {
					p.Logger.WithFields(logrus.Fields{
						"worker": workerID,
						"job":    job.ID(),
					}).Debug("Job finished")
				}
				resCh <- Result{JobID: job.ID(), Err: err}
			}
		}(i + 1)
	}

	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)
	wg.Wait()
	close(resCh)

	results := make([]Result, 0, len(jobs))
	for r := range resCh {
		results = append(results, r)
	}
	return results
}
