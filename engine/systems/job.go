package systems

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

type JobSystem struct {
	numWorkers int
	jobQueue   chan metadata.JobTask
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var ErrNoWorkers = errors.New("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan metadata.JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job metadata.JobTask) {
	// Call the completion callback whatever happens
	if job.OnCompletionCallback != nil {
		defer job.OnCompletionCallback()
	}

	result, err := job.OnStart(job.InputParams)
	if err != nil {
		core.LogError("job %s failed: %s", job.Name, err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete(result)
	}
}

/**
 * @brief Shuts the job system down. Queued jobs still run.
 */
func (js *JobSystem) Shutdown() error {
	js.closeOnce.Do(func() {
		close(js.jobQueue)
	})
	js.wg.Wait()
	return nil
}

func (js *JobSystem) Workers() int {
	return js.numWorkers
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt metadata.JobTask) {
	js.jobQueue <- jt
}

// RunBatch submits every task and blocks until all of them finished. The
// errors of failed tasks are combined into the returned error.
func (js *JobSystem) RunBatch(tasks []metadata.JobTask) error {
	var (
		mu   sync.Mutex
		errs error
		done sync.WaitGroup
	)
	done.Add(len(tasks))
	for _, task := range tasks {
		onFailure := task.OnFailure
		task.OnFailure = func(err error) {
			mu.Lock()
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "job %s", task.Name))
			mu.Unlock()
			if onFailure != nil {
				onFailure(err)
			}
		}
		callback := task.OnCompletionCallback
		task.OnCompletionCallback = func() {
			if callback != nil {
				callback()
			}
			done.Done()
		}
		js.Submit(task)
	}
	done.Wait()
	return errs
}
