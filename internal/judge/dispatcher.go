package judge

import (
	"context"
	"log"
	"sync"
)

// JudgeFunc judges one submission by ID.
type JudgeFunc func(ctx context.Context, submissionID string) error

// Dispatcher fans submission IDs out to a fixed pool of judging workers.
// Enqueue is fire-and-forget: the submitter never waits on the outcome, and
// a failed judgement is logged rather than retried. Duplicate deliveries are
// harmless because the engine's judged-flag check runs first.
type Dispatcher struct {
	judge JudgeFunc
	jobs  chan string
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewDispatcher(judge JudgeFunc, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &Dispatcher{
		judge: judge,
		jobs:  make(chan string, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Enqueue schedules a judging task for the submission. Best-effort: if the
// queue is saturated the task is dropped and logged; the submission then
// stays unjudged, which callers surface as a pending state.
func (d *Dispatcher) Enqueue(submissionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		log.Printf("judge: dispatcher closed, dropping submission %s", submissionID)
		return
	}
	select {
	case d.jobs <- submissionID:
	default:
		log.Printf("judge: queue full, dropping submission %s", submissionID)
	}
}

// Close stops accepting work and waits for in-flight judgements to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for submissionID := range d.jobs {
		d.judgeOne(submissionID)
	}
}

// judgeOne isolates each task so a panicking judgement takes down neither
// the worker nor the process.
func (d *Dispatcher) judgeOne(submissionID string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("judge: submission %s panicked: %v", submissionID, r)
		}
	}()
	if err := d.judge(context.Background(), submissionID); err != nil {
		log.Printf("judge: submission %s failed: %v", submissionID, err)
	}
}
