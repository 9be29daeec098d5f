// workers.go contains task processing logic for the processor.
package processor

import (
	"context"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 100
)

// Task represents a unit of work, encapsulating the action to be performed.
type Task struct {
	Action Action
}

// startWorkerPool launches numWorkers goroutines consuming the task queue.
func (p *Processor) startWorkerPool(numWorkers int) {
	ctx, cancel := context.WithCancel(context.Background())
	p.workerCancel = cancel

	for i := 0; i < numWorkers; i++ {
		go p.actionWorker(ctx)
	}
}

// actionWorker executes queued actions until the pool is cancelled.
func (p *Processor) actionWorker(ctx context.Context) {
	for {
		select {
		case task := <-p.workerQueue:
			if task.Action == nil {
				continue
			}
			if err := task.Action.Execute(ctx); err != nil {
				p.Metrics.IncActionFailures()
				p.logger.Error("action failed",
					"action", task.Action.GetDescription(), "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// enqueueTask hands a task to the worker pool without blocking the frame
// loop. A full queue drops the task: side effects are fire-and-forget and
// must never stall detection.
func (p *Processor) enqueueTask(task Task) {
	select {
	case p.workerQueue <- task:
	default:
		p.Metrics.IncActionsDropped()
		desc := "nil action"
		if task.Action != nil {
			desc = task.Action.GetDescription()
		}
		p.logger.Warn("action queue full, dropping task", "action", desc)
	}
}
