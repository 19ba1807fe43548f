package batch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/BaSui01/batchgate/types"
)

// TaskState is the lifecycle state of a Task.
type TaskState int32

const (
	TaskCreated TaskState = iota
	TaskSuspended
	TaskTerminated
)

func (s TaskState) String() string {
	switch s {
	case TaskCreated:
		return "created"
	case TaskSuspended:
		return "suspended"
	case TaskTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("TaskState(%d)", int32(s))
	}
}

// ErrInvalidTaskState reports a task driven out of order.
var ErrInvalidTaskState = types.NewError(types.ErrInvalidTaskState, "task is in an invalid state")

// Task is an independently schedulable unit of work producing one Response.
// It runs on its own goroutine once started and is suspended until the work
// completes.
type Task struct {
	fn    func(context.Context) *Response
	state atomic.Int32
	done  chan struct{}
	resp  *Response
}

// NewTask creates a task in the created state.
func NewTask(fn func(context.Context) *Response) *Task {
	return &Task{fn: fn, done: make(chan struct{})}
}

// State returns the current state.
func (t *Task) State() TaskState { return TaskState(t.state.Load()) }

// Suspended reports whether the task is started but not finished.
func (t *Task) Suspended() bool { return t.State() == TaskSuspended }

// Terminated reports whether the task has finished.
func (t *Task) Terminated() bool { return t.State() == TaskTerminated }

// Start launches the work. Starting a task twice is a no-op.
func (t *Task) Start(ctx context.Context) {
	if !t.state.CompareAndSwap(int32(TaskCreated), int32(TaskSuspended)) {
		return
	}
	go func() {
		t.resp = t.fn(ctx)
		t.state.Store(int32(TaskTerminated))
		close(t.done)
	}()
}

// Resume waits for a started task to finish or for ctx to end.
func (t *Task) Resume(ctx context.Context) (*Response, error) {
	if t.State() == TaskCreated {
		return nil, ErrInvalidTaskState
	}
	select {
	case <-t.done:
		return t.resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the response of a terminated task.
func (t *Task) Result() (*Response, error) {
	if !t.Terminated() {
		return nil, ErrInvalidTaskState
	}
	return t.resp, nil
}
