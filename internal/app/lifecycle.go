package app

import (
	"context"
	"fmt"
	"sync"
)

// State is a lifecycle phase of the server.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateReady
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Lifecycle is the stopped -> starting -> ready -> draining -> stopped state
// machine. It doubles as the tool-call gate: calls are admitted only while
// ready, and Drain waits for the admitted ones.
type Lifecycle struct {
	mu       sync.Mutex
	state    State
	inflight sync.WaitGroup
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) transition(from []State, to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range from {
		if l.state == f {
			l.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid lifecycle transition %s -> %s", l.state, to)
}

func (l *Lifecycle) start() error { return l.transition([]State{StateStopped}, StateStarting) }

func (l *Lifecycle) ready() error { return l.transition([]State{StateStarting}, StateReady) }

func (l *Lifecycle) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateStopped
}

// Enter admits a tool call. Every successful Enter must be paired with Exit.
func (l *Lifecycle) Enter() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateReady {
		return false
	}
	l.inflight.Add(1)
	return true
}

func (l *Lifecycle) Exit() { l.inflight.Done() }

// Drain stops admitting calls and waits for in-flight ones until ctx is done.
func (l *Lifecycle) Drain(ctx context.Context) error {
	if err := l.transition([]State{StateReady, StateStarting}, StateDraining); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
