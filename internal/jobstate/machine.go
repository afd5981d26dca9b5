// Package jobstate holds the job lifecycle:
// pending -> processing -> completed | failed.
package jobstate

import (
	"fmt"

	"github.com/looplab/fsm"

	"aigc/internal/domain"
)

// Lifecycle events.
const (
	EventStart    = "start"
	EventComplete = "complete"
	EventFail     = "fail"
)

// Machine tracks one job's status. It is not safe for concurrent use; each
// processor run builds its own.
type Machine struct {
	fsm *fsm.FSM
}

// New returns a machine positioned at status.
func New(status domain.JobStatus) *Machine {
	pending := string(domain.JobStatusPending)
	processing := string(domain.JobStatusProcessing)
	return &Machine{
		fsm: fsm.NewFSM(
			string(status),
			fsm.Events{
				{Name: EventStart, Src: []string{pending}, Dst: processing},
				{Name: EventComplete, Src: []string{processing}, Dst: string(domain.JobStatusCompleted)},
				{Name: EventFail, Src: []string{processing}, Dst: string(domain.JobStatusFailed)},
			},
			fsm.Callbacks{},
		),
	}
}

// Current returns the machine's status.
func (m *Machine) Current() domain.JobStatus {
	return domain.JobStatus(m.fsm.Current())
}

func (m *Machine) Start() error    { return m.fire(EventStart) }
func (m *Machine) Complete() error { return m.fire(EventComplete) }
func (m *Machine) Fail() error     { return m.fire(EventFail) }

func (m *Machine) fire(event string) error {
	from := m.fsm.Current()
	if err := m.fsm.Event(event); err != nil {
		return fmt.Errorf("%w: %s from %s: %v", domain.ErrInvalidTransition, event, from, err)
	}
	return nil
}

// Allowed reports whether the lifecycle has an edge from -> to.
func Allowed(from, to domain.JobStatus) bool {
	m := New(from)
	for _, event := range []string{EventStart, EventComplete, EventFail} {
		if m.fsm.Can(event) && dst(event) == to {
			return true
		}
	}
	return false
}

func dst(event string) domain.JobStatus {
	switch event {
	case EventStart:
		return domain.JobStatusProcessing
	case EventComplete:
		return domain.JobStatusCompleted
	default:
		return domain.JobStatusFailed
	}
}
