package status

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// ErrTransitionRejected is returned when an event is not valid from the
// current phase. The Status is left untouched.
var ErrTransitionRejected = errors.New("status transition rejected")

const (
	eventProgress      = "progress"
	eventAwaitArtifact = "await_artifact"
	eventArtifactReady = "artifact_ready"
	eventConnect       = "connect"
	eventFail          = "fail"
)

var openPhases = []string{
	string(PhaseStarting),
	string(PhaseAwaitingArtifact),
	string(PhaseArtifactReady),
}

// Store holds the single Status of the process. It has exactly one writer
// (the supervision goroutine) and any number of concurrent readers.
type Store struct {
	mu      sync.RWMutex
	current Status
	machine *fsm.FSM
	now     func() time.Time

	observers []func(Status)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the clock used for UpdatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a Store in PhaseStarting.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	s.machine = fsm.NewFSM(
		string(PhaseStarting),
		fsm.Events{
			{Name: eventProgress, Src: []string{string(PhaseStarting)}, Dst: string(PhaseStarting)},
			{Name: eventAwaitArtifact, Src: openPhases, Dst: string(PhaseAwaitingArtifact)},
			{Name: eventArtifactReady, Src: openPhases, Dst: string(PhaseArtifactReady)},
			{Name: eventConnect, Src: openPhases, Dst: string(PhaseConnected)},
			{Name: eventFail, Src: openPhases, Dst: string(PhaseFailed)},
		},
		fsm.Callbacks{},
	)

	s.current = Status{
		Phase:     PhaseStarting,
		Message:   MessageStarting,
		UpdatedAt: s.now(),
	}
	return s
}

// Snapshot returns a consistent copy of the current Status.
func (s *Store) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn to be called after every applied transition.
// Observers run on the writer goroutine, in transition order, outside the
// store lock; they must not block for long.
func (s *Store) Subscribe(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Progress updates the message while the client is still starting.
func (s *Store) Progress(message string) (Status, error) {
	return s.apply(eventProgress, func(st *Status) {
		st.Message = message
	})
}

// AwaitArtifact records that a new pairing code is being printed. Any
// previous artifact is withdrawn.
func (s *Store) AwaitArtifact() (Status, error) {
	return s.apply(eventAwaitArtifact, func(st *Status) {
		st.Artifact = ""
		st.ArtifactID = ""
		st.Message = MessageArtifactReceived
	})
}

// PublishArtifact makes artifact the current pairing code.
func (s *Store) PublishArtifact(artifact string) (Status, error) {
	if artifact == "" {
		return s.Snapshot(), fmt.Errorf("%w: empty artifact", ErrTransitionRejected)
	}
	return s.apply(eventArtifactReady, func(st *Status) {
		st.Artifact = artifact
		st.ArtifactID = uuid.New().String()
		st.Message = MessageArtifactReady
	})
}

// Connect marks the client as paired.
func (s *Store) Connect() (Status, error) {
	return s.apply(eventConnect, func(st *Status) {
		st.Artifact = ""
		st.ArtifactID = ""
		st.Message = MessageConnected
	})
}

// Fail marks the client as failed with a descriptive message.
func (s *Store) Fail(message string) (Status, error) {
	return s.apply(eventFail, func(st *Status) {
		st.Artifact = ""
		st.ArtifactID = ""
		st.Message = message
	})
}

func (s *Store) apply(event string, mutate func(*Status)) (Status, error) {
	s.mu.Lock()

	from := s.current.Phase
	if err := s.machine.Event(context.Background(), event); err != nil {
		var noop fsm.NoTransitionError
		if !errors.As(err, &noop) {
			snap := s.current
			s.mu.Unlock()
			return snap, fmt.Errorf("%w: %s from %s", ErrTransitionRejected, event, from)
		}
	}

	mutate(&s.current)
	s.current.Phase = Phase(s.machine.Current())
	s.current.UpdatedAt = s.now()

	snap := s.current
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return snap, nil
}
