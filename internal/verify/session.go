package verify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/codewithmutahir/timeclock/internal/config"
	"github.com/codewithmutahir/timeclock/internal/detector"
	"github.com/codewithmutahir/timeclock/internal/facematch"
)

// State is the lifecycle phase of a verification session.
type State string

// Session states. Loading and Camera are transitional; Success and Error
// are terminal until Retry or Close.
const (
	StateLoading   State = "loading"
	StateCamera    State = "camera"
	StateDetecting State = "detecting"
	StateVerifying State = "verifying"
	StateSuccess   State = "success"
	StateError     State = "error"
)

var (
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrNotRetryable is returned by Retry outside the error state.
	ErrNotRetryable = errors.New("session is not in an error state")
)

// Snapshot is a point-in-time view of a session for status responses.
type Snapshot struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	State      State   `json:"state"`
	Progress   float64 `json:"progress"`
	Guidance   string  `json:"guidance,omitempty"`
	Error      string  `json:"error,omitempty"`
	Token      string  `json:"token,omitempty"`
}

// Session drives hold-to-verify face verification for one employee. Frames
// arrive through a FrameSource; the loop runs detection on every Nth frame
// and requires a face to be continuously present for the configured hold
// duration before matching against the enrolled descriptor.
//
// Detection runs inline on the loop goroutine, so at most one detection is
// ever in flight; frames arriving during a detection are dropped by the
// source. A single missed detection resets the hold from zero.
type Session struct {
	eventBroadcaster

	ID         string
	EmployeeID string
	CreatedAt  time.Time

	cfg       *config.VerifyConfig
	guidance  *config.GuidanceConfig
	detector  detector.FaceDetector
	source    FrameSource
	reference []float32

	// onVerified mints a one-time clock token; called at most once.
	onVerified func(employeeID string) string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce   sync.Once
	releaseOnce sync.Once

	mu             sync.Mutex
	state          State
	closed         bool
	verified       bool
	frameCount     int
	detectingSince time.Time
	holdStart      time.Time
	errMsg         string
	token          string

	now func() time.Time
}

// NewSession builds a session. Call Start to launch the processing loop.
func NewSession(id, employeeID string, reference []float32, source FrameSource,
	det detector.FaceDetector, cfg *config.VerifyConfig, guidance *config.GuidanceConfig,
	onVerified func(employeeID string) string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:         id,
		EmployeeID: employeeID,
		CreatedAt:  time.Now(),
		cfg:        cfg,
		guidance:   guidance,
		detector:   det,
		source:     source,
		reference:  reference,
		onVerified: onVerified,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		state:      StateLoading,
		now:        time.Now,
	}
}

// Start launches the frame processing loop.
func (s *Session) Start() {
	go s.run()
}

func (s *Session) run() {
	acquireCtx, cancel := context.WithTimeout(s.ctx, s.cfg.AcquireTimeout)
	frame, err := s.source.NextFrame(acquireCtx)
	cancel()
	if err != nil {
		s.fail("Camera unavailable. Check camera permissions and try again.")
		s.releaseOnce.Do(func() {
			_ = s.source.Close()
		})
		return
	}

	s.mu.Lock()
	if s.state == StateLoading {
		s.state = StateCamera
	}
	s.mu.Unlock()
	s.sendEvent(Event{Type: "state", Data: StateCamera})
	s.handleFrame(frame)

	// Keep draining even after a mismatch so Retry can pick the stream back
	// up without re-acquiring the source.
	for {
		frame, err := s.source.NextFrame(s.ctx)
		if err != nil {
			return
		}
		s.handleFrame(frame)
	}
}

// handleFrame advances the state machine for one frame.
func (s *Session) handleFrame(frame []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.state == StateCamera {
		s.state = StateDetecting
		s.detectingSince = s.now()
		s.frameCount = 0
	}
	if s.state != StateDetecting {
		s.mu.Unlock()
		return
	}
	s.frameCount++
	if s.frameCount%s.cfg.DetectEvery != 0 {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	det, err := s.detector.Detect(s.ctx, frame)
	s.applyDetection(det, err)
}

// applyDetection folds one detection result into the hold timer, moving to
// verification once the hold duration has been continuously satisfied.
func (s *Session) applyDetection(det *detector.Detection, err error) {
	s.mu.Lock()
	if s.closed || s.state != StateDetecting {
		s.mu.Unlock()
		return
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.mu.Unlock()
			return
		}
		const msg = "Face detection failed. Please try again."
		s.state = StateError
		s.errMsg = msg
		s.mu.Unlock()
		s.sendEvent(Event{Type: "error", Data: msg})
		return
	}

	now := s.now()
	if det == nil {
		// One missed detection resets the hold from zero.
		s.holdStart = time.Time{}
		s.mu.Unlock()
		return
	}

	if s.holdStart.IsZero() {
		s.holdStart = now
	}
	if now.Sub(s.holdStart) < s.cfg.HoldDuration {
		s.mu.Unlock()
		return
	}

	// Hold satisfied; this is the only path out of Detecting, so the
	// session verifies at most once per attempt.
	s.state = StateVerifying
	s.mu.Unlock()
	s.sendEvent(Event{Type: "state", Data: StateVerifying})

	grade := facematch.GradeDistance(facematch.Distance(det.Descriptor, s.reference))

	var notify func(string) string
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if grade == facematch.GradeMatch {
		s.state = StateSuccess
		if !s.verified {
			s.verified = true
			notify = s.onVerified
		}
	} else {
		s.state = StateError
		s.errMsg = grade.Message()
	}
	errMsg := s.errMsg
	matched := s.state == StateSuccess
	s.mu.Unlock()

	if !matched {
		s.sendEvent(Event{Type: "error", Data: errMsg})
		return
	}

	if notify != nil {
		token := notify(s.EmployeeID)
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
	}
	s.sendEvent(Event{Type: "success", Data: s.Snapshot()})
	if s.cfg.CloseDelay > 0 {
		time.AfterFunc(s.cfg.CloseDelay, s.Close)
	}
}

// fail moves the session to the error state unless it already succeeded.
func (s *Session) fail(msg string) {
	s.mu.Lock()
	if s.closed || s.state == StateSuccess {
		s.mu.Unlock()
		return
	}
	s.state = StateError
	s.errMsg = msg
	s.mu.Unlock()
	s.sendEvent(Event{Type: "error", Data: msg})
}

// Retry returns an errored session to detecting, reusing the open frame
// source without re-acquisition.
func (s *Session) Retry() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateError {
		s.mu.Unlock()
		return ErrNotRetryable
	}
	s.state = StateDetecting
	s.detectingSince = s.now()
	s.holdStart = time.Time{}
	s.frameCount = 0
	s.errMsg = ""
	s.mu.Unlock()

	s.sendEvent(Event{Type: "state", Data: StateDetecting})
	return nil
}

// PushFrame feeds a frame into the session's source. Only sessions backed
// by a push source accept frames.
func (s *Session) PushFrame(frame []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if p, ok := s.source.(*PushSource); ok {
		return p.Push(frame)
	}
	return errors.New("session source does not accept pushed frames")
}

// Snapshot returns the current session status.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.ID,
		EmployeeID: s.EmployeeID,
		State:      s.state,
		Error:      s.errMsg,
		Token:      s.token,
	}
	switch s.state {
	case StateDetecting:
		if s.holdStart.IsZero() {
			snap.Guidance = s.guidance.MessageFor(s.now().Sub(s.detectingSince))
		} else {
			p := float64(s.now().Sub(s.holdStart)) / float64(s.cfg.HoldDuration)
			if p > 1 {
				p = 1
			}
			snap.Progress = p
		}
	case StateVerifying, StateSuccess:
		snap.Progress = 1
	}
	return snap
}

// Done is closed when the session has been shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close shuts the session down and releases the frame source. Safe to call
// multiple times; the source is released exactly once. No frame is
// processed after Close returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.cancel()
		s.releaseOnce.Do(func() {
			_ = s.source.Close()
		})
		close(s.done)
		s.sendEvent(Event{Type: "closed"})
	})
}
