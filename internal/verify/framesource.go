package verify

import (
	"context"
	"errors"
	"sync"
)

// ErrSourceClosed is returned by NextFrame after the source has been released.
var ErrSourceClosed = errors.New("frame source closed")

// FrameSource delivers encoded camera frames to a verification session.
// Close releases the underlying stream and must be safe to call more than
// once; NextFrame returns ErrSourceClosed after release.
type FrameSource interface {
	NextFrame(ctx context.Context) ([]byte, error)
	Close() error
}

// PushSource is a FrameSource fed by an external producer, typically the
// kiosk client posting frames over HTTP. Frames pushed while the consumer
// is busy are dropped rather than queued, so the session always works on
// recent frames.
type PushSource struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewPushSource creates a push-fed frame source with the given buffer size.
func NewPushSource(buffer int) *PushSource {
	if buffer < 1 {
		buffer = 1
	}
	return &PushSource{
		frames: make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// Push hands a frame to the source. Frames are dropped silently when the
// buffer is full. Returns ErrSourceClosed after Close.
func (p *PushSource) Push(frame []byte) error {
	select {
	case <-p.done:
		return ErrSourceClosed
	default:
	}

	select {
	case p.frames <- frame:
	default:
		// Consumer is behind, drop the frame.
	}
	return nil
}

// NextFrame blocks until a frame is available, the source is closed, or the
// context is cancelled.
func (p *PushSource) NextFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return nil, ErrSourceClosed
	default:
	}

	select {
	case frame := <-p.frames:
		return frame, nil
	case <-p.done:
		return nil, ErrSourceClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the source. Safe to call multiple times.
func (p *PushSource) Close() error {
	p.once.Do(func() {
		close(p.done)
	})
	return nil
}
