// Package audio wraps a platform capture device in the small state machine
// the chat composer needs: idle → recording ⇄ paused → finalized, with the
// microphone treated as an exclusive resource that is released on every
// exit path.
package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State of the recording session. There is no terminal state: stop and
// cancel both return the recorder to StateIdle once the device is released.
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

var (
	// ErrPermissionDenied is reported synchronously by Start when the user
	// has not granted microphone access. The recorder stays idle; retrying
	// is the caller's decision.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrRecorderBusy is returned by Start while a session holds the device.
	ErrRecorderBusy = errors.New("a recording session is already active")

	// ErrRecordingTooShort is returned by StopAndFinalize for captures under
	// the minimum duration; the capture is discarded as if cancelled.
	ErrRecordingTooShort = errors.New("recording shorter than minimum duration")
)

// Device acquires the platform microphone. Acquire must return
// ErrPermissionDenied (possibly wrapped) when access is not granted.
type Device interface {
	Acquire(ctx context.Context) (Capture, error)
}

// Capture is one exclusive recording session on the device. Exactly one of
// Finalize or Discard is called, after which the capture is dead.
type Capture interface {
	Pause() error
	Resume() error
	// Finalize flushes the capture and returns the recorded file's path.
	Finalize() (string, error)
	// Discard drops the partial capture and releases the device.
	Discard()
}

// Result is handed to the send controller after a successful finalize.
type Result struct {
	Path     string
	Duration time.Duration
	MIME     string
}

const resultMIME = "audio/m4a"

// Recorder drives one capture session at a time. All transitions are
// serialized under mu; illegal pause/resume/stop calls are no-ops so UI
// button mashing can never corrupt the session.
type Recorder struct {
	dev Device
	log zerolog.Logger

	mu       sync.Mutex
	state    State
	capture  Capture
	elapsed  time.Duration
	tickStop chan struct{}

	// tick is the elapsed-time resolution. One second in production;
	// overridable so tests don't sleep.
	tick time.Duration
	// minDuration is the finalize guard threshold.
	minDuration time.Duration
}

func NewRecorder(dev Device, log zerolog.Logger) *Recorder {
	return &Recorder{
		dev:         dev,
		log:         log.With().Str("component", "recorder").Logger(),
		tick:        time.Second,
		minDuration: time.Second,
	}
}

// Start acquires the microphone and begins recording. Valid only from
// idle; a second Start while a session is live returns ErrRecorderBusy.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return ErrRecorderBusy
	}
	capture, err := r.dev.Acquire(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("Failed to acquire microphone")
		return err
	}
	r.capture = capture
	r.state = StateRecording
	r.elapsed = 0
	r.tickStop = make(chan struct{})
	go r.runTicker(r.tickStop)
	r.log.Debug().Msg("Recording started")
	return nil
}

// runTicker increments elapsed time while (and only while) recording.
// It is torn down on every terminal transition so no interval outlives
// the session.
func (r *Recorder) runTicker(stop chan struct{}) {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.state == StateRecording {
				r.elapsed += r.tick
			}
			r.mu.Unlock()
		}
	}
}

// Pause suspends the capture. No-op unless recording.
func (r *Recorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return
	}
	if err := r.capture.Pause(); err != nil {
		r.log.Warn().Err(err).Msg("Device pause failed")
		return
	}
	r.state = StatePaused
}

// Resume continues a paused capture. No-op unless paused.
func (r *Recorder) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePaused {
		return
	}
	if err := r.capture.Resume(); err != nil {
		r.log.Warn().Err(err).Msg("Device resume failed")
		return
	}
	r.state = StateRecording
}

// StopAndFinalize ends the session and hands back the recorded file.
// Valid from recording or paused; from idle it is a no-op returning
// (nil, nil). Captures under the minimum duration are discarded and
// reported as ErrRecordingTooShort — below the threshold, stop behaves
// as cancel and no send should be attempted.
func (r *Recorder) StopAndFinalize() (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording && r.state != StatePaused {
		return nil, nil
	}

	elapsed := r.elapsed
	if elapsed < r.minDuration {
		r.log.Debug().Dur("elapsed", elapsed).Msg("Recording below minimum duration, discarding")
		r.teardownLocked(true)
		return nil, ErrRecordingTooShort
	}

	path, err := r.capture.Finalize()
	if err != nil {
		// The device owns the partial file; treat a failed finalize like a
		// cancel so the microphone is still released.
		r.log.Warn().Err(err).Msg("Failed to finalize recording")
		r.teardownLocked(true)
		return nil, err
	}
	r.teardownLocked(false)
	r.log.Debug().Str("path", path).Dur("duration", elapsed).Msg("Recording finalized")
	return &Result{Path: path, Duration: elapsed, MIME: resultMIME}, nil
}

// Cancel discards the in-progress capture and releases the microphone.
// Valid from any non-idle state; no-op from idle.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateIdle {
		return
	}
	r.teardownLocked(true)
	r.log.Debug().Msg("Recording cancelled")
}

// Close tears down any live session. Safe to call redundantly on
// component teardown.
func (r *Recorder) Close() {
	r.Cancel()
}

// teardownLocked releases the ticker and, when discard is set, the
// capture. Caller must hold mu. Every exit path funnels through here so
// the microphone can never leak.
func (r *Recorder) teardownLocked(discard bool) {
	if r.tickStop != nil {
		close(r.tickStop)
		r.tickStop = nil
	}
	if discard && r.capture != nil {
		r.capture.Discard()
	}
	r.capture = nil
	r.state = StateIdle
	r.elapsed = 0
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns recorded time so far, excluding paused stretches.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}
