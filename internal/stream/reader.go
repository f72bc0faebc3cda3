// Package stream decodes the analysis engine's Server-Sent Events response
// into typed step events.
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/legaldb/caseanalyzer/internal/core"
)

// FramePrefix marks a data line.
const FramePrefix = "data: "

// State is the lifecycle of a Reader.
type State int

const (
	StateNotStarted State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for skipped frames.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIdleTimeout fails the stream when no bytes arrive for d.
// Zero disables the timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Reader) {
		r.idleTimeout = d
	}
}

// Reader yields StreamEvents one frame at a time.
type Reader struct {
	body        io.ReadCloser
	buf         *bufio.Reader
	logger      *slog.Logger
	idleTimeout time.Duration

	mu       sync.Mutex
	idle     *time.Timer
	idleHit  bool
	state    State
	pending  error
	err      error
	frames   int
	skipped  int
	closeOne sync.Once
}

// Open validates the response that should carry the stream. A non-2xx
// status or a missing body fails before any frame is read.
func Open(resp *http.Response, opts ...Option) (*Reader, error) {
	if resp == nil {
		return nil, core.ErrTransport(core.CodeAbsentBody, "response body is absent")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ErrorFromResponse(resp)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, core.ErrTransport(core.CodeAbsentBody, "response body is absent")
	}
	return NewReader(resp.Body, opts...), nil
}

// NewReader wraps an already validated body.
func NewReader(body io.ReadCloser, opts ...Option) *Reader {
	r := &Reader{
		body:   body,
		logger: slog.Default(),
		state:  StateNotStarted,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.buf = bufio.NewReader(&idleReader{r: r})
	return r
}

// State returns the current lifecycle state.
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Skipped returns the number of malformed frames dropped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Frames returns the number of frames decoded so far, heartbeats included.
func (r *Reader) Frames() int {
	return r.frames
}

// Next returns the next event. It returns io.EOF once the body ends
// normally. An event with status error is returned as-is; the following
// call fails with a stream error.
func (r *Reader) Next() (core.StreamEvent, error) {
	if r.err != nil {
		return core.StreamEvent{}, r.err
	}
	if r.pending != nil {
		return core.StreamEvent{}, r.fail(r.pending)
	}
	r.setState(StateStreaming)

	for {
		line, readErr := r.buf.ReadString('\n')
		if line != "" {
			if ev, ok := r.decodeLine(line); ok {
				if ev.Status == core.StepError && !ev.IsHeartbeat() {
					r.pending = stepFailure(ev)
				}
				return ev, nil
			}
		}
		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			r.finish()
			return core.StreamEvent{}, io.EOF
		}
		return core.StreamEvent{}, r.fail(r.readError(readErr))
	}
}

// Events drains the reader, calling fn for every event. It returns nil
// when the stream completes normally.
func (r *Reader) Events(fn func(core.StreamEvent)) error {
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fn(ev)
	}
}

// Close releases the response body.
func (r *Reader) Close() error {
	var err error
	r.closeOne.Do(func() {
		r.mu.Lock()
		if r.idle != nil {
			r.idle.Stop()
		}
		r.mu.Unlock()
		err = r.body.Close()
	})
	return err
}

func (r *Reader) decodeLine(line string) (core.StreamEvent, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, FramePrefix) {
		return core.StreamEvent{}, false
	}
	payload := strings.TrimPrefix(line, FramePrefix)

	var ev core.StreamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		r.skipped++
		r.logger.Warn("skipping malformed stream frame",
			"error", core.ErrParse(err.Error()),
			"frame", truncate(payload, 200))
		return core.StreamEvent{}, false
	}
	if ev.Step == "" {
		r.skipped++
		r.logger.Warn("skipping stream frame without step", "frame", truncate(payload, 200))
		return core.StreamEvent{}, false
	}
	if !ev.IsHeartbeat() && !core.ValidStepStatus(ev.Status) {
		r.skipped++
		r.logger.Warn("skipping malformed stream frame",
			"error", core.ErrParse(fmt.Sprintf("missing step status for %s", ev.Step)),
			"frame", truncate(payload, 200))
		return core.StreamEvent{}, false
	}
	r.frames++
	return ev, true
}

func (r *Reader) readError(err error) error {
	r.mu.Lock()
	idle := r.idleHit
	r.mu.Unlock()
	if idle {
		return core.ErrStream(core.CodeStreamIdle,
			fmt.Sprintf("stream idle for %s", r.idleTimeout))
	}
	return core.ErrStream(core.CodeStreamRead, "stream interrupted").WithCause(err)
}

func (r *Reader) fail(err error) error {
	r.err = err
	r.setState(StateFailed)
	_ = r.Close()
	return err
}

func (r *Reader) finish() {
	r.err = io.EOF
	r.setState(StateCompleted)
	_ = r.Close()
}

func (r *Reader) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// armIdle (re)starts the idle timer before a blocking read.
func (r *Reader) armIdle() {
	if r.idleTimeout <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idle == nil {
		r.idle = time.AfterFunc(r.idleTimeout, r.onIdle)
		return
	}
	r.idle.Reset(r.idleTimeout)
}

func (r *Reader) disarmIdle() {
	if r.idleTimeout <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idle != nil {
		r.idle.Stop()
	}
}

func (r *Reader) onIdle() {
	r.mu.Lock()
	r.idleHit = true
	r.mu.Unlock()
	_ = r.body.Close()
}

// idleReader arms the idle timer around each read of the body.
type idleReader struct {
	r *Reader
}

func (ir *idleReader) Read(p []byte) (int, error) {
	ir.r.armIdle()
	n, err := ir.r.body.Read(p)
	ir.r.disarmIdle()
	return n, err
}

func stepFailure(ev core.StreamEvent) error {
	msg := strings.TrimSpace(ev.Error)
	if msg == "" {
		msg = fmt.Sprintf("analysis failed at step %s", ev.Step)
	}
	return core.ErrStream(core.CodeStepFailed, msg).WithDetail("step", ev.Step)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
