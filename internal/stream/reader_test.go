package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legaldb/caseanalyzer/internal/core"
)

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func collect(t *testing.T, r *Reader) ([]core.StreamEvent, error) {
	t.Helper()
	var out []core.StreamEvent
	err := r.Events(func(ev core.StreamEvent) { out = append(out, ev) })
	return out, err
}

func TestReader_YieldsFramesInOrder(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&sb, "data: {\"step\":\"step_%d\",\"status\":\"in_progress\"}\n\n", i)
	}
	r, err := Open(response(200, sb.String()), quiet())
	require.NoError(t, err)

	events, err := collect(t, r)
	require.NoError(t, err)
	require.Len(t, events, 50)
	for i, ev := range events {
		assert.Equal(t, fmt.Sprintf("step_%d", i), ev.Step)
	}
	assert.Equal(t, StateCompleted, r.State())
}

func TestReader_SkipsMalformedAndForeignLines(t *testing.T) {
	body := strings.Join([]string{
		": keep-alive",
		"event: progress",
		"data: {not json}",
		`data: {"step":"abstract","status":"exploded"}`,
		`data: {"status":"completed"}`,
		`data: {"step":"abstract","status":"completed","data":{"abstract":"A"}}`,
		"",
	}, "\n")
	r, err := Open(response(200, body), quiet())
	require.NoError(t, err)

	events, err := collect(t, r)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "abstract", events[0].Step)
	assert.Equal(t, "A", events[0].Data["abstract"])
	assert.Equal(t, 3, r.Skipped())
}

func TestReader_SkipsFramesWithoutStatus(t *testing.T) {
	body := strings.Join([]string{
		`data: {"step":"case_citation","status":"in_progress"}`,
		`data: {"step":"case_citation","data":{"case_citation":"X"}}`,
		`data: {"step":"case_citation","status":null}`,
		`data: {"step":"heartbeat"}`,
		"",
	}, "\n")
	r, err := Open(response(200, body), quiet())
	require.NoError(t, err)

	events, err := collect(t, r)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, core.StepInProgress, events[0].Status)
	assert.True(t, events[1].IsHeartbeat())
	assert.Equal(t, 2, r.Skipped())
	assert.Equal(t, 2, r.Frames())
}

func TestReader_TrailingLineWithoutNewline(t *testing.T) {
	r, err := Open(response(200, `data: {"step":"abstract","status":"completed"}`), quiet())
	require.NoError(t, err)

	events, err := collect(t, r)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestReader_CRLFFrames(t *testing.T) {
	r, err := Open(response(200, "data: {\"step\":\"a\",\"status\":\"completed\"}\r\n\r\n"), quiet())
	require.NoError(t, err)

	events, err := collect(t, r)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.StepCompleted, events[0].Status)
}

func TestReader_HeartbeatWithoutStatus(t *testing.T) {
	r, err := Open(response(200, "data: {\"step\":\"heartbeat\"}\n"), quiet())
	require.NoError(t, err)

	ev, err := r.Next()
	require.NoError(t, err)
	assert.True(t, ev.IsHeartbeat())

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_ErrorEventFailsStream(t *testing.T) {
	body := "data: {\"step\":\"col_extraction\",\"status\":\"error\",\"error\":\"LLM timeout\"}\n" +
		"data: {\"step\":\"themes\",\"status\":\"completed\"}\n"
	r, err := Open(response(200, body), quiet())
	require.NoError(t, err)

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, core.StepError, ev.Status)
	assert.Equal(t, StateStreaming, r.State())

	_, err = r.Next()
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatStream))
	assert.Equal(t, "LLM timeout", core.UserMessage(err))
	assert.Equal(t, StateFailed, r.State())

	_, again := r.Next()
	assert.Equal(t, err, again)
}

func TestReader_ErrorEventWithoutMessage(t *testing.T) {
	r, err := Open(response(200, "data: {\"step\":\"abstract\",\"status\":\"error\"}\n"), quiet())
	require.NoError(t, err)

	_, err = collect(t, r)
	require.Error(t, err)
	assert.Contains(t, core.UserMessage(err), "abstract")
}

func TestOpen_NonSuccessStatus(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want string
	}{
		{"detail", 422, `{"detail":"Draft is locked"}`, "Draft is locked"},
		{"validation list", 422, `{"detail":[{"msg":"field required"},{"msg":"bad id"}]}`, "field required; bad id"},
		{"message", 500, `{"message":"engine down"}`, "engine down"},
		{"raw text", 502, "Bad Gateway", "Bad Gateway"},
		{"empty", 503, "", "request failed (HTTP 503)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Open(response(tt.code, tt.body))
			assert.Nil(t, r)
			require.Error(t, err)
			assert.True(t, core.IsCategory(err, core.ErrCatTransport))
			assert.Equal(t, tt.want, core.UserMessage(err))
		})
	}
}

func TestOpen_AbsentBody(t *testing.T) {
	for _, resp := range []*http.Response{
		nil,
		{StatusCode: 200},
		{StatusCode: 200, Body: http.NoBody},
	} {
		_, err := Open(resp)
		require.Error(t, err)
		var domErr *core.DomainError
		require.True(t, errors.As(err, &domErr))
		assert.Equal(t, core.CodeAbsentBody, domErr.Code)
	}
}

type blockingBody struct {
	closed chan struct{}
}

func (b *blockingBody) Read(p []byte) (int, error) {
	<-b.closed
	return 0, errors.New("read on closed body")
}

func (b *blockingBody) Close() error {
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}
	return nil
}

func TestReader_IdleTimeout(t *testing.T) {
	body := &blockingBody{closed: make(chan struct{})}
	r := NewReader(body, quiet(), WithIdleTimeout(20*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		_, err := r.Next()
		done <- err
	}()

	select {
	case err := <-done:
		var domErr *core.DomainError
		require.True(t, errors.As(err, &domErr))
		assert.Equal(t, core.CodeStreamIdle, domErr.Code)
		assert.Equal(t, StateFailed, r.State())
	case <-time.After(2 * time.Second):
		t.Fatal("idle timeout did not fire")
	}
}

func TestReader_CloseInterruptsStream(t *testing.T) {
	body := &blockingBody{closed: make(chan struct{})}
	r := NewReader(body, quiet())

	done := make(chan error, 1)
	go func() {
		_, err := r.Next()
		done <- err
	}()
	require.NoError(t, r.Close())

	select {
	case err := <-done:
		var domErr *core.DomainError
		require.True(t, errors.As(err, &domErr))
		assert.Equal(t, core.CodeStreamRead, domErr.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("close did not unblock reader")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "not_started", StateNotStarted.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(99).String())
}
