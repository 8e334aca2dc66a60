package agui

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterFramesAndHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	e := NewEmitter(w)
	e.now = func() time.Time { return time.UnixMilli(1700000000000) }
	e.runID, e.messageID = "run_1", "msg_1"

	require.NoError(t, e.RunStarted())
	require.NoError(t, e.TextStart())
	require.NoError(t, e.TextContent("Hi ", "Hi "))
	require.NoError(t, e.TextEnd())
	require.NoError(t, e.RunFinished())
	require.NoError(t, e.Metadata("t-1"))
	require.NoError(t, e.Done())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)

	want := strings.Join([]string{
		`data: {"type":"RUN_STARTED","runId":"run_1","timestamp":1700000000000}`,
		`data: {"type":"TEXT_MESSAGE_START","messageId":"msg_1","role":"assistant","timestamp":1700000000000}`,
		`data: {"type":"TEXT_MESSAGE_CONTENT","messageId":"msg_1","delta":"Hi ","content":"Hi ","timestamp":1700000000000}`,
		`data: {"type":"TEXT_MESSAGE_END","messageId":"msg_1","timestamp":1700000000000}`,
		`data: {"type":"RUN_FINISHED","runId":"run_1","finishReason":"stop","timestamp":1700000000000}`,
		`data: {"type":"metadata","threadId":"t-1"}`,
		`data: [DONE]`,
	}, "\n\n") + "\n\n"
	assert.Equal(t, want, rec.Body.String())
}

func TestErrorFrameShape(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)
	require.NoError(t, NewEmitter(w).Error("upstream went away"))
	assert.Equal(t, "data: {\"type\":\"error\",\"error\":{\"message\":\"upstream went away\"}}\n\n", rec.Body.String())
}

type brokenWriter struct {
	header http.Header
	writes int
}

func (b *brokenWriter) Header() http.Header { return b.header }
func (b *brokenWriter) WriteHeader(int)     {}
func (b *brokenWriter) Flush()              {}
func (b *brokenWriter) Write([]byte) (int, error) {
	b.writes++
	return 0, errors.New("broken pipe")
}

func TestWriterLatchesFirstError(t *testing.T) {
	bw := &brokenWriter{header: http.Header{}}
	w, err := NewWriter(bw)
	require.NoError(t, err)

	first := w.Send(Metadata{Type: EventMetadata})
	require.Error(t, first)
	assert.Equal(t, first, w.Done())
	assert.Equal(t, first, w.Err())
	assert.Equal(t, 1, bw.writes)
}

type noFlush struct{ http.ResponseWriter }

func TestNewWriterRequiresFlusher(t *testing.T) {
	_, err := NewWriter(noFlush{httptest.NewRecorder()})
	assert.ErrorIs(t, err, ErrStreamingUnsupported)
}
