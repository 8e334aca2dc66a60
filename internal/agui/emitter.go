package agui

import (
	"time"

	"github.com/google/uuid"
)

// Emitter builds the frames of one assistant response. It owns the run and
// message ids so a response carries exactly one start/end pair.
type Emitter struct {
	sink      Sink
	runID     string
	messageID string
	now       func() time.Time
}

func NewEmitter(sink Sink) *Emitter {
	return &Emitter{
		sink:      sink,
		runID:     "run_" + uuid.NewString(),
		messageID: "msg_" + uuid.NewString(),
		now:       time.Now,
	}
}

func (e *Emitter) RunID() string     { return e.runID }
func (e *Emitter) MessageID() string { return e.messageID }

func (e *Emitter) ts() int64 { return e.now().UnixMilli() }

func (e *Emitter) RunStarted() error {
	return e.sink.Send(RunStarted{Type: EventRunStarted, RunID: e.runID, Timestamp: e.ts()})
}

func (e *Emitter) TextStart() error {
	return e.sink.Send(TextMessageStart{Type: EventTextMessageStart, MessageID: e.messageID, Role: "assistant", Timestamp: e.ts()})
}

func (e *Emitter) TextContent(delta, cumulative string) error {
	return e.sink.Send(TextMessageContent{
		Type:      EventTextMessageContent,
		MessageID: e.messageID,
		Delta:     delta,
		Content:   cumulative,
		Timestamp: e.ts(),
	})
}

func (e *Emitter) TextEnd() error {
	return e.sink.Send(TextMessageEnd{Type: EventTextMessageEnd, MessageID: e.messageID, Timestamp: e.ts()})
}

func (e *Emitter) RunFinished() error {
	return e.sink.Send(RunFinished{Type: EventRunFinished, RunID: e.runID, FinishReason: "stop", Timestamp: e.ts()})
}

func (e *Emitter) Metadata(threadID string) error {
	return e.sink.Send(Metadata{Type: EventMetadata, ThreadID: threadID})
}

func (e *Emitter) Error(msg string) error {
	return e.sink.Send(Error{Type: EventError, Error: ErrorBody{Message: msg}})
}

func (e *Emitter) Done() error { return e.sink.Done() }
