// Package agui emits the AG-UI event stream consumed by the chat component.
package agui

type EventType string

const (
	EventRunStarted         EventType = "RUN_STARTED"
	EventTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTextMessageEnd     EventType = "TEXT_MESSAGE_END"
	EventRunFinished        EventType = "RUN_FINISHED"
	EventMetadata           EventType = "metadata"
	EventError              EventType = "error"
)

// DoneSentinel is written verbatim as the final data line of a stream.
const DoneSentinel = "[DONE]"

type RunStarted struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"runId"`
	Timestamp int64     `json:"timestamp"`
}

type TextMessageStart struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"messageId"`
	Role      string    `json:"role"`
	Timestamp int64     `json:"timestamp"`
}

// TextMessageContent carries the increment and the full text so far.
type TextMessageContent struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"messageId"`
	Delta     string    `json:"delta"`
	Content   string    `json:"content"`
	Timestamp int64     `json:"timestamp"`
}

type TextMessageEnd struct {
	Type      EventType `json:"type"`
	MessageID string    `json:"messageId"`
	Timestamp int64     `json:"timestamp"`
}

type RunFinished struct {
	Type         EventType `json:"type"`
	RunID        string    `json:"runId"`
	FinishReason string    `json:"finishReason"`
	Timestamp    int64     `json:"timestamp"`
}

type Metadata struct {
	Type     EventType `json:"type"`
	ThreadID string    `json:"threadId"`
}

type ErrorBody struct {
	Message string `json:"message"`
}

type Error struct {
	Type  EventType `json:"type"`
	Error ErrorBody `json:"error"`
}
