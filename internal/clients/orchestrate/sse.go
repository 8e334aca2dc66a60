package orchestrate

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const doneSentinel = "[DONE]"

// LineReader yields the JSON payloads of a newline-delimited event stream.
// "data:" prefixes are stripped, bare lines starting with "{" are accepted
// as-is and everything else is skipped. A "[DONE]" payload ends the stream.
type LineReader struct {
	br            *bufio.Reader
	flushTrailing bool
	done          bool
}

type LineReaderOption func(*LineReader)

// WithTrailingFlush makes the reader yield a final line that has no
// terminating newline. By default that fragment is dropped.
func WithTrailingFlush() LineReaderOption {
	return func(lr *LineReader) { lr.flushTrailing = true }
}

func NewLineReader(r io.Reader, opts ...LineReaderOption) *LineReader {
	lr := &LineReader{br: bufio.NewReaderSize(r, 64*1024)}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Next returns the next payload, io.EOF at the end of the stream, or the
// underlying read error.
func (lr *LineReader) Next() (string, error) {
	for {
		if lr.done {
			return "", io.EOF
		}
		line, err := lr.br.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return "", err
			}
			lr.done = true
			if !lr.flushTrailing {
				return "", io.EOF
			}
		}
		payload, ok := payloadOf(line)
		if !ok {
			continue
		}
		if payload == doneSentinel {
			lr.done = true
			return "", io.EOF
		}
		return payload, nil
	}
}

func payloadOf(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return "", false
	case strings.HasPrefix(trimmed, "data:"):
		p := strings.TrimSpace(strings.TrimPrefix(trimmed, "data:"))
		return p, p != ""
	case strings.HasPrefix(trimmed, "{"):
		return trimmed, true
	default:
		return "", false
	}
}
