package orchestrate

import (
	"errors"
	"io"
	"sync"
)

// ChunkStream is a finite, non-restartable sequence of chunks. Recv returns
// io.EOF after the done chunk.
type ChunkStream interface {
	Recv() (Chunk, error)
	Close() error
}

// RunStream reads a streamed run response body.
type RunStream struct {
	body    io.ReadCloser
	lines   *LineReader
	norm    *Normalizer
	pending []Chunk
	ended   bool
	sentEnd bool

	closeOnce sync.Once
	closeErr  error
}

func newRunStream(body io.ReadCloser, norm *Normalizer, opts ...LineReaderOption) *RunStream {
	return &RunStream{
		body:  body,
		lines: NewLineReader(body, opts...),
		norm:  norm,
	}
}

// Recv returns the next chunk. The final chunk is always ChunkDone carrying
// the last observed upstream thread id; read failures come back as
// *StreamError.
func (s *RunStream) Recv() (Chunk, error) {
	for {
		if len(s.pending) > 0 {
			c := s.pending[0]
			s.pending = s.pending[1:]
			return c, nil
		}
		if s.ended {
			if s.sentEnd {
				return Chunk{}, io.EOF
			}
			s.sentEnd = true
			return Chunk{Kind: ChunkDone, ThreadID: s.norm.ThreadID()}, nil
		}
		payload, err := s.lines.Next()
		if errors.Is(err, io.EOF) {
			s.ended = true
			frames, invalid := s.norm.Counts()
			s.norm.log.Debug("run stream ended", "frames", frames, "invalid_frames", invalid, "upstream_thread_id", s.norm.ThreadID())
			continue
		}
		if err != nil {
			return Chunk{}, &StreamError{Err: err}
		}
		s.pending = append(s.pending, s.norm.Normalize(payload)...)
	}
}

// ThreadID is the upstream thread id observed so far.
func (s *RunStream) ThreadID() string { return s.norm.ThreadID() }

func (s *RunStream) Close() error {
	s.closeOnce.Do(func() {
		if s.body != nil {
			s.closeErr = s.body.Close()
		}
	})
	return s.closeErr
}
