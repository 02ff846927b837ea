package stream

import (
	"context"
	"io"
	"sync"
)

// Clock identifies a block.
type Clock struct {
	Number    uint64
	ID        string
	Timestamp int64
}

type MessageType int

const (
	MessageData MessageType = iota
	MessageUndo
)

// Message is one block of map output, or an undo signal carrying the last
// valid position.
type Message struct {
	Type   MessageType
	Cursor string
	Clock  Clock
	Output []byte

	LastValidCursor string
	LastValidBlock  Clock
}

// StartPoint is where a session begins. A non-empty Cursor wins over Block;
// the first message delivered comes after the cursor.
type StartPoint struct {
	Cursor string
	Block  uint64
}

type Source interface {
	Open(ctx context.Context, start StartPoint) (Session, error)
}

// Session delivers messages in order. Recv returns io.EOF when the stream
// ends.
type Session interface {
	Recv(ctx context.Context) (*Message, error)
	Close() error
}

// Fault makes one SliceSource session fail with Err after delivering After
// messages.
type Fault struct {
	After int
	Err   error
}

// SliceSource replays a fixed list of messages. Each Open consumes the next
// entry of Faults, if any.
type SliceSource struct {
	Messages []Message
	Faults   []Fault

	mu    sync.Mutex
	opens []StartPoint
}

func (s *SliceSource) Open(_ context.Context, start StartPoint) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var fault *Fault
	if n := len(s.opens); n < len(s.Faults) {
		f := s.Faults[n]
		fault = &f
	}
	s.opens = append(s.opens, start)
	return &sliceSession{msgs: s.remaining(start), fault: fault}, nil
}

// Opens returns the start point of every session opened so far.
func (s *SliceSource) Opens() []StartPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StartPoint(nil), s.opens...)
}

func (s *SliceSource) remaining(start StartPoint) []Message {
	if start.Cursor != "" {
		for i, m := range s.Messages {
			if m.Type == MessageData && m.Cursor == start.Cursor {
				return s.Messages[i+1:]
			}
		}
	}
	for i, m := range s.Messages {
		if m.Type == MessageData && m.Clock.Number >= start.Block {
			return s.Messages[i:]
		}
	}
	return nil
}

type sliceSession struct {
	msgs      []Message
	delivered int
	fault     *Fault
}

func (s *sliceSession) Recv(ctx context.Context) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.fault != nil && s.delivered >= s.fault.After {
		return nil, s.fault.Err
	}
	if len(s.msgs) == 0 {
		return nil, io.EOF
	}
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	s.delivered++
	return &m, nil
}

func (s *sliceSession) Close() error { return nil }
