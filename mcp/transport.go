package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Transport carries JSON-RPC frames to one endpoint.
type Transport interface {
	// RoundTrip sends a request frame and returns the matching response frame.
	RoundTrip(ctx context.Context, frame []byte) ([]byte, error)
	// Send delivers a notification frame; no response is expected.
	Send(ctx context.Context, frame []byte) error
	Close() error
}

// ErrClosed is returned by a transport whose peer has gone away.
var ErrClosed = errors.New("mcp: transport closed")

// Stream is a [Transport] over a newline-delimited byte stream such as the
// stdin and stdout of a child process. Calls are serialized.
type Stream struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	frames chan []byte
	done   chan struct{}
	once   sync.Once

	errMu   sync.Mutex
	readErr error
}

// NewStream starts reading frames from r. Close calls closer, which should
// release both ends of the stream.
func NewStream(r io.Reader, w io.Writer, closer io.Closer) *Stream {
	s := &Stream{
		w:      w,
		closer: closer,
		frames: make(chan []byte),
		done:   make(chan struct{}),
	}
	go s.readLoop(bufio.NewReader(r))
	return s
}

func (s *Stream) readLoop(r *bufio.Reader) {
	defer close(s.frames)
	for {
		line, err := r.ReadBytes('\n')
		if line = bytes.TrimSpace(line); len(line) > 0 {
			select {
			case s.frames <- line:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.errMu.Lock()
			s.readErr = err
			s.errMu.Unlock()
			return
		}
	}
}

// RoundTrip writes frame and waits for the response carrying the same id.
// Frames without that id (server notifications) are skipped.
func (s *Stream) RoundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	var req Request
	if err := json.Unmarshal(frame, &req); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(frame); err != nil {
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case line, ok := <-s.frames:
			if !ok {
				return nil, s.closedErr()
			}
			var head struct {
				ID json.RawMessage `json:"id"`
			}
			if err := json.Unmarshal(line, &head); err != nil {
				return nil, fmt.Errorf("decode frame: %w", err)
			}
			if bytes.Equal(head.ID, req.ID) {
				return line, nil
			}
		}
	}
}

// Send writes a notification frame.
func (s *Stream) Send(_ context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(frame)
}

func (s *Stream) write(frame []byte) error {
	buf := make([]byte, 0, len(frame)+1)
	buf = append(append(buf, frame...), '\n')
	if _, err := s.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *Stream) closedErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.readErr != nil && !errors.Is(s.readErr, io.EOF) {
		return fmt.Errorf("%w: %w", ErrClosed, s.readErr)
	}
	return ErrClosed
}

// Close stops the reader and closes the underlying stream.
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		if s.closer != nil {
			err = s.closer.Close()
		}
	})
	return err
}
