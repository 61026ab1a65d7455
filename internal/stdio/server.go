package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/hassbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hassbridge/internal/rpc"
)

// maxLineSize is 10 MB, large enough for a call_service payload with a big data object.
const maxLineSize = 10 * 1024 * 1024

// Dispatcher executes one decoded request. Satisfied by *rpc.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *rpc.Request) *rpc.Response
}

// Server reads request lines from an io.Reader and writes reply lines to an
// io.Writer.
type Server struct {
	dispatcher Dispatcher
	logger     *logging.Logger

	mu sync.Mutex // protects writes to the output
}

// New creates a Server. A nil logger falls back to logging.Default().
func New(d Dispatcher, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{dispatcher: d, logger: logger}
}

// Serve processes lines from in until EOF or ctx is cancelled.
//
// Parameters:
//   - ctx: Cancels the loop and in-flight upstream calls
//   - in: Source of newline-delimited request envelopes
//   - out: Destination for newline-delimited replies
//
// Returns:
//   - error: nil on EOF, ctx.Err() on cancellation, or a read/write failure
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	// Scan blocks on the reader, so it runs apart from the ctx check.
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("reading input: %w", err)
					}
				default:
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Info("input closed, stopping stdio transport")
				return nil
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if err := s.writeResponse(out, s.handleLine(ctx, line)); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

// handleLine decodes and dispatches one line.
func (s *Server) handleLine(ctx context.Context, line []byte) *rpc.Response {
	req, err := rpc.DecodeRequest(line)
	if err != nil {
		s.logger.Debug("rejected input line", "error", err)
		return rpc.DecodeFailure(req, err)
	}
	return s.dispatcher.Dispatch(rpc.ContextWithRequestID(ctx, uuid.NewString()), req)
}

// writeResponse serialises resp as a single line. Access to out is
// serialised with a mutex.
func (s *Server) writeResponse(out io.Writer, resp *rpc.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = out.Write(data)
	return err
}
