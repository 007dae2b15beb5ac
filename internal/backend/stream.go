package backend

import (
	"errors"
	"io"
	"sync"
)

// errStreamClosed is returned into the producer when the consumer has
// abandoned the stream; the backend uses it to stop generating.
var errStreamClosed = errors.New("token stream closed by consumer")

// TokenStream converts the backend's push-based, synchronously invoked
// token callback into a pull-based sequence. The producer (generation
// goroutine) appends tokens without ever blocking on the consumer; the
// consumer drains lazily with Recv. The sequence is forward-only and
// non-restartable.
//
// On mid-stream failure the stream terminates carrying the stored error,
// observed only after the last successfully pushed token has been
// received. Termination is idempotent regardless of which side triggered it.
type TokenStream struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []string
	done    bool
	err     error // terminal error, nil means clean completion
	final   Result

	closeOnce sync.Once
}

func newTokenStream() *TokenStream {
	s := &TokenStream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// push appends one token. Returns false once the stream no longer accepts
// tokens (consumer closed it), which the producer treats as a stop signal.
// push only ever holds the mutex for an append, so a slow consumer cannot
// stall the generation thread.
func (s *TokenStream) push(tok string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	s.pending = append(s.pending, tok)
	s.cond.Signal()
	return true
}

// finish terminates the stream from the producer side. Tokens already
// pushed remain receivable; err (if any) surfaces after the last of them.
func (s *TokenStream) finish(res Result, err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.done = true
		s.err = err
		s.final = res
		s.mu.Unlock()
		s.cond.Broadcast()
	})
}

// Close abandons the stream from the consumer side. Pending tokens are
// dropped and the producer stops at its next push. Safe to call any
// number of times, including after normal completion.
func (s *TokenStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.done = true
		s.pending = nil
		s.mu.Unlock()
		s.cond.Broadcast()
	})
	return nil
}

// Recv returns the next token. After the final token it returns io.EOF on
// clean completion, or the terminal error from a mid-stream failure.
func (s *TokenStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) == 0 && !s.done {
		s.cond.Wait()
	}
	if len(s.pending) > 0 {
		tok := s.pending[0]
		s.pending = s.pending[1:]
		return tok, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

// Final returns the aggregated result once the stream has terminated.
// Calling it earlier returns a zero Result and false.
func (s *TokenStream) Final() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done {
		return Result{}, false
	}
	return s.final, true
}

// Err returns the terminal error, if the stream has failed. io.EOF is
// never stored; a cleanly completed stream reports nil.
func (s *TokenStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
