package llm

import (
	"context"
	"errors"
	"sync"
)

// Scripted is a Client that replays canned responses. Tests and dry
// runs use it in place of a live provider.
type Scripted struct {
	// Responses are returned in order; the last one repeats.
	Responses []string

	// Fn, when set, computes the response instead of Responses.
	Fn func(messages []Message) (string, error)

	// Err, when set, fails every call.
	Err error

	mu    sync.Mutex
	calls int
}

func (s *Scripted) Name() string  { return "scripted" }
func (s *Scripted) Model() string { return "scripted" }

// Calls reports how many times Chat was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Scripted) Chat(_ context.Context, messages []Message, _ float64) (string, error) {
	s.mu.Lock()
	n := s.calls
	s.calls++
	s.mu.Unlock()

	if s.Err != nil {
		return "", s.Err
	}
	if s.Fn != nil {
		return s.Fn(messages)
	}
	if len(s.Responses) == 0 {
		return "", errors.New("scripted client has no responses")
	}
	if n >= len(s.Responses) {
		n = len(s.Responses) - 1
	}
	return s.Responses[n], nil
}
