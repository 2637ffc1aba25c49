package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnexpectedCommand is returned by Fake for commands with no scripted response.
var ErrUnexpectedCommand = errors.New("fake: unexpected command")

// Response is a scripted result for Fake.
type Response struct {
	Lines  []string
	Stderr string
	Err    error
}

// Fake is a scripted Runner for tests. Responses are keyed by Command.String().
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Command
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{responses: make(map[string]Response)}
}

// On scripts the response for a command line such as "git ls-tree -r main".
func (f *Fake) On(cmdline string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.responses[cmdline] = resp

	return f
}

// Calls returns the commands run so far, in order.
func (f *Fake) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Command(nil), f.calls...)
}

// Run implements Runner.
func (f *Fake) Run(_ context.Context, cmd Command) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, cmd)

	resp, ok := f.responses[cmd.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedCommand, cmd)
	}

	if resp.Err != nil {
		return nil, resp.Err
	}

	if resp.Stderr != "" {
		return nil, &CommandError{Command: cmd, Stderr: resp.Stderr}
	}

	return append([]string(nil), resp.Lines...), nil
}
