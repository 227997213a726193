package cmdrun

import (
	"context"
	"strings"
	"sync"
)

// Fake is an in-memory Runner for unit tests. Responses are keyed by the
// full command line; unmatched commands fall back to prefix matches and
// then to the Default response.
type Fake struct {
	mu        sync.Mutex
	Responses map[string]FakeResponse
	Default   FakeResponse
	Calls     []string
}

type FakeResponse struct {
	Stdout string
	Err    error
}

func NewFake() *Fake {
	return &Fake{Responses: map[string]FakeResponse{}}
}

// Stub registers a response for an exact command line.
func (f *Fake) Stub(cmdline string, stdout string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[cmdline] = FakeResponse{Stdout: stdout, Err: err}
}

func (f *Fake) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	cmdline := name
	if len(args) > 0 {
		cmdline += " " + strings.Join(args, " ")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, cmdline)
	if resp, ok := f.Responses[cmdline]; ok {
		return []byte(resp.Stdout), resp.Err
	}
	for key, resp := range f.Responses {
		if strings.HasPrefix(cmdline, key) {
			return []byte(resp.Stdout), resp.Err
		}
	}
	return []byte(f.Default.Stdout), f.Default.Err
}

// CalledWith reports whether any recorded call contains the substring.
func (f *Fake) CalledWith(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}
