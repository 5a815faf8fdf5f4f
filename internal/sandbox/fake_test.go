package sandbox

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// fakePlatform records every call made against the sandboxes it creates.
type fakePlatform struct {
	mu        sync.Mutex
	createErr error
	created   []*fakeSandbox
	opened    []string

	// configure is applied to every sandbox on creation.
	configure func(*fakeSandbox)
}

func (f *fakePlatform) Create(context.Context) (Sandbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	sb := &fakeSandbox{
		id:       "sb-" + string(rune('a'+len(f.created))),
		files:    map[string][]byte{},
		previews: map[int]Preview{},
		exec:     func(ExecRequest) (ExecResult, error) { return ExecResult{}, nil },
	}
	if f.configure != nil {
		f.configure(sb)
	}
	f.created = append(f.created, sb)
	return sb, nil
}

func (f *fakePlatform) Open(id string) Sandbox {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, id)
	for _, sb := range f.created {
		if sb.id == id {
			return sb
		}
	}
	return &fakeSandbox{id: id}
}

type fakeSandbox struct {
	mu         sync.Mutex
	id         string
	files      map[string][]byte
	sessions   []string
	commands   []ExecRequest
	previews   map[int]Preview
	deleted    int
	uploadErr  error
	sessionErr error
	exec       func(ExecRequest) (ExecResult, error)
}

func (s *fakeSandbox) ID() string { return s.id }

func (s *fakeSandbox) Upload(_ context.Context, content []byte, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return s.uploadErr
	}
	s.files[path] = content
	return nil
}

func (s *fakeSandbox) CreateSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return s.sessionErr
	}
	s.sessions = append(s.sessions, id)
	return nil
}

func (s *fakeSandbox) Execute(_ context.Context, _ string, req ExecRequest) (ExecResult, error) {
	s.mu.Lock()
	s.commands = append(s.commands, req)
	exec := s.exec
	s.mu.Unlock()
	return exec(req)
}

func (s *fakeSandbox) PreviewLink(_ context.Context, port int) (Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.previews[port]
	if !ok {
		return Preview{}, errors.New("no preview for port")
	}
	return p, nil
}

func (s *fakeSandbox) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted++
	return nil
}

func (s *fakeSandbox) ran(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.commands {
		if strings.HasPrefix(c.Command, prefix) {
			n++
		}
	}
	return n
}
