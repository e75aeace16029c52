// Package targets holds the versioned probe configuration observed by the
// scheduler and mutated through the API.
package targets

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hamed0406/netprobe/internal/domain"
)

var (
	ErrConflict = errors.New("target id exists")
	ErrNotFound = errors.New("target not found")
	ErrInvalid  = domain.ErrInvalid
)

// State is a point-in-time copy of the configuration.
type State struct {
	Version int64               `json:"version"`
	TCP     []domain.TCPTarget  `json:"tcp"`
	DNS     []domain.DNSTarget  `json:"dns"`
	HTTP    []domain.HTTPTarget `json:"http"`
}

// Targets flattens the state in kind order (tcp, dns, http), preserving the
// order inside each kind.
func (s State) Targets() []domain.Target {
	out := make([]domain.Target, 0, len(s.TCP)+len(s.DNS)+len(s.HTTP))
	for _, t := range s.TCP {
		out = append(out, t)
	}
	for _, t := range s.DNS {
		out = append(out, t)
	}
	for _, t := range s.HTTP {
		out = append(out, t)
	}
	return out
}

func (s State) clone() State {
	c := State{
		Version: s.Version,
		TCP:     append(make([]domain.TCPTarget, 0, len(s.TCP)), s.TCP...),
		DNS:     make([]domain.DNSTarget, 0, len(s.DNS)),
		HTTP:    append(make([]domain.HTTPTarget, 0, len(s.HTTP)), s.HTTP...),
	}
	for _, d := range s.DNS {
		d.Resolvers = append([]string(nil), d.Resolvers...)
		c.DNS = append(c.DNS, d)
	}
	return c
}

type Registry struct {
	mu      sync.RWMutex
	state   State
	changed chan struct{}
}

// NewRegistry starts from seed. The version is at least 1.
func NewRegistry(seed State) *Registry {
	st := seed.clone()
	if st.Version < 1 {
		st.Version = 1
	}
	return &Registry{state: st, changed: make(chan struct{}, 1)}
}

func (r *Registry) Snapshot() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.clone()
}

func (r *Registry) Version() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Version
}

// Changed receives a value after one or more mutations. Observers must still
// compare versions; signals coalesce.
func (r *Registry) Changed() <-chan struct{} { return r.changed }

func (r *Registry) AddTCP(t domain.TCPTarget) (State, error) {
	t = t.WithDefaults()
	if err := t.Validate(); err != nil {
		return State{}, err
	}
	return r.mutate(func(s *State) error {
		for _, x := range s.TCP {
			if x.ID == t.ID {
				return fmt.Errorf("%w: tcp %q", ErrConflict, t.ID)
			}
		}
		s.TCP = append(s.TCP, t)
		return nil
	})
}

func (r *Registry) AddDNS(t domain.DNSTarget) (State, error) {
	t = t.WithDefaults()
	if err := t.Validate(); err != nil {
		return State{}, err
	}
	t.Resolvers = append([]string(nil), t.Resolvers...)
	return r.mutate(func(s *State) error {
		for _, x := range s.DNS {
			if x.ID == t.ID {
				return fmt.Errorf("%w: dns %q", ErrConflict, t.ID)
			}
		}
		s.DNS = append(s.DNS, t)
		return nil
	})
}

func (r *Registry) AddHTTP(t domain.HTTPTarget) (State, error) {
	t = t.WithDefaults()
	if err := t.Validate(); err != nil {
		return State{}, err
	}
	return r.mutate(func(s *State) error {
		for _, x := range s.HTTP {
			if x.ID == t.ID {
				return fmt.Errorf("%w: http %q", ErrConflict, t.ID)
			}
		}
		s.HTTP = append(s.HTTP, t)
		return nil
	})
}

// Remove deletes the target of the given kind with id.
func (r *Registry) Remove(kind domain.Kind, id string) (State, error) {
	return r.mutate(func(s *State) error {
		var found bool
		switch kind {
		case domain.KindTCP:
			s.TCP, found = without(s.TCP, id)
		case domain.KindDNS:
			s.DNS, found = without(s.DNS, id)
		case domain.KindHTTP:
			s.HTTP, found = without(s.HTTP, id)
		default:
			return fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
		}
		if !found {
			return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
		}
		return nil
	})
}

// mutate applies fn to the live state and bumps the version exactly once
// when fn succeeds.
func (r *Registry) mutate(fn func(*State) error) (State, error) {
	r.mu.Lock()
	if err := fn(&r.state); err != nil {
		r.mu.Unlock()
		return State{}, err
	}
	r.state.Version++
	snap := r.state.clone()
	r.mu.Unlock()

	select {
	case r.changed <- struct{}{}:
	default:
	}
	return snap, nil
}

func without[T domain.Target](list []T, id string) ([]T, bool) {
	out := list[:0:0]
	found := false
	for _, t := range list {
		if t.TargetID() == id {
			found = true
			continue
		}
		out = append(out, t)
	}
	return out, found
}
