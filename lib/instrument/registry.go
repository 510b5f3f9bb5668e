// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package instrument

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAlreadyEnabled is returned by Enable on an enabled
	// instrumentation.
	ErrAlreadyEnabled = errors.New("instrument: already enabled")

	// ErrNotEnabled is returned by Disable on an instrumentation that
	// is not enabled.
	ErrNotEnabled = errors.New("instrument: not enabled")
)

// Instrumentation installs and removes one capture hook.
type Instrumentation interface {
	// Name identifies the instrumentation in a Registry and in errors.
	Name() string

	// Enable installs the hook, or returns ErrAlreadyEnabled.
	Enable() error

	// Disable restores the state Enable replaced, or returns
	// ErrNotEnabled.
	Disable() error
}

// Registry is an ordered set of instrumentations, enabled in
// registration order and disabled in reverse.
type Registry struct {
	mu      sync.Mutex
	entries []Instrumentation
	names   map[string]bool
}

// NewRegistry returns a registry holding instrumentations.
func NewRegistry(instrumentations ...Instrumentation) (*Registry, error) {
	registry := &Registry{names: make(map[string]bool)}
	for _, instrumentation := range instrumentations {
		if err := registry.Register(instrumentation); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds an instrumentation. Names must be unique.
func (r *Registry) Register(instrumentation Instrumentation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := instrumentation.Name()
	if r.names[name] {
		return fmt.Errorf("instrument: %q is already registered", name)
	}
	r.names[name] = true
	r.entries = append(r.entries, instrumentation)
	return nil
}

// EnableAll enables every registered instrumentation. If one fails,
// the ones enabled by this call are disabled again and the error is
// returned.
func (r *Registry) EnableAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for index, instrumentation := range r.entries {
		if err := instrumentation.Enable(); err != nil {
			errs := []error{fmt.Errorf("enabling %s: %w", instrumentation.Name(), err)}
			for undo := index - 1; undo >= 0; undo-- {
				if err := r.entries[undo].Disable(); err != nil {
					errs = append(errs, fmt.Errorf("rolling back %s: %w", r.entries[undo].Name(), err))
				}
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

// DisableAll disables every enabled instrumentation in reverse order.
// Instrumentations that were not enabled are skipped.
func (r *Registry) DisableAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for index := len(r.entries) - 1; index >= 0; index-- {
		instrumentation := r.entries[index]
		if err := instrumentation.Disable(); err != nil && !errors.Is(err, ErrNotEnabled) {
			errs = append(errs, fmt.Errorf("disabling %s: %w", instrumentation.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.entries))
	for index, instrumentation := range r.entries {
		names[index] = instrumentation.Name()
	}
	return names
}
