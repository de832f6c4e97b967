////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Multi groups the stoppables of one session so they are closed together.
type Multi struct {
	name       string
	stoppables []Stoppable
	closed     bool
	mux        sync.Mutex
}

// NewMulti returns an empty Multi.
func NewMulti(name string) *Multi {
	return &Multi{name: name}
}

// Name returns the name of the Multi followed by its children's names.
func (m *Multi) Name() string {
	m.mux.Lock()
	defer m.mux.Unlock()

	names := make([]string, len(m.stoppables))
	for i, s := range m.stoppables {
		names[i] = s.Name()
	}
	return m.name + ": {" + strings.Join(names, ", ") + "}"
}

// Add adds a Stoppable to the Multi. A Stoppable added after Close is closed
// immediately.
func (m *Multi) Add(s Stoppable) {
	m.mux.Lock()
	if !m.closed {
		m.stoppables = append(m.stoppables, s)
		m.mux.Unlock()
		return
	}
	m.mux.Unlock()

	jww.WARN.Printf("Stoppable %q added to closed multi %q; closing it.",
		s.Name(), m.name)
	if err := s.Close(); err != nil {
		jww.WARN.Printf("Late close of %q failed: %+v", s.Name(), err)
	}
}

// IsRunning returns true if any child is still running.
func (m *Multi) IsRunning() bool {
	m.mux.Lock()
	defer m.mux.Unlock()

	for _, s := range m.stoppables {
		if s.IsRunning() {
			return true
		}
	}
	return false
}

// Close closes every child concurrently and returns the combined errors of
// the children that failed to close.
func (m *Multi) Close() error {
	m.mux.Lock()
	m.closed = true
	children := append([]Stoppable(nil), m.stoppables...)
	m.mux.Unlock()

	var (
		wg       sync.WaitGroup
		errMux   sync.Mutex
		failures []string
	)
	for _, s := range children {
		wg.Add(1)
		go func(s Stoppable) {
			defer wg.Done()
			if err := s.Close(); err != nil {
				errMux.Lock()
				failures = append(failures, s.Name()+": "+err.Error())
				errMux.Unlock()
			}
		}(s)
	}
	wg.Wait()

	if len(failures) > 0 {
		return errors.Errorf("multi stoppable %q failed to close %d of %d: %s",
			m.name, len(failures), len(children), strings.Join(failures, "; "))
	}
	return nil
}
