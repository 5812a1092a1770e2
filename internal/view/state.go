// Package view holds the lifecycle shared by the dashboard views:
//
//	idle → loading → {success, error}
//	success → refreshing → {success, error}
//	error → loading (explicit retry only)
package view

import "errors"

type Status string

const (
	StatusIdle       Status = "idle"
	StatusLoading    Status = "loading"
	StatusSuccess    Status = "success"
	StatusRefreshing Status = "refreshing"
	StatusError      Status = "error"
)

var (
	ErrRefreshInFlight = errors.New("refresh already in flight")
	ErrRetryRequired   = errors.New("view is in error state, retry required")
	ErrUnmounted       = errors.New("view is unmounted")
)

// Machine tracks a view's status. It is not safe for concurrent use; the
// owning view serializes access under its own lock.
type Machine struct {
	status Status
	prev   Status
}

func (m *Machine) Status() Status {
	if m.status == "" {
		return StatusIdle
	}
	return m.status
}

// Busy reports whether a cycle is in flight.
func (m *Machine) Busy() bool {
	s := m.Status()
	return s == StatusLoading || s == StatusRefreshing
}

// Begin starts a regular cycle (mount, manual refresh, timer tick).
func (m *Machine) Begin() error {
	switch m.Status() {
	case StatusLoading, StatusRefreshing:
		return ErrRefreshInFlight
	case StatusError:
		return ErrRetryRequired
	case StatusSuccess:
		m.move(StatusRefreshing)
	default:
		m.move(StatusLoading)
	}
	return nil
}

// Retry starts a cycle from any settled state; from error it re-enters loading.
func (m *Machine) Retry() error {
	switch m.Status() {
	case StatusLoading, StatusRefreshing:
		return ErrRefreshInFlight
	case StatusSuccess:
		m.move(StatusRefreshing)
	default:
		m.move(StatusLoading)
	}
	return nil
}

func (m *Machine) Succeed() { m.move(StatusSuccess) }

func (m *Machine) Fail() { m.move(StatusError) }

// Abort returns to the status held before the cycle began. Used when the
// cycle was cancelled rather than failed.
func (m *Machine) Abort() {
	if m.Busy() {
		m.status = m.prev
	}
}

func (m *Machine) move(to Status) {
	m.prev = m.Status()
	m.status = to
}
