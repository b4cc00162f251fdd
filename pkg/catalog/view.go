package catalog

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by View.Load when a newer load or a Cancel
// replaced it before it finished.
var ErrSuperseded = errors.New("load superseded")

// Status is the lifecycle stage of a View.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Querier runs a catalog query. *Service implements it.
type Querier interface {
	Query(ctx context.Context, q Query) (*Result, error)
}

// ViewState is a snapshot of a View.
type ViewState struct {
	Status Status
	Query  Query
	Result *Result
	// Err is the failure for StatusError, or the reason a StatusSuccess
	// result is partial.
	Err error
}

// View tracks the catalog page a user is looking at. Each Load cancels the
// load it replaces, and only the newest load may update the state.
type View struct {
	querier Querier

	mu     sync.Mutex
	state  ViewState
	seq    uint64
	cancel context.CancelFunc
}

// NewView creates an idle view.
func NewView(querier Querier) *View {
	return &View{querier: querier}
}

// Load runs q, cancelling any load still in flight. It returns ErrSuperseded
// if another Load or Cancel happened before q finished.
func (v *View) Load(ctx context.Context, q Query) (*Result, error) {
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.seq++
	seq := v.seq
	v.cancel = cancel
	v.state = ViewState{Status: StatusLoading, Query: q}
	v.mu.Unlock()

	res, err := v.querier.Query(loadCtx, q)

	v.mu.Lock()
	defer v.mu.Unlock()

	if seq != v.seq {
		return nil, ErrSuperseded
	}
	v.cancel = nil

	if res == nil {
		if err == nil {
			err = errors.New("empty result")
		}
		v.state = ViewState{Status: StatusError, Query: q, Err: err}
		return nil, err
	}

	v.state = ViewState{Status: StatusSuccess, Query: q, Result: res, Err: err}
	return res, err
}

// Cancel aborts the in-flight load, if any, and returns the view to idle.
func (v *View) Cancel() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.seq++
	v.state = ViewState{Status: StatusIdle}
}

// State returns the current snapshot.
func (v *View) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}
