package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"apod_syncer/internal/domain"
)

// ErrSuperseded is returned when a newer month selection cancelled the refresh.
var ErrSuperseded = errors.New("superseded by a newer selection")

type Refresher interface {
	Refresh(ctx context.Context, d time.Time) (domain.SyncResult, bool, error)
}

// Coordinator serializes month selections of one client: selecting a month
// cancels the refresh of the previously selected one.
type Coordinator struct {
	refresher Refresher

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewCoordinator(refresher Refresher) *Coordinator {
	return &Coordinator{refresher: refresher}
}

func (c *Coordinator) Select(ctx context.Context, d time.Time) (domain.SyncResult, bool, error) {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.gen == gen {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel()
	}()

	result, synced, err := c.refresher.Refresh(runCtx, d)
	if err != nil && runCtx.Err() != nil && ctx.Err() == nil {
		return nil, false, ErrSuperseded
	}
	return result, synced, err
}

// Coordinators hands out one Coordinator per client id and forgets it once
// no selection of that client is in flight.
type Coordinators struct {
	refresher Refresher

	mu      sync.Mutex
	clients map[string]*clientCoordinator
}

type clientCoordinator struct {
	*Coordinator
	users int
}

func NewCoordinators(refresher Refresher) *Coordinators {
	return &Coordinators{
		refresher: refresher,
		clients:   make(map[string]*clientCoordinator),
	}
}

func (cs *Coordinators) Select(ctx context.Context, clientID string, d time.Time) (domain.SyncResult, bool, error) {
	cs.mu.Lock()
	cc, ok := cs.clients[clientID]
	if !ok {
		cc = &clientCoordinator{Coordinator: NewCoordinator(cs.refresher)}
		cs.clients[clientID] = cc
	}
	cc.users++
	cs.mu.Unlock()

	defer func() {
		cs.mu.Lock()
		cc.users--
		if cc.users == 0 {
			delete(cs.clients, clientID)
		}
		cs.mu.Unlock()
	}()

	return cc.Select(ctx, d)
}
