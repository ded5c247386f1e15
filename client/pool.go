/*
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package client

import (
	"context"
	"sync"

	"github.com/lizhizhou/iotdb/pkg/log"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SessionPool hands out open sessions to concurrent workers. Capacity is
// fixed: sessions are opened lazily until the pool is full, after that
// Borrow waits for a session to come back.
type SessionPool struct {
	cfg      Config
	capacity int
	logger   *zap.Logger

	idle chan *Session
	done chan struct{}

	// Mutex is used to protect total and closed.
	lock   sync.Mutex
	total  int
	closed bool
}

// PoolStats reports the pool occupancy.
type PoolStats struct {
	Capacity int
	Live     int
	Idle     int
}

func NewSessionPool(cfg Config, capacity int) (*SessionPool, error) {
	if capacity <= 0 {
		return nil, ErrInvalidConfig.WithCausef("pool capacity must be positive, got %d", capacity)
	}
	if err := cfg.ValidateAndAdjust(); err != nil {
		return nil, err
	}

	return &SessionPool{
		cfg:      cfg,
		capacity: capacity,
		logger:   log.Named("session-pool"),
		idle:     make(chan *Session, capacity),
		done:     make(chan struct{}),
		lock:     sync.Mutex{},
		total:    0,
		closed:   false,
	}, nil
}

// Borrow returns an open session. While capacity remains a fresh session is
// opened; otherwise Borrow waits until one is returned, the context ends or
// the pool closes.
func (p *SessionPool) Borrow(ctx context.Context) (*Session, error) {
	select {
	case session := <-p.idle:
		return session, nil
	default:
	}

	if p.reserveSlot() {
		session, err := p.openSession(ctx)
		if err != nil {
			p.releaseSlot()
			return nil, err
		}
		return session, nil
	}

	select {
	case session := <-p.idle:
		return session, nil
	case <-p.done:
		return nil, ErrPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Return gives a borrowed session back to the pool. Sessions returned after
// Close, and sessions that are no longer open, are released instead of
// pooled.
func (p *SessionPool) Return(session *Session) {
	if session == nil {
		return
	}

	p.lock.Lock()
	closed := p.closed
	p.lock.Unlock()

	if closed || session.State() != stateOpen {
		p.releaseSession(session)
		return
	}

	select {
	case p.idle <- session:
	default:
		// A session the pool never handed out overflows capacity.
		p.releaseSession(session)
	}
}

// Close stops handing out sessions and closes the idle ones concurrently.
// Borrowed sessions are closed as they come back through Return.
func (p *SessionPool) Close(ctx context.Context) error {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	p.lock.Unlock()

	close(p.done)

	g, _ := errgroup.WithContext(ctx)
	for {
		select {
		case session := <-p.idle:
			session := session
			p.releaseSlot()
			g.Go(func() error {
				return session.Close(ctx)
			})
		default:
			return g.Wait()
		}
	}
}

func (p *SessionPool) Stats() PoolStats {
	p.lock.Lock()
	defer p.lock.Unlock()

	return PoolStats{
		Capacity: p.capacity,
		Live:     p.total,
		Idle:     len(p.idle),
	}
}

func (p *SessionPool) openSession(ctx context.Context) (*Session, error) {
	session, err := NewSession(p.cfg)
	if err != nil {
		return nil, err
	}
	if err := session.Open(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

func (p *SessionPool) reserveSlot() bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.closed || p.total >= p.capacity {
		return false
	}
	p.total++
	return true
}

func (p *SessionPool) releaseSlot() {
	p.lock.Lock()
	if p.total > 0 {
		p.total--
	}
	p.lock.Unlock()
}

func (p *SessionPool) releaseSession(session *Session) {
	p.releaseSlot()

	if session.State() != stateOpen {
		return
	}
	if err := session.Close(context.Background()); err != nil {
		p.logger.Warn("close pooled session failed", zap.Error(err))
	}
}
