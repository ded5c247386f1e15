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

// Package client implements a session client for a multi-node time-series
// database cluster. A session opens against one seed node, submits
// statements and writes, and interprets the structured statuses nodes
// attach to every reply. Failures and routing guidance surface as typed
// errors; redirect guidance feeds a device routing cache so follow-up
// operations go straight to the owning node.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lizhizhou/iotdb/pkg/assert"
	"github.com/lizhizhou/iotdb/pkg/log"
	"github.com/lizhizhou/iotdb/rpc"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fsm state change: Created -> Open -> Closed.
const (
	eventOpen  = "EventOpen"
	eventClose = "EventClose"

	stateCreated = "StateCreated"
	stateOpen    = "StateOpen"
	stateClosed  = "StateClosed"
)

var (
	sessionEvents = fsm.Events{
		{Name: eventOpen, Src: []string{stateCreated}, Dst: stateOpen},
		{Name: eventClose, Src: []string{stateOpen}, Dst: stateClosed},
	}
	sessionCallbacks = fsm.Callbacks{
		"enter_state": func(e *fsm.Event) {
			log.Debug("session state changed", zap.String("from", e.Src), zap.String("to", e.Dst))
		},
	}
)

// Session is the user-facing handle on the cluster. It owns one connection
// per node it has talked to; the registry starts with the seed node Open
// connected to and grows only when redirect guidance names new nodes.
type Session struct {
	cfg       Config
	seeds     []rpc.Endpoint
	transport Transport
	router    *deviceRouter
	limiter   *FlowLimiter
	logger    *zap.Logger

	fsm *fsm.FSM

	// RWMutex is used to protect connections and defaultEndpoint.
	lock            sync.RWMutex
	connections     map[rpc.Endpoint]*nodeConnection
	defaultEndpoint rpc.Endpoint
}

func NewSession(cfg Config) (*Session, error) {
	if err := cfg.ValidateAndAdjust(); err != nil {
		return nil, err
	}

	seeds, err := cfg.SeedEndpoints()
	if err != nil {
		return nil, err
	}

	return newSession(cfg, seeds, newHTTPTransport(&cfg)), nil
}

// newSession expects a validated config.
func newSession(cfg Config, seeds []rpc.Endpoint, transport Transport) *Session {
	logger := log.Named("session")

	return &Session{
		cfg:             cfg,
		seeds:           seeds,
		transport:       transport,
		router:          newDeviceRouter(logger, seeds),
		limiter:         NewFlowLimiter(cfg.FlowLimiter),
		logger:          logger,
		fsm:             fsm.NewFSM(stateCreated, sessionEvents, sessionCallbacks),
		lock:            sync.RWMutex{},
		connections:     make(map[rpc.Endpoint]*nodeConnection),
		defaultEndpoint: rpc.Endpoint{Host: "", Port: 0},
	}
}

// Open connects the session to the first reachable seed endpoint. Seeds are
// tried in order; connection failures move on to the next seed while any
// node-reported failure (for example bad credentials) surfaces immediately.
func (s *Session) Open(ctx context.Context) error {
	switch s.fsm.Current() {
	case stateOpen:
		return ErrSessionAlreadyOpen
	case stateClosed:
		return ErrSessionClosed
	}

	var lastErr error
	for _, seed := range s.seeds {
		conn, err := openNodeConnection(ctx, s.transport, s.logger, seed, s.cfg.Username, s.cfg.Password)
		if err != nil {
			var connErr *ConnectionError
			if errors.As(err, &connErr) {
				s.logger.Warn("seed endpoint unreachable",
					zap.String("endpoint", seed.String()),
					zap.Error(err))
				lastErr = err
				continue
			}
			return err
		}

		s.lock.Lock()
		s.connections[seed] = conn
		s.defaultEndpoint = seed
		s.lock.Unlock()

		if err := s.fsm.Event(eventOpen); err != nil {
			return ErrSessionAlreadyOpen
		}
		return nil
	}

	return lastErr
}

// Close releases every node connection concurrently. The session ends up
// closed even when some node refuses the goodbye.
func (s *Session) Close(ctx context.Context) error {
	if err := s.fsm.Event(eventClose); err != nil {
		if s.fsm.Current() == stateClosed {
			return ErrSessionClosed
		}
		return ErrSessionNotOpen
	}

	s.lock.Lock()
	connections := s.connections
	s.connections = make(map[rpc.Endpoint]*nodeConnection)
	s.lock.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, conn := range connections {
		conn := conn
		g.Go(func() error {
			if err := conn.close(ctx); err != nil {
				s.logger.Error("close node session failed",
					zap.String("endpoint", conn.endpoint.String()),
					zap.Error(err))
				return err
			}
			return nil
		})
	}

	closeErr := g.Wait()
	if err := s.transport.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	return closeErr
}

// ExecuteStatement runs one statement on the session's default node. When
// the reply carries redirect guidance the node has already handled the
// statement and names a better target, so the session retargets its default
// node for follow-up operations instead of re-executing.
func (s *Session) ExecuteStatement(ctx context.Context, statement string) error {
	if err := s.allow(); err != nil {
		return err
	}

	conn, err := s.defaultConnection(ctx)
	if err != nil {
		return err
	}

	err = conn.executeStatement(ctx, statement)
	var redirect *RedirectError
	if errors.As(err, &redirect) {
		s.retargetDefault(ctx, redirect)
		return nil
	}
	return err
}

// InsertRecord writes one row for one device, routed through the device
// cache. Redirect guidance pins the device's owner so follow-up writes go
// direct.
func (s *Session) InsertRecord(ctx context.Context, record Record) error {
	if err := s.allow(); err != nil {
		return err
	}
	if err := record.validate(); err != nil {
		return err
	}

	endpoint := s.router.EndpointFor(record.Device)
	conn, err := s.connectionTo(ctx, endpoint)
	if err != nil {
		return err
	}

	err = conn.insertRecord(ctx, record)
	var redirect *RedirectError
	if errors.As(err, &redirect) {
		s.applyRedirect(record.Device, redirect)
		return nil
	}
	return err
}

// InsertTablets writes tablets for multiple devices. Tablets are grouped by
// the owner the device cache assigns and the groups are dispatched
// concurrently. Per-device redirect guidance merges into the cache.
func (s *Session) InsertTablets(ctx context.Context, tablets []Tablet) error {
	if err := s.allow(); err != nil {
		return err
	}
	if len(tablets) == 0 {
		return nil
	}
	for _, tablet := range tablets {
		if err := tablet.validate(); err != nil {
			return err
		}
	}

	groups := make(map[rpc.Endpoint][]Tablet, len(tablets))
	for _, tablet := range tablets {
		endpoint := s.router.EndpointFor(tablet.Device)
		groups[endpoint] = append(groups[endpoint], tablet)
	}

	g, _ := errgroup.WithContext(ctx)
	for endpoint, group := range groups {
		endpoint, group := endpoint, group
		g.Go(func() error {
			conn, err := s.connectionTo(ctx, endpoint)
			if err != nil {
				s.logger.Error("insert tablets group failed",
					zap.String("endpoint", endpoint.String()),
					zap.Error(err))
				return err
			}

			err = conn.insertTablets(ctx, group)
			var redirect *RedirectError
			if errors.As(err, &redirect) {
				s.applyRedirect("", redirect)
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// DeleteData removes data of the given time series paths in the closed
// time range, through the statement surface.
func (s *Session) DeleteData(ctx context.Context, paths []string, startTime, endTime int64) error {
	if len(paths) == 0 {
		return ErrInvalidWrite.WithCausef("delete without paths")
	}

	statement := fmt.Sprintf("delete from %s where time >= %d and time <= %d",
		strings.Join(paths, ","), startTime, endTime)
	return s.ExecuteStatement(ctx, statement)
}

// State reports the lifecycle state of the session.
func (s *Session) State() string {
	return s.fsm.Current()
}

// DefaultEndpoint returns the node statements currently target.
func (s *Session) DefaultEndpoint() rpc.Endpoint {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.defaultEndpoint
}

// Routes copies the current device routing cache.
func (s *Session) Routes() map[string]rpc.Endpoint {
	return s.router.Snapshot()
}

// UpdateFlowLimiter reconfigures the flow limiter gating this session.
func (s *Session) UpdateFlowLimiter(config LimiterConfig) error {
	return s.limiter.UpdateLimiter(config)
}

func (s *Session) allow() error {
	switch s.fsm.Current() {
	case stateOpen:
	case stateClosed:
		return ErrSessionClosed
	default:
		return ErrSessionNotOpen
	}

	if !s.limiter.Allow() {
		return ErrThrottled
	}
	return nil
}

// retargetDefault moves the session's default node to the redirect target.
// The old connection stays registered for devices still routed to it.
func (s *Session) retargetDefault(ctx context.Context, redirect *RedirectError) {
	if !s.cfg.EnableRedirection {
		return
	}

	node, ok := redirect.RedirectNode()
	assert.Assertf(ok, "statement redirect must carry a single node")

	if _, err := s.connectionTo(ctx, node); err != nil {
		s.logger.Warn("redirect target unreachable, default node kept",
			zap.String("endpoint", node.String()),
			zap.Error(err))
		return
	}

	s.lock.Lock()
	s.defaultEndpoint = node
	s.lock.Unlock()

	s.logger.Info("session default node retargeted", zap.String("endpoint", node.String()))
}

func (s *Session) applyRedirect(device string, redirect *RedirectError) {
	if !s.cfg.EnableRedirection {
		return
	}
	s.router.ApplyRedirect(device, redirect)
}

func (s *Session) defaultConnection(ctx context.Context) (*nodeConnection, error) {
	s.lock.RLock()
	endpoint := s.defaultEndpoint
	s.lock.RUnlock()
	return s.connectionTo(ctx, endpoint)
}

// connectionTo returns the registered connection for the endpoint, opening
// one on demand for endpoints redirect guidance introduced.
func (s *Session) connectionTo(ctx context.Context, endpoint rpc.Endpoint) (*nodeConnection, error) {
	s.lock.RLock()
	conn, ok := s.connections[endpoint]
	s.lock.RUnlock()
	if ok {
		return conn, nil
	}

	conn, err := openNodeConnection(ctx, s.transport, s.logger, endpoint, s.cfg.Username, s.cfg.Password)
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	if existing, ok := s.connections[endpoint]; ok {
		s.lock.Unlock()
		// Lost the race to another goroutine; release the extra handle.
		if err := conn.close(ctx); err != nil {
			s.logger.Warn("close redundant node session failed",
				zap.String("endpoint", endpoint.String()),
				zap.Error(err))
		}
		return existing, nil
	}
	s.connections[endpoint] = conn
	s.lock.Unlock()

	return conn, nil
}
