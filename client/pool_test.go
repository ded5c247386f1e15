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

package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/lizhizhou/iotdb/client"
	"github.com/lizhizhou/iotdb/pkg/coderr"
	"github.com/stretchr/testify/require"
)

func TestSessionPoolBorrowReturn(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	node := startTestNode(t)
	cfg := client.DefaultConfig()
	cfg.Endpoints = node.endpoint().String()

	pool, err := client.NewSessionPool(cfg, 2)
	re.NoError(err)

	first, err := pool.Borrow(ctx)
	re.NoError(err)
	second, err := pool.Borrow(ctx)
	re.NoError(err)
	re.Equal(2, node.openedSessions())
	re.Equal(client.PoolStats{Capacity: 2, Live: 2, Idle: 0}, pool.Stats())

	// Capacity is exhausted, a third caller has to wait.
	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = pool.Borrow(waitCtx)
	re.ErrorIs(err, context.DeadlineExceeded)

	pool.Return(first)
	again, err := pool.Borrow(ctx)
	re.NoError(err)
	re.Same(first, again)
	re.Equal(2, node.openedSessions())

	pool.Return(again)
	pool.Return(second)
	re.Equal(client.PoolStats{Capacity: 2, Live: 2, Idle: 2}, pool.Stats())

	re.NoError(pool.Close(ctx))
	re.Equal(2, node.closedSessions())
	re.Equal(client.PoolStats{Capacity: 2, Live: 0, Idle: 0}, pool.Stats())

	_, err = pool.Borrow(ctx)
	re.ErrorIs(err, client.ErrPoolClosed)
	re.ErrorIs(pool.Close(ctx), client.ErrPoolClosed)
}

func TestSessionPoolBlockedBorrowWakes(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	node := startTestNode(t)
	cfg := client.DefaultConfig()
	cfg.Endpoints = node.endpoint().String()

	pool, err := client.NewSessionPool(cfg, 1)
	re.NoError(err)

	session, err := pool.Borrow(ctx)
	re.NoError(err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		pool.Return(session)
	}()

	again, err := pool.Borrow(ctx)
	re.NoError(err)
	re.Same(session, again)

	pool.Return(again)
	re.NoError(pool.Close(ctx))
}

func TestSessionPoolReturnAfterClose(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	node := startTestNode(t)
	cfg := client.DefaultConfig()
	cfg.Endpoints = node.endpoint().String()

	pool, err := client.NewSessionPool(cfg, 1)
	re.NoError(err)

	session, err := pool.Borrow(ctx)
	re.NoError(err)

	re.NoError(pool.Close(ctx))
	re.Equal(0, node.closedSessions())

	// The borrowed session comes home to a closed pool and is released.
	pool.Return(session)
	re.Equal(1, node.closedSessions())
	re.Equal("StateClosed", session.State())
	re.Equal(client.PoolStats{Capacity: 1, Live: 0, Idle: 0}, pool.Stats())
}

func TestSessionPoolDeadSessionNotPooled(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	node := startTestNode(t)
	cfg := client.DefaultConfig()
	cfg.Endpoints = node.endpoint().String()

	pool, err := client.NewSessionPool(cfg, 1)
	re.NoError(err)

	session, err := pool.Borrow(ctx)
	re.NoError(err)
	re.NoError(session.Close(ctx))

	pool.Return(session)
	re.Equal(client.PoolStats{Capacity: 1, Live: 0, Idle: 0}, pool.Stats())

	fresh, err := pool.Borrow(ctx)
	re.NoError(err)
	re.NotSame(session, fresh)
	re.Equal(2, node.openedSessions())

	pool.Return(fresh)
	re.NoError(pool.Close(ctx))
}

func TestSessionPoolInvalidCapacity(t *testing.T) {
	re := require.New(t)

	cfg := client.DefaultConfig()
	_, err := client.NewSessionPool(cfg, 0)
	re.True(coderr.Is(err, coderr.InvalidParams))
}
