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
	"sync"

	"github.com/lizhizhou/iotdb/pkg/assert"
	"github.com/lizhizhou/iotdb/rpc"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

type hasher struct{}

func (h hasher) Sum64(data []byte) uint64 {
	return murmur3.Sum64(data)
}

// deviceRouter decides which node a device-addressed operation goes to.
// The cache holds only what redirect guidance carried; a device without a
// cached owner maps to a stable hash pick over the seed endpoints.
type deviceRouter struct {
	logger *zap.Logger
	hash   hasher
	seeds  []rpc.Endpoint

	// RWMutex is used to protect the routes map.
	lock   sync.RWMutex
	routes map[string]rpc.Endpoint
}

func newDeviceRouter(logger *zap.Logger, seeds []rpc.Endpoint) *deviceRouter {
	assert.Assertf(len(seeds) > 0, "device router requires at least one seed endpoint")

	return &deviceRouter{
		logger: logger,
		hash:   hasher{},
		seeds:  seeds,
		lock:   sync.RWMutex{},
		routes: make(map[string]rpc.Endpoint),
	}
}

// EndpointFor returns the cached owner of the device, falling back to the
// seed pick.
func (r *deviceRouter) EndpointFor(device string) rpc.Endpoint {
	r.lock.RLock()
	endpoint, ok := r.routes[device]
	r.lock.RUnlock()
	if ok {
		return endpoint
	}

	idx := r.hash.Sum64([]byte(device)) % uint64(len(r.seeds))
	return r.seeds[idx]
}

// ApplyRedirect feeds redirect guidance into the cache. device names the
// device the operation addressed and is required for single-target
// guidance.
func (r *deviceRouter) ApplyRedirect(device string, redirect *RedirectError) {
	if node, ok := redirect.RedirectNode(); ok {
		assert.Assertf(len(device) > 0, "single redirect needs the addressed device")
		r.Pin(device, node)
		return
	}

	r.Merge(redirect.DeviceEndpoints())
}

// Pin records the owning endpoint for one device.
func (r *deviceRouter) Pin(device string, endpoint rpc.Endpoint) {
	r.lock.Lock()
	r.routes[device] = endpoint
	r.lock.Unlock()

	r.logger.Debug("device route pinned",
		zap.String("device", device),
		zap.String("endpoint", endpoint.String()))
}

// Merge records the owning endpoints of a per-device redirect.
func (r *deviceRouter) Merge(deviceEndpoints map[string]rpc.Endpoint) {
	r.lock.Lock()
	for device, endpoint := range deviceEndpoints {
		r.routes[device] = endpoint
	}
	r.lock.Unlock()

	r.logger.Debug("device routes merged", zap.Int("devices", len(deviceEndpoints)))
}

// Forget drops the cached owner of the device so it falls back to the seed
// pick.
func (r *deviceRouter) Forget(device string) {
	r.lock.Lock()
	delete(r.routes, device)
	r.lock.Unlock()
}

// Snapshot copies the current device routes.
func (r *deviceRouter) Snapshot() map[string]rpc.Endpoint {
	r.lock.RLock()
	defer r.lock.RUnlock()

	routes := make(map[string]rpc.Endpoint, len(r.routes))
	for device, endpoint := range r.routes {
		routes[device] = endpoint
	}
	return routes
}
