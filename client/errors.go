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
	"fmt"

	"github.com/lizhizhou/iotdb/pkg/assert"
	"github.com/lizhizhou/iotdb/pkg/coderr"
	"github.com/lizhizhou/iotdb/rpc"
)

var (
	ErrSessionNotOpen     = coderr.NewCodeError(coderr.IllegalState, "session is not open")
	ErrSessionAlreadyOpen = coderr.NewCodeError(coderr.IllegalState, "session is already open")
	ErrSessionClosed      = coderr.NewCodeError(coderr.IllegalState, "session is closed")
	ErrPoolClosed         = coderr.NewCodeError(coderr.IllegalState, "session pool is closed")
	ErrThrottled          = coderr.NewCodeError(coderr.Throttled, "request rejected by flow limiter")
	ErrInvalidConfig      = coderr.NewCodeError(coderr.InvalidParams, "invalid client config")
	ErrInvalidWrite       = coderr.NewCodeError(coderr.InvalidParams, "invalid write payload")
)

var (
	_ error = (*ConnectionError)(nil)
	_ error = (*StatementExecutionError)(nil)
	_ error = (*RedirectError)(nil)
)

// ConnectionError reports that a transport-level connection to a cluster
// node could not be established or used.
type ConnectionError struct {
	text  string
	cause error
}

// NewConnectionError builds a ConnectionError from up to three optional
// descriptive inputs, applying a fixed precedence:
//
//  1. a non-empty reason becomes the error text, everything else is ignored;
//  2. otherwise a non-nil cause supplies the text and is kept for Unwrap;
//  3. otherwise the message is honored only together with a cause, and since
//     any cause was already consumed above, a bare message is dropped and
//     the error carries no text at all.
//
// The message drop in rule 3 mirrors the long-standing behavior of the
// cluster clients this library interoperates with, so callers that pass only
// a message get an empty error text on purpose.
func NewConnectionError(reason string, cause error, message string) *ConnectionError {
	switch {
	case len(reason) > 0:
		return &ConnectionError{text: reason, cause: nil}
	case cause != nil:
		return &ConnectionError{text: cause.Error(), cause: cause}
	default:
		return &ConnectionError{text: "", cause: nil}
	}
}

func (e *ConnectionError) Error() string {
	return e.text
}

// Unwrap exposes the retained cause, if the error was built from one.
func (e *ConnectionError) Unwrap() error {
	return e.cause
}

// StatementExecutionError reports a non-success outcome a node attached to a
// statement or write operation.
type StatementExecutionError struct {
	status    rpc.Status
	hasStatus bool
	text      string
}

// NewStatementExecutionError builds the error from the node-reported status.
// The error text is exactly "<code>: <message>" so both parts can be read
// back from the text alone.
func NewStatementExecutionError(status rpc.Status) *StatementExecutionError {
	return &StatementExecutionError{
		status:    status,
		hasStatus: true,
		text:      fmt.Sprintf("%d: %s", status.Code, status.Message),
	}
}

// NewStatementExecutionErrorWithMessage builds the error from a plain
// client-side message, with no status attached.
func NewStatementExecutionErrorWithMessage(message string) *StatementExecutionError {
	return &StatementExecutionError{
		status:    rpc.Status{Code: 0, Message: "", SubStatus: nil, RedirectNode: nil},
		hasStatus: false,
		text:      message,
	}
}

func (e *StatementExecutionError) Error() string {
	return e.text
}

// Status returns the node-reported status the error was built from.
// The second return is false when the error carries a plain message only.
func (e *StatementExecutionError) Status() (rpc.Status, bool) {
	return e.status, e.hasStatus
}

// RedirectError is routing guidance, not a terminal failure: the node that
// answered wants the operation (or some of its devices) to go to another
// node. Exactly one of the single redirect node and the per-device mapping
// is populated.
type RedirectError struct {
	node            rpc.Endpoint
	hasNode         bool
	deviceEndpoints map[string]rpc.Endpoint
}

// NewRedirectError builds a single-target redirect: the whole follow-up
// operation should go to the given node.
func NewRedirectError(node rpc.Endpoint) *RedirectError {
	return &RedirectError{
		node:            node,
		hasNode:         true,
		deviceEndpoints: nil,
	}
}

// NewDeviceRedirectError builds a multi-target redirect carrying the owning
// endpoint per device id. The mapping must not be empty.
func NewDeviceRedirectError(deviceEndpoints map[string]rpc.Endpoint) *RedirectError {
	assert.Assertf(len(deviceEndpoints) > 0, "device redirect requires at least one device")

	copied := make(map[string]rpc.Endpoint, len(deviceEndpoints))
	for device, endpoint := range deviceEndpoints {
		copied[device] = endpoint
	}

	return &RedirectError{
		node:            rpc.Endpoint{Host: "", Port: 0},
		hasNode:         false,
		deviceEndpoints: copied,
	}
}

func (e *RedirectError) Error() string {
	if e.hasNode {
		return fmt.Sprintf("redirected to node %s", e.node)
	}
	return fmt.Sprintf("redirected for %d device(s)", len(e.deviceEndpoints))
}

// RedirectNode returns the single redirect target. The second return is
// false for a per-device redirect.
func (e *RedirectError) RedirectNode() (rpc.Endpoint, bool) {
	return e.node, e.hasNode
}

// DeviceEndpoints returns the device to endpoint mapping of a per-device
// redirect, or nil for a single-target redirect. The returned map must be
// treated as read only.
func (e *RedirectError) DeviceEndpoints() map[string]rpc.Endpoint {
	return e.deviceEndpoints
}
