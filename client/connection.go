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

	"github.com/lizhizhou/iotdb/rpc"
	"go.uber.org/zap"
)

// Node REST surface the client talks to.
const (
	openSessionPath      = "/rest/v1/session/open"
	closeSessionPath     = "/rest/v1/session/close"
	executeStatementPath = "/rest/v1/statement/execute"
	insertRecordPath     = "/rest/v1/record/insert"
	insertTabletsPath    = "/rest/v1/tablets/insert"
)

type openSessionRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type openSessionResponse struct {
	Status    rpc.Status `json:"status"`
	SessionID string     `json:"sessionId"`
}

type closeSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type executeStatementRequest struct {
	SessionID string `json:"sessionId"`
	Statement string `json:"statement"`
}

type insertRecordRequest struct {
	SessionID string `json:"sessionId"`
	Record    Record `json:"record"`
}

type insertTabletsRequest struct {
	SessionID string   `json:"sessionId"`
	Tablets   []Tablet `json:"tablets"`
}

type statusResponse struct {
	Status rpc.Status `json:"status"`
}

// nodeConnection is one opened session handle on one node. It decodes node
// replies and turns their statuses into the typed signals; routing policy
// stays with the session.
type nodeConnection struct {
	endpoint  rpc.Endpoint
	sessionID string
	transport Transport
	logger    *zap.Logger
}

func openNodeConnection(ctx context.Context, transport Transport, logger *zap.Logger, endpoint rpc.Endpoint, username, password string) (*nodeConnection, error) {
	req := openSessionRequest{Username: username, Password: password}

	var resp openSessionResponse
	if err := transport.Call(ctx, endpoint, openSessionPath, req, &resp); err != nil {
		return nil, err
	}
	if err := VerifySuccess(resp.Status); err != nil {
		return nil, err
	}

	logger.Info("node session opened",
		zap.String("endpoint", endpoint.String()),
		zap.String("sessionID", resp.SessionID))

	return &nodeConnection{
		endpoint:  endpoint,
		sessionID: resp.SessionID,
		transport: transport,
		logger:    logger,
	}, nil
}

func (c *nodeConnection) close(ctx context.Context) error {
	req := closeSessionRequest{SessionID: c.sessionID}

	var resp statusResponse
	if err := c.transport.Call(ctx, c.endpoint, closeSessionPath, req, &resp); err != nil {
		return err
	}
	if err := VerifySuccess(resp.Status); err != nil {
		return err
	}

	c.logger.Info("node session closed", zap.String("endpoint", c.endpoint.String()))
	return nil
}

func (c *nodeConnection) executeStatement(ctx context.Context, statement string) error {
	req := executeStatementRequest{SessionID: c.sessionID, Statement: statement}

	var resp statusResponse
	if err := c.transport.Call(ctx, c.endpoint, executeStatementPath, req, &resp); err != nil {
		return err
	}
	return VerifyWithRedirection(resp.Status)
}

func (c *nodeConnection) insertRecord(ctx context.Context, record Record) error {
	req := insertRecordRequest{SessionID: c.sessionID, Record: record}

	var resp statusResponse
	if err := c.transport.Call(ctx, c.endpoint, insertRecordPath, req, &resp); err != nil {
		return err
	}
	return VerifyWithRedirection(resp.Status)
}

func (c *nodeConnection) insertTablets(ctx context.Context, tablets []Tablet) error {
	req := insertTabletsRequest{SessionID: c.sessionID, Tablets: tablets}

	devices := make([]string, 0, len(tablets))
	for _, tablet := range tablets {
		devices = append(devices, tablet.Device)
	}

	var resp statusResponse
	if err := c.transport.Call(ctx, c.endpoint, insertTabletsPath, req, &resp); err != nil {
		return err
	}
	return VerifyWithRedirectionForMultiDevices(resp.Status, devices)
}
