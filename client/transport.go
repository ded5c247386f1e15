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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lizhizhou/iotdb/pkg/log"
	"github.com/lizhizhou/iotdb/rpc"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

// Transport sends one request to one node endpoint and decodes the reply
// into response. Implementations map every transport-level failure to a
// *ConnectionError.
type Transport interface {
	Call(ctx context.Context, endpoint rpc.Endpoint, path string, request, response any) error
	Close() error
}

// httpTransport talks JSON over HTTP to the node REST surface.
type httpTransport struct {
	client *http.Client
	logger *zap.Logger
}

func newHTTPTransport(cfg *Config) *httpTransport {
	return &httpTransport{
		client: &http.Client{
			Timeout: cfg.RequestTimeout(),
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.ConnectTimeout(),
					Deadline:  time.Time{},
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		logger: log.Named("transport"),
	}
}

func (t *httpTransport) Call(ctx context.Context, endpoint rpc.Endpoint, path string, request, response any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return NewConnectionError("", err, "")
	}

	url := fmt.Sprintf("http://%s%s", endpoint, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewConnectionError("", err, "")
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, requestID)

	t.logger.Debug("send node request",
		zap.String("endpoint", endpoint.String()),
		zap.String("path", path),
		zap.String("requestID", requestID))

	resp, err := t.client.Do(req)
	if err != nil {
		return NewConnectionError("", err, "")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return NewConnectionError(
			fmt.Sprintf("unexpected http status %q from %s (request %s)", resp.Status, endpoint, requestID),
			nil, "")
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return NewConnectionError("", err, "")
	}

	return nil
}

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
