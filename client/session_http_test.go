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
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/lizhizhou/iotdb/client"
	"github.com/lizhizhou/iotdb/rpc"
	"github.com/stretchr/testify/require"
)

// testNode is an in-process data node speaking the REST surface the client
// expects. Redirect rules make it answer chosen devices or statements with
// routing guidance pointing at another node.
type testNode struct {
	t      *testing.T
	server *httptest.Server

	lock              sync.Mutex
	opened            int
	closed            int
	statements        []string
	devices           []string
	deviceRedirects   map[string]rpc.Endpoint
	statementRedirect *rpc.Endpoint
}

func startTestNode(t *testing.T) *testNode {
	node := &testNode{t: t, deviceRedirects: make(map[string]rpc.Endpoint)}

	router := httprouter.New()
	router.POST("/rest/v1/session/open", node.handleOpen)
	router.POST("/rest/v1/session/close", node.handleClose)
	router.POST("/rest/v1/statement/execute", node.handleStatement)
	router.POST("/rest/v1/record/insert", node.handleInsertRecord)
	router.POST("/rest/v1/tablets/insert", node.handleInsertTablets)

	node.server = httptest.NewServer(router)
	t.Cleanup(node.server.Close)
	return node
}

func (n *testNode) endpoint() rpc.Endpoint {
	endpoint, err := rpc.ParseEndpoint(strings.TrimPrefix(n.server.URL, "http://"))
	require.NoError(n.t, err)
	return endpoint
}

func (n *testNode) redirectDevice(device string, target rpc.Endpoint) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.deviceRedirects[device] = target
}

func (n *testNode) redirectStatements(target rpc.Endpoint) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.statementRedirect = &target
}

func (n *testNode) openedSessions() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.opened
}

func (n *testNode) closedSessions() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.closed
}

func (n *testNode) statementsSeen() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]string{}, n.statements...)
}

func (n *testNode) devicesSeen() []string {
	n.lock.Lock()
	defer n.lock.Unlock()
	return append([]string{}, n.devices...)
}

func (n *testNode) reply(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func decode(w http.ResponseWriter, r *http.Request, request any) bool {
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

type nodeStatusReply struct {
	Status rpc.Status `json:"status"`
}

type nodeOpenReply struct {
	Status    rpc.Status `json:"status"`
	SessionID string     `json:"sessionId"`
}

func (n *testNode) handleOpen(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	n.lock.Lock()
	n.opened++
	id := fmt.Sprintf("node-session-%d", n.opened)
	n.lock.Unlock()

	n.reply(w, nodeOpenReply{Status: rpc.NewStatus(rpc.Success), SessionID: id})
}

func (n *testNode) handleClose(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if !decode(w, r, &req) {
		return
	}

	n.lock.Lock()
	n.closed++
	n.lock.Unlock()

	n.reply(w, nodeStatusReply{Status: rpc.NewStatus(rpc.Success)})
}

func (n *testNode) handleStatement(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		SessionID string `json:"sessionId"`
		Statement string `json:"statement"`
	}
	if !decode(w, r, &req) {
		return
	}

	n.lock.Lock()
	n.statements = append(n.statements, req.Statement)
	redirect := n.statementRedirect
	n.lock.Unlock()

	status := rpc.NewStatus(rpc.Success)
	if redirect != nil {
		status = rpc.NewStatus(rpc.RedirectionRecommend)
		status.RedirectNode = redirect
	}
	n.reply(w, nodeStatusReply{Status: status})
}

func (n *testNode) handleInsertRecord(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Record struct {
			Device string `json:"device"`
		} `json:"record"`
	}
	if !decode(w, r, &req) {
		return
	}

	n.lock.Lock()
	n.devices = append(n.devices, req.Record.Device)
	target, redirected := n.deviceRedirects[req.Record.Device]
	n.lock.Unlock()

	status := rpc.NewStatus(rpc.Success)
	if redirected {
		status = rpc.NewStatus(rpc.RedirectionRecommend)
		status.RedirectNode = &target
	}
	n.reply(w, nodeStatusReply{Status: status})
}

func (n *testNode) handleInsertTablets(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Tablets []struct {
			Device string `json:"device"`
		} `json:"tablets"`
	}
	if !decode(w, r, &req) {
		return
	}

	n.lock.Lock()
	redirected := false
	subs := make([]rpc.Status, 0, len(req.Tablets))
	for _, tablet := range req.Tablets {
		n.devices = append(n.devices, tablet.Device)
		sub := rpc.NewStatus(rpc.Success)
		if target, ok := n.deviceRedirects[tablet.Device]; ok {
			sub.RedirectNode = &target
			redirected = true
		}
		subs = append(subs, sub)
	}
	n.lock.Unlock()

	status := rpc.NewStatus(rpc.Success)
	if redirected {
		status = rpc.NewStatus(rpc.RedirectionRecommend)
		status.SubStatus = subs
	}
	n.reply(w, nodeStatusReply{Status: status})
}

func TestSessionOverHTTP(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	node := startTestNode(t)
	cfg := client.DefaultConfig()
	cfg.Endpoints = node.endpoint().String()

	session, err := client.NewSession(cfg)
	re.NoError(err)
	re.NoError(session.Open(ctx))
	re.Equal(node.endpoint(), session.DefaultEndpoint())

	re.NoError(session.ExecuteStatement(ctx, "create database root.sg1"))

	record := client.Record{
		Device:       "root.sg1.d1",
		Timestamp:    1,
		Measurements: []string{"temperature", "status"},
		Values:       []any{36.5, "on"},
	}
	re.NoError(session.InsertRecord(ctx, record))

	tablets := []client.Tablet{
		{
			Device:       "root.sg1.d1",
			Measurements: []string{"temperature"},
			Timestamps:   []int64{2, 3},
			Values:       [][]any{{37.0}, {37.5}},
		},
		{
			Device:       "root.sg1.d2",
			Measurements: []string{"temperature"},
			Timestamps:   []int64{2},
			Values:       [][]any{{21.0}},
		},
	}
	re.NoError(session.InsertTablets(ctx, tablets))

	re.NoError(session.DeleteData(ctx, []string{"root.sg1.d1.temperature"}, 1, 3))

	re.NoError(session.Close(ctx))
	re.ErrorIs(session.Close(ctx), client.ErrSessionClosed)

	re.Equal(1, node.openedSessions())
	re.Equal(1, node.closedSessions())
	re.Contains(node.statementsSeen(), "create database root.sg1")
	re.Contains(node.statementsSeen(), "delete from root.sg1.d1.temperature where time >= 1 and time <= 3")
	re.Contains(node.devicesSeen(), "root.sg1.d1")
	re.Contains(node.devicesSeen(), "root.sg1.d2")
}

func TestSessionOpenFailsOverToLiveSeed(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	node := startTestNode(t)
	cfg := client.DefaultConfig()
	// Nothing listens on port 1; the session must move on to the live seed.
	cfg.Endpoints = "127.0.0.1:1," + node.endpoint().String()

	session, err := client.NewSession(cfg)
	re.NoError(err)
	re.NoError(session.Open(ctx))
	re.Equal(node.endpoint(), session.DefaultEndpoint())
	re.NoError(session.Close(ctx))
}

func TestSessionRedirectOverHTTP(t *testing.T) {
	re := require.New(t)
	ctx := context.Background()

	owner := startTestNode(t)
	seed := startTestNode(t)
	seed.redirectDevice("root.sg1.d1", owner.endpoint())
	seed.redirectStatements(owner.endpoint())

	cfg := client.DefaultConfig()
	cfg.Endpoints = seed.endpoint().String()

	session, err := client.NewSession(cfg)
	re.NoError(err)
	re.NoError(session.Open(ctx))

	record := client.Record{
		Device:       "root.sg1.d1",
		Timestamp:    1,
		Measurements: []string{"temperature"},
		Values:       []any{36.5},
	}
	re.NoError(session.InsertRecord(ctx, record))
	re.Equal(map[string]rpc.Endpoint{"root.sg1.d1": owner.endpoint()}, session.Routes())

	re.NoError(session.InsertRecord(ctx, record))
	re.Equal([]string{"root.sg1.d1"}, seed.devicesSeen())
	re.Equal([]string{"root.sg1.d1"}, owner.devicesSeen())

	re.NoError(session.ExecuteStatement(ctx, "flush"))
	re.Equal(owner.endpoint(), session.DefaultEndpoint())
	re.NoError(session.ExecuteStatement(ctx, "show version"))
	re.Equal([]string{"flush"}, seed.statementsSeen())
	re.Equal([]string{"show version"}, owner.statementsSeen())

	// The owner connection opened for the record write is reused throughout.
	re.Equal(1, owner.openedSessions())

	re.NoError(session.Close(ctx))
	re.Equal(1, seed.closedSessions())
	re.Equal(1, owner.closedSessions())
}
