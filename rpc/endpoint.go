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

package rpc

import (
	"net"
	"strconv"
	"strings"
)

// Endpoint locates one cluster node.
type Endpoint struct {
	Host string `json:"ip"`
	Port int    `json:"port"`
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// IsZero reports whether the endpoint is the unset zero value.
func (e Endpoint) IsZero() bool {
	return e.Host == "" && e.Port == 0
}

// ParseEndpoint parses a "host:port" string into an Endpoint.
func ParseEndpoint(s string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, ErrInvalidEndpoint.WithCause(err)
	}
	if len(host) == 0 {
		return Endpoint{}, ErrInvalidEndpoint.WithCausef("empty host in %q", s)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, ErrInvalidEndpoint.WithCausef("port is not a number in %q", s)
	}
	if port <= 0 || port > 65535 {
		return Endpoint{}, ErrInvalidEndpoint.WithCausef("port out of range in %q", s)
	}

	return Endpoint{Host: host, Port: port}, nil
}

// ParseEndpoints parses a comma separated "host:port" list.
func ParseEndpoints(s string) ([]Endpoint, error) {
	items := strings.Split(s, ",")
	endpoints := make([]Endpoint, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if len(item) == 0 {
			continue
		}

		endpoint, err := ParseEndpoint(item)
		if err != nil {
			return nil, err
		}

		endpoints = append(endpoints, endpoint)
	}

	if len(endpoints) == 0 {
		return nil, ErrEmptyEndpoints.WithCausef("no endpoint in %q", s)
	}

	return endpoints, nil
}
