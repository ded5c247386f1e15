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
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/lizhizhou/iotdb/pkg/log"
	"github.com/lizhizhou/iotdb/rpc"
	"github.com/pelletier/go-toml/v2"
)

const (
	defaultEndpoints = "127.0.0.1:6667"
	defaultUsername  = "root"
	defaultPassword  = "root"

	defaultConnectTimeoutMs int64 = 5 * 1000
	defaultRequestTimeoutMs int64 = 10 * 1000

	defaultFlowLimit = 10 * 1000
	defaultFlowBurst = 1000

	envPrefix = "IOTDB_"
)

// LimiterConfig controls the client-side flow limiter gating outgoing
// operations.
type LimiterConfig struct {
	Enable bool `toml:"enable" json:"enable" env:"ENABLE"`
	// Limit is the sustained rate of operations per second.
	Limit int `toml:"limit" json:"limit" env:"LIMIT"`
	// Burst is the maximum number of operations allowed at once.
	Burst int `toml:"burst" json:"burst" env:"BURST"`
}

type Config struct {
	Log log.Config `toml:"log" json:"log" envPrefix:"LOG_"`

	// Endpoints is the comma separated "host:port" seed list of cluster
	// nodes the session may open against.
	Endpoints string `toml:"endpoints" json:"endpoints" env:"ENDPOINTS"`
	Username  string `toml:"username" json:"username" env:"USERNAME"`
	Password  string `toml:"password" json:"password" env:"PASSWORD"`

	ConnectTimeoutMs int64 `toml:"connect-timeout-ms" json:"connect-timeout-ms" env:"CONNECT_TIMEOUT_MS"`
	RequestTimeoutMs int64 `toml:"request-timeout-ms" json:"request-timeout-ms" env:"REQUEST_TIMEOUT_MS"`

	// EnableRedirection controls whether redirect guidance from nodes
	// retargets follow-up operations and feeds the routing cache. When
	// disabled the guidance is discarded.
	EnableRedirection bool `toml:"enable-redirection" json:"enable-redirection" env:"ENABLE_REDIRECTION"`

	FlowLimiter LimiterConfig `toml:"flow-limiter" json:"flow-limiter" envPrefix:"FLOW_LIMITER_"`
}

func DefaultConfig() Config {
	return Config{
		Log: log.Config{
			Level: log.DefaultLogLevel,
			File:  log.DefaultLogFile,
		},
		Endpoints:         defaultEndpoints,
		Username:          defaultUsername,
		Password:          defaultPassword,
		ConnectTimeoutMs:  defaultConnectTimeoutMs,
		RequestTimeoutMs:  defaultRequestTimeoutMs,
		EnableRedirection: true,
		FlowLimiter: LimiterConfig{
			Enable: false,
			Limit:  defaultFlowLimit,
			Burst:  defaultFlowBurst,
		},
	}
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// SeedEndpoints parses the configured endpoint list.
func (c *Config) SeedEndpoints() ([]rpc.Endpoint, error) {
	return rpc.ParseEndpoints(c.Endpoints)
}

// ValidateAndAdjust validates the config fields and adjusts some fields which should be adjusted.
// Return error if any field is invalid.
func (c *Config) ValidateAndAdjust() error {
	if _, err := c.SeedEndpoints(); err != nil {
		return ErrInvalidConfig.WithCause(err)
	}

	if len(c.Username) == 0 {
		return ErrInvalidConfig.WithCausef("empty username")
	}

	if c.ConnectTimeoutMs <= 0 {
		c.ConnectTimeoutMs = defaultConnectTimeoutMs
	}
	if c.RequestTimeoutMs <= 0 {
		c.RequestTimeoutMs = defaultRequestTimeoutMs
	}

	if c.FlowLimiter.Enable {
		if c.FlowLimiter.Limit <= 0 {
			c.FlowLimiter.Limit = defaultFlowLimit
		}
		if c.FlowLimiter.Burst <= 0 {
			c.FlowLimiter.Burst = defaultFlowBurst
		}
	}

	return nil
}

// LoadConfig reads a toml file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, ErrInvalidConfig.WithCause(err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, ErrInvalidConfig.WithCausef("parse %s: %v", path, err)
	}

	return cfg, nil
}

// OverrideFromEnv applies IOTDB_ prefixed environment variables on top of
// the current values.
func (c *Config) OverrideFromEnv() error {
	if err := env.Parse(c, env.Options{Prefix: envPrefix}); err != nil {
		return ErrInvalidConfig.WithCause(err)
	}
	return nil
}
