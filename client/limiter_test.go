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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	initialLimiterRate     = 10 * 1000
	initialLimiterCapacity = 1000
	updatedLimiterRate     = 100 * 1000
	updatedLimiterCapacity = 100 * 1000
)

func TestFlowLimiter(t *testing.T) {
	re := require.New(t)
	flowLimiter := NewFlowLimiter(LimiterConfig{
		Enable: true,
		Limit:  initialLimiterRate,
		Burst:  initialLimiterCapacity,
	})

	for i := 0; i < initialLimiterCapacity; i++ {
		flag := flowLimiter.Allow()
		re.Equal(true, flag)
	}

	time.Sleep(time.Millisecond)
	for i := 0; i < initialLimiterRate/1000; i++ {
		flag := flowLimiter.Allow()
		re.Equal(true, flag)
	}

	err := flowLimiter.UpdateLimiter(LimiterConfig{
		Enable: true,
		Limit:  updatedLimiterRate,
		Burst:  updatedLimiterCapacity,
	})
	re.NoError(err)

	config := flowLimiter.GetConfig()
	re.Equal(updatedLimiterRate, config.Limit)
	re.Equal(updatedLimiterCapacity, config.Burst)
	re.Equal(true, config.Enable)

	time.Sleep(time.Millisecond)
	for i := 0; i < updatedLimiterRate/1000; i++ {
		flag := flowLimiter.Allow()
		re.Equal(true, flag)
	}
}

func TestFlowLimiterDisabled(t *testing.T) {
	re := require.New(t)
	flowLimiter := NewFlowLimiter(LimiterConfig{Enable: false, Limit: 1, Burst: 1})

	for i := 0; i < 100; i++ {
		re.True(flowLimiter.Allow())
	}
}
