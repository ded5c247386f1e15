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
	"strings"

	"github.com/lizhizhou/iotdb/rpc"
)

// VerifySuccess turns a node-reported status into an error value. Plain
// success and the redirection recommendation pass. A multi-operation status
// passes only if every sub status passes, otherwise the failing sub
// messages are aggregated into one error.
func VerifySuccess(status rpc.Status) error {
	if status.Code == rpc.MultipleError {
		return verifySubStatus(status.SubStatus)
	}

	if status.Code == rpc.Success || status.Code == rpc.RedirectionRecommend {
		return nil
	}

	return NewStatementExecutionError(status)
}

func verifySubStatus(subStatus []rpc.Status) error {
	messages := make([]string, 0, len(subStatus))
	for _, sub := range subStatus {
		if sub.Code == rpc.Success || sub.Code == rpc.RedirectionRecommend {
			continue
		}
		messages = append(messages, sub.Message)
	}

	if len(messages) == 0 {
		return nil
	}

	aggregate := rpc.NewStatusWithMessage(rpc.MultipleError, strings.Join(messages, "; "))
	aggregate.SubStatus = subStatus
	return NewStatementExecutionError(aggregate)
}

// VerifyWithRedirection behaves like VerifySuccess and additionally raises
// a single-target RedirectError when the status carries a redirect node.
// A failure always wins over the routing guidance.
func VerifyWithRedirection(status rpc.Status) error {
	if err := VerifySuccess(status); err != nil {
		return err
	}

	if status.RedirectNode != nil {
		return NewRedirectError(*status.RedirectNode)
	}

	return nil
}

// VerifyWithRedirectionForMultiDevices behaves like VerifySuccess and
// additionally collects per-device redirect nodes from the sub statuses of
// a multi-device operation. SubStatus entries align with the devices slice;
// a shorter side is treated as an aligned prefix.
func VerifyWithRedirectionForMultiDevices(status rpc.Status, devices []string) error {
	if err := VerifySuccess(status); err != nil {
		return err
	}

	if status.Code != rpc.MultipleError && status.Code != rpc.RedirectionRecommend {
		return nil
	}

	n := len(status.SubStatus)
	if len(devices) < n {
		n = len(devices)
	}

	deviceEndpoints := make(map[string]rpc.Endpoint, n)
	for i := 0; i < n; i++ {
		if node := status.SubStatus[i].RedirectNode; node != nil {
			deviceEndpoints[devices[i]] = *node
		}
	}

	if len(deviceEndpoints) > 0 {
		return NewDeviceRedirectError(deviceEndpoints)
	}

	return nil
}
