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

// Package rpc holds the wire-level value types shared by the client and the
// cluster nodes: the status code registry, the structured operation status
// and the node endpoint.
package rpc

import "fmt"

// StatusCode identifies the outcome class a node reports for an operation.
// The numbering follows the server side: the 200 band is success, the 300
// band covers statement execution failures, 400 is the redirection
// recommendation, the 500 band covers storage failures and the 600 band
// covers authentication.
type StatusCode int32

const (
	Success             StatusCode = 200
	IncompatibleVersion StatusCode = 201

	UnsupportedOperation  StatusCode = 300
	ExecuteStatementError StatusCode = 301
	MultipleError         StatusCode = 302
	IllegalParameter      StatusCode = 303
	InternalServerError   StatusCode = 305

	RedirectionRecommend StatusCode = 400

	DatabaseNotExist  StatusCode = 500
	WriteProcessError StatusCode = 501

	InitAuthError      StatusCode = 600
	WrongLoginPassword StatusCode = 601
)

var statusCodeNames = map[StatusCode]string{
	Success:               "SUCCESS_STATUS",
	IncompatibleVersion:   "INCOMPATIBLE_VERSION",
	UnsupportedOperation:  "UNSUPPORTED_OPERATION",
	ExecuteStatementError: "EXECUTE_STATEMENT_ERROR",
	MultipleError:         "MULTIPLE_ERROR",
	IllegalParameter:      "ILLEGAL_PARAMETER",
	InternalServerError:   "INTERNAL_SERVER_ERROR",
	RedirectionRecommend:  "REDIRECTION_RECOMMEND",
	DatabaseNotExist:      "DATABASE_NOT_EXIST",
	WriteProcessError:     "WRITE_PROCESS_ERROR",
	InitAuthError:         "INIT_AUTH_ERROR",
	WrongLoginPassword:    "WRONG_LOGIN_PASSWORD",
}

// String returns the server-side name of the code so client logs line up
// with node logs.
func (c StatusCode) String() string {
	if name, ok := statusCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(c))
}

// IsSuccess reports whether the code is the plain success outcome. The
// redirection recommendation is handled separately by the verify helpers
// since it is a success with routing guidance attached.
func (c StatusCode) IsSuccess() bool {
	return c == Success
}

// Status is the structured outcome a node attaches to every operation reply.
// SubStatus carries per-suboperation outcomes for batched operations, and
// RedirectNode carries routing guidance piggybacked on the reply.
type Status struct {
	Code         StatusCode `json:"code"`
	Message      string     `json:"message,omitempty"`
	SubStatus    []Status   `json:"subStatus,omitempty"`
	RedirectNode *Endpoint  `json:"redirectNode,omitempty"`
}

// NewStatus builds a bare status with the given code.
func NewStatus(code StatusCode) Status {
	return Status{Code: code, Message: "", SubStatus: nil, RedirectNode: nil}
}

// NewStatusWithMessage builds a status with the given code and message.
func NewStatusWithMessage(code StatusCode, message string) Status {
	return Status{Code: code, Message: message, SubStatus: nil, RedirectNode: nil}
}
