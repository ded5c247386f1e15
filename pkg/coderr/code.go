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

package coderr

import "net/http"

type Code int

const (
	Invalid Code = -1

	InvalidParams Code = http.StatusBadRequest
	Internal           = http.StatusInternalServerError
	NotFound           = http.StatusNotFound

	// ClientCodeLowerBound is a bound above which codes describe pure
	// client-side states with no server status counterpart.
	ClientCodeLowerBound = Code(1000)
	IllegalState         = 1001
	Throttled            = 1002
)
