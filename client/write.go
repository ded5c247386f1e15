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

// Record is a single-device write of one row.
type Record struct {
	Device       string   `json:"device"`
	Timestamp    int64    `json:"timestamp"`
	Measurements []string `json:"measurements"`
	Values       []any    `json:"values"`
}

func (r Record) validate() error {
	if len(r.Device) == 0 {
		return ErrInvalidWrite.WithCausef("record without device")
	}
	if len(r.Measurements) == 0 {
		return ErrInvalidWrite.WithCausef("record without measurements, device:%s", r.Device)
	}
	if len(r.Values) != len(r.Measurements) {
		return ErrInvalidWrite.WithCausef("record values and measurements differ, device:%s, values:%d, measurements:%d",
			r.Device, len(r.Values), len(r.Measurements))
	}
	return nil
}

// Tablet is a multi-row write for one device. Values is row major and every
// row aligns with Measurements.
type Tablet struct {
	Device       string   `json:"device"`
	Measurements []string `json:"measurements"`
	Timestamps   []int64  `json:"timestamps"`
	Values       [][]any  `json:"values"`
}

func (t Tablet) validate() error {
	if len(t.Device) == 0 {
		return ErrInvalidWrite.WithCausef("tablet without device")
	}
	if len(t.Measurements) == 0 {
		return ErrInvalidWrite.WithCausef("tablet without measurements, device:%s", t.Device)
	}
	if len(t.Timestamps) == 0 {
		return ErrInvalidWrite.WithCausef("tablet without rows, device:%s", t.Device)
	}
	if len(t.Values) != len(t.Timestamps) {
		return ErrInvalidWrite.WithCausef("tablet rows and timestamps differ, device:%s, rows:%d, timestamps:%d",
			t.Device, len(t.Values), len(t.Timestamps))
	}
	for i, row := range t.Values {
		if len(row) != len(t.Measurements) {
			return ErrInvalidWrite.WithCausef("tablet row and measurements differ, device:%s, row:%d, columns:%d, measurements:%d",
				t.Device, i, len(row), len(t.Measurements))
		}
	}
	return nil
}
