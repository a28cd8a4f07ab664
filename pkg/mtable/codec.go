// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package mtable

import (
	"bytes"
	"encoding/gob"
)

type initEntries struct {
	Entries []InitEntry
}

func encodeEntries(entries []InitEntry) ([]byte, error) {
	var buffer bytes.Buffer
	//
	if err := gob.NewEncoder(&buffer).Encode(initEntries{entries}); err != nil {
		return nil, err
	}
	//
	return buffer.Bytes(), nil
}

func decodeEntries(data []byte) ([]InitEntry, error) {
	var entries initEntries
	//
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&entries); err != nil {
		return nil, err
	}
	//
	return entries.Entries, nil
}
