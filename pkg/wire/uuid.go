// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import (
	"github.com/google/uuid"
)

// ParseUUIDString parses a canonical hyphenated UUID string (as produced by
// the server's materialize()/toUUID() and by S7's literal round-trip) into
// the 16 raw bytes the UUID column type's binary codec moves around.
func ParseUUIDString(s string) ([16]byte, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}, err
	}
	return [16]byte(id), nil
}

// FormatUUIDBytes renders the 16 raw bytes a UUID column decodes into the
// same canonical hyphenated string representation the server prints.
func FormatUUIDBytes(b [16]byte) string {
	return uuid.UUID(b).String()
}
