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

import "fmt"

// nestedType is wire-identical to Array(Tuple(...)) but carries the
// caller-given member names and a distinct canonical name, per distilled
// spec §4.3/§4.4. It embeds an *arrayType over a named *tupleType so the
// bulk codec is inherited rather than duplicated.
type nestedType struct {
	*arrayType
	memberNames []string
}

func newNestedType(memberNames []string, fields []ColumnType) *nestedType {
	tuple := newTupleType(fields)
	tuple.names = append([]string(nil), memberNames...)
	return &nestedType{
		arrayType:   &arrayType{inner: tuple},
		memberNames: memberNames,
	}
}

func (t *nestedType) Name() string {
	tuple := t.inner.(*tupleType)
	s := "Nested("
	for i, f := range tuple.fields {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s %s", t.memberNames[i], f.Name())
	}
	return s + ")"
}
