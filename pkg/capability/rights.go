// Copyright 2026 The gVisor Authors.
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

package capability

import "strings"

// Rights is the access mask carried by a capability.
type Rights uint32

// Rights bits.
const (
	Read Rights = 1 << iota
	Write
	Execute
	Grant

	// All is every right.
	All = Read | Write | Execute | Grant
)

// Contains returns true if r includes every right in other.
func (r Rights) Contains(other Rights) bool {
	return r&other == other
}

// Valid returns true if r has no undefined bits.
func (r Rights) Valid() bool {
	return r&^All == 0
}

// String implements fmt.Stringer.String.
func (r Rights) String() string {
	if r == 0 {
		return "none"
	}
	var b strings.Builder
	for _, bit := range []struct {
		r Rights
		c byte
	}{{Read, 'r'}, {Write, 'w'}, {Execute, 'x'}, {Grant, 'g'}} {
		if r&bit.r != 0 {
			b.WriteByte(bit.c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
