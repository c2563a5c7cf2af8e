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

package vidl

import (
	"unsafe"
)

// Packed is true if the host stores integers little-endian, so that a
// padding-free struct of integers has the same bytes in memory as on the
// wire. Generated code copies such structs as one span when Packed is set.
var Packed = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// MarshalPacked appends the memory of *v. T must be a padding-free struct or
// array of unsigned integers.
func MarshalPacked[T any](e *Encoder, v *T) {
	e.Raw(unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v)))
}

// UnmarshalPacked fills the memory of *v. T must be a padding-free struct or
// array of unsigned integers.
func UnmarshalPacked[T any](d *Decoder, v *T) {
	n := int(unsafe.Sizeof(*v))
	b := d.Raw(n)
	if b == nil {
		if n != 0 {
			*v = *new(T)
		}
		return
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(v)), n), b)
}

// MakeSlice returns a slice of n zero elements, or nil if n is zero.
func MakeSlice[T any](n int) []T {
	if n == 0 {
		return nil
	}
	return make([]T, n)
}
