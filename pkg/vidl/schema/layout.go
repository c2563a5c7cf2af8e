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

package schema

// WireSize returns the encoded size of t if it is the same for every
// value, and false otherwise.
//
// Integers are little-endian with usize encoded as 8 bytes, enums as u32,
// capabilities and buffers as a u32 slot index, arrays as their elements
// back to back, and structs as their fields in order with no padding.
func (f *File) WireSize(t *Type) (int, bool) {
	return f.wireSize(t, 0)
}

func (f *File) wireSize(t *Type, depth int) (int, bool) {
	if depth > len(f.Types)+1 {
		// Only a recursive declaration nests this deep.
		return 0, false
	}
	switch t.Kind {
	case KindU8:
		return 1, true
	case KindU16:
		return 2, true
	case KindU32, KindEnum, KindCap, KindBuffer:
		return 4, true
	case KindU64, KindUsize:
		return 8, true
	case KindUnit:
		return 0, true
	case KindArray:
		n, ok := f.wireSize(t.Elem, depth+1)
		if !ok || t.Len < 0 || (n > 0 && t.Len > maxFixedSize/n) {
			return 0, false
		}
		return n * t.Len, true
	case KindStruct:
		d := f.Decl(t)
		if d == nil {
			return 0, false
		}
		total := 0
		for _, fl := range d.Fields {
			n, ok := f.wireSize(fl.Type, depth+1)
			if !ok {
				return 0, false
			}
			total += n
			if total > maxFixedSize {
				return 0, false
			}
		}
		return total, true
	default:
		return 0, false
	}
}

// Trivial returns true if t can be marked trivial: it is fixed-size and
// holds no capability or buffer slots, so its wire form is a plain byte
// span.
func (f *File) Trivial(t *Type) bool {
	return f.trivial(t, 0)
}

func (f *File) trivial(t *Type, depth int) bool {
	if depth > len(f.Types)+1 {
		return false
	}
	switch {
	case t.Kind.Integer(), t.Kind == KindUnit, t.Kind == KindEnum:
		return true
	case t.Kind == KindArray:
		return f.trivial(t.Elem, depth+1)
	case t.Kind == KindStruct:
		d := f.Decl(t)
		if d == nil {
			return false
		}
		for _, fl := range d.Fields {
			if !f.trivial(fl.Type, depth+1) {
				return false
			}
		}
		return true
	}
	return false
}

// Comparable returns true if values of t can be compared for equality.
// Capabilities and buffers are identities, not values, and are never
// comparable. Declared types are comparable only if marked.
func (f *File) Comparable(t *Type) bool {
	switch {
	case t.Kind.Integer(), t.Kind == KindUnit, t.Kind == KindString:
		return true
	case t.Kind == KindSequence, t.Kind == KindArray:
		return f.Comparable(t.Elem)
	case t.Kind == KindStruct, t.Kind == KindEnum:
		d := f.Decl(t)
		return d != nil && (d.Kind == KindEnum || d.Traits.Has(TraitComparable))
	}
	return false
}

// Orderable returns true if values of t have a total order. Enums order
// by variant index.
func (f *File) Orderable(t *Type) bool {
	switch {
	case t.Kind.Integer(), t.Kind == KindUnit, t.Kind == KindString:
		return true
	case t.Kind == KindSequence, t.Kind == KindArray:
		return f.Orderable(t.Elem)
	case t.Kind == KindStruct, t.Kind == KindEnum:
		d := f.Decl(t)
		return d != nil && (d.Kind == KindEnum || d.Traits.Has(TraitOrderable))
	}
	return false
}

// Reachable returns the declarations reachable from the methods of svc, in
// declaration order.
func (f *File) Reachable(svc *Service) []TypeDecl {
	seen := make(map[string]bool)
	var visit func(t *Type)
	visit = func(t *Type) {
		if t == nil {
			return
		}
		if t.Elem != nil {
			visit(t.Elem)
		}
		d := f.Decl(t)
		if d == nil || seen[d.Name] {
			return
		}
		seen[d.Name] = true
		for _, fl := range d.Fields {
			visit(fl.Type)
		}
	}
	for _, m := range svc.Methods {
		for _, p := range m.Params {
			visit(p.Type)
		}
		visit(m.Ok)
		visit(m.Err)
	}
	var out []TypeDecl
	for _, d := range f.Types {
		if seen[d.Name] {
			out = append(out, d)
		}
	}
	return out
}
