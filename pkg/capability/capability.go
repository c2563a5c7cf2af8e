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

// Package capability implements per-task capability tables.
//
// A capability is an unforgeable reference to a kernel object plus the
// rights the holder has over it. Identifiers are meaningful only within the
// table that minted them: the same number in two tables names unrelated
// objects unless one was explicitly transferred.
//
// Tables are not synchronized. Every table is owned by one task, and all
// mutations are serialized with the rest of that task's kernel state by the
// task's own lock.
package capability

import (
	"fmt"

	"github.com/google/btree"
	"gvisor.dev/ukernel/pkg/syserr"
)

// ID names a capability within one table. Zero is never a valid ID.
type ID uint64

// Invalid is the zero ID.
const Invalid ID = 0

// Kind is the type of object a capability refers to.
type Kind uint8

// Object kinds.
const (
	KindEndpoint Kind = iota + 1
	KindChannel
	KindBuffer
	KindMMIO
)

// String implements fmt.Stringer.String.
func (k Kind) String() string {
	switch k {
	case KindEndpoint:
		return "endpoint"
	case KindChannel:
		return "channel"
	case KindBuffer:
		return "buffer"
	case KindMMIO:
		return "mmio"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Object is a kernel resource a capability can refer to.
type Object interface {
	// CapKind returns the kind of the object.
	CapKind() Kind
}

// Transferable is implemented by objects that need a distinct instance per
// holder. Transfer calls it to produce the object the destination receives.
type Transferable interface {
	Object

	// TransferTo returns the object the new holder receives. owner
	// identifies the destination table's owner.
	TransferTo(owner any) (Object, error)
}

// Capability is one table entry.
type Capability struct {
	ID     ID
	Object Object
	Rights Rights
}

// Table is a capability space.
type Table struct {
	owner   any
	entries *btree.BTreeG[Capability]
	next    ID
}

const tableDegree = 16

func lessByID(a, b Capability) bool {
	return a.ID < b.ID
}

// NewTable returns an empty table for owner. owner is passed to
// Transferable objects moved into this table.
func NewTable(owner any) *Table {
	return &Table{
		owner:   owner,
		entries: btree.NewG(tableDegree, lessByID),
		next:    1,
	}
}

// Owner returns the value passed to NewTable.
func (t *Table) Owner() any {
	return t.owner
}

// Len returns the number of live capabilities.
func (t *Table) Len() int {
	return t.entries.Len()
}

// Grant mints a new capability for obj with rights r.
func (t *Table) Grant(obj Object, r Rights) ID {
	if obj == nil {
		panic("capability: Grant of nil object")
	}
	if !r.Valid() {
		panic(fmt.Sprintf("capability: Grant with undefined rights %#x", uint32(r)))
	}
	id := t.next
	t.next++
	t.entries.ReplaceOrInsert(Capability{ID: id, Object: obj, Rights: r})
	return id
}

// Lookup returns the capability named id.
func (t *Table) Lookup(id ID) (Capability, error) {
	c, ok := t.entries.Get(Capability{ID: id})
	if !ok {
		return Capability{}, syserr.ErrCapNotFound.Errorf("cap %d", id)
	}
	return c, nil
}

// Check returns true if id exists and carries every right in required.
func (t *Table) Check(id ID, required Rights) bool {
	c, err := t.Lookup(id)
	return err == nil && c.Rights.Contains(required)
}

// Require looks up id and checks that it carries required and refers to an
// object of kind k.
func (t *Table) Require(id ID, k Kind, required Rights) (Capability, error) {
	c, err := t.Lookup(id)
	if err != nil {
		return Capability{}, err
	}
	if c.Object.CapKind() != k {
		return Capability{}, syserr.ErrWrongObject.Errorf("cap %d is a %v, want %v", id, c.Object.CapKind(), k)
	}
	if !c.Rights.Contains(required) {
		return Capability{}, syserr.ErrInsufficientRights.Errorf("cap %d has %v, want %v", id, c.Rights, required)
	}
	return c, nil
}

// Revoke removes id. It returns the removed capability.
func (t *Table) Revoke(id ID) (Capability, error) {
	c, ok := t.entries.Delete(Capability{ID: id})
	if !ok {
		return Capability{}, syserr.ErrCapNotFound.Errorf("cap %d", id)
	}
	return c, nil
}

// Derive mints a new capability for the same object as id with rights
// narrowed. narrowed must be a subset of id's rights.
func (t *Table) Derive(id ID, narrowed Rights) (ID, error) {
	c, err := t.Lookup(id)
	if err != nil {
		return Invalid, err
	}
	if !narrowed.Valid() || !c.Rights.Contains(narrowed) {
		return Invalid, syserr.ErrRightsEscalation.Errorf("cap %d has %v, asked for %v", id, c.Rights, narrowed)
	}
	return t.Grant(c.Object, narrowed), nil
}

// Find returns the first capability, in ID order, that satisfies match.
func (t *Table) Find(match func(Capability) bool) (Capability, bool) {
	var (
		found Capability
		ok    bool
	)
	t.entries.Ascend(func(c Capability) bool {
		if match(c) {
			found, ok = c, true
			return false
		}
		return true
	})
	return found, ok
}

// ForEach calls fn for every capability in ID order.
func (t *Table) ForEach(fn func(Capability)) {
	t.entries.Ascend(func(c Capability) bool {
		fn(c)
		return true
	})
}

// Clear revokes every capability and returns them in ID order. IDs are not
// reused afterwards.
func (t *Table) Clear() []Capability {
	all := make([]Capability, 0, t.entries.Len())
	t.ForEach(func(c Capability) {
		all = append(all, c)
	})
	t.entries.Clear(false)
	return all
}

// Transfer moves a copy of id from src into dst and returns the new ID in
// dst. The source capability must carry Grant; the copy carries the same
// rights. The source entry is left in place.
func Transfer(src *Table, id ID, dst *Table) (ID, error) {
	return TransferRights(src, id, dst, 0)
}

// TransferRights is like Transfer, but narrows the copy to r. A zero r keeps
// the source rights.
func TransferRights(src *Table, id ID, dst *Table, r Rights) (ID, error) {
	c, err := src.Lookup(id)
	if err != nil {
		return Invalid, err
	}
	if !c.Rights.Contains(Grant) {
		return Invalid, syserr.ErrInsufficientRights.Errorf("cap %d has %v, transfer needs grant", id, c.Rights)
	}
	if r == 0 {
		r = c.Rights
	}
	if !r.Valid() || !c.Rights.Contains(r) {
		return Invalid, syserr.ErrRightsEscalation.Errorf("cap %d has %v, transfer asked for %v", id, c.Rights, r)
	}
	return Mint(dst, Capability{Object: c.Object, Rights: r})
}

// Mint grants c's object into dst with c's rights, asking Transferable
// objects for the instance dst's owner receives. c.ID is ignored.
func Mint(dst *Table, c Capability) (ID, error) {
	obj := c.Object
	if tr, ok := obj.(Transferable); ok {
		var err error
		if obj, err = tr.TransferTo(dst.owner); err != nil {
			return Invalid, err
		}
	}
	return dst.Grant(obj, c.Rights), nil
}
