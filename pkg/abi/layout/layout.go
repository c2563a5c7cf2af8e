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

// Package layout describes the memory layout contract shared by the loader
// and the kernel: a direct physical-offset mapped region, a paged kernel
// region, and the fixed-alignment segments placed inside the latter.
package layout

import (
	"fmt"
	"sort"

	"gvisor.dev/ukernel/pkg/hostarch"
)

// SegmentKind names one of the linker-placed kernel segments.
type SegmentKind uint8

// Segment kinds, in load order.
const (
	Text SegmentKind = iota
	ROData
	Data
	BSS
	TLS
	BootStack
	numSegmentKinds
)

var segmentNames = [...]string{
	Text:      "text",
	ROData:    "rodata",
	Data:      "data",
	BSS:       "bss",
	TLS:       "tls",
	BootStack: "bootstack",
}

// String implements fmt.Stringer.String.
func (k SegmentKind) String() string {
	if k < numSegmentKinds {
		return segmentNames[k]
	}
	return fmt.Sprintf("SegmentKind(%d)", uint8(k))
}

// Segment is one linker-placed region of the kernel image.
type Segment struct {
	Kind  SegmentKind
	Range hostarch.AddrRange

	// Align is the required alignment of Range.Start. It is either
	// hostarch.PageSize or hostarch.HugePageSize.
	Align uint64
}

// Layout is the complete address space contract.
type Layout struct {
	// DirectMap maps all of physical memory at PhysOffset.
	DirectMap  hostarch.AddrRange
	PhysOffset hostarch.Addr

	// Kernel is the paged region holding the kernel image.
	Kernel hostarch.AddrRange

	// Segments are sorted by start address.
	Segments []Segment
}

// Sv39 returns the layout used with three-level paging.
func Sv39() Layout {
	return build(0xffffffc000000000, 0x1000000000, 0xffffffd000000000, 0x40000000)
}

// Sv48 returns the layout used with four-level paging.
func Sv48() Layout {
	return build(0xffff800000000000, 0x400000000000, 0xffffc00000000000, 0x40000000)
}

// ByName returns the named preset.
func ByName(name string) (Layout, error) {
	switch name {
	case "sv39", "":
		return Sv39(), nil
	case "sv48":
		return Sv48(), nil
	default:
		return Layout{}, fmt.Errorf("unknown layout %q", name)
	}
}

// build lays out the standard segment sizes starting at kernelBase.
func build(direct, directLen, kernelBase, kernelLen hostarch.Addr) Layout {
	l := Layout{
		DirectMap:  hostarch.AddrRange{Start: direct, End: direct + directLen},
		PhysOffset: direct,
		Kernel:     hostarch.AddrRange{Start: kernelBase, End: kernelBase + kernelLen},
	}
	sizes := []struct {
		kind  SegmentKind
		size  uint64
		align uint64
	}{
		{Text, 4 << 20, hostarch.HugePageSize},
		{ROData, 1 << 20, hostarch.PageSize},
		{Data, 1 << 20, hostarch.PageSize},
		{BSS, 2 << 20, hostarch.PageSize},
		{TLS, 64 << 10, hostarch.PageSize},
		{BootStack, 256 << 10, hostarch.PageSize},
	}
	next := kernelBase
	for _, s := range sizes {
		start := alignUp(next, s.align)
		l.Segments = append(l.Segments, Segment{
			Kind:  s.kind,
			Range: hostarch.AddrRange{Start: start, End: start + hostarch.Addr(s.size)},
			Align: s.align,
		})
		next = start + hostarch.Addr(s.size)
	}
	return l
}

func alignUp(v hostarch.Addr, align uint64) hostarch.Addr {
	return (v + hostarch.Addr(align-1)) &^ hostarch.Addr(align-1)
}

// Validate checks every constraint of the contract. A layout that fails
// validation must not be booted.
func (l *Layout) Validate() error {
	if !l.DirectMap.WellFormed() || l.DirectMap.Length() == 0 {
		return fmt.Errorf("direct map %v is empty or inverted", l.DirectMap)
	}
	if !l.Kernel.WellFormed() || l.Kernel.Length() == 0 {
		return fmt.Errorf("kernel region %v is empty or inverted", l.Kernel)
	}
	if !l.DirectMap.Start.IsAligned(hostarch.HugePageSize) || !l.DirectMap.End.IsAligned(hostarch.HugePageSize) {
		return fmt.Errorf("direct map %v is not superpage aligned", l.DirectMap)
	}
	if !l.Kernel.Start.IsAligned(hostarch.HugePageSize) {
		return fmt.Errorf("kernel region %v is not superpage aligned", l.Kernel)
	}
	if l.DirectMap.Overlaps(l.Kernel) {
		return fmt.Errorf("direct map %v overlaps kernel region %v", l.DirectMap, l.Kernel)
	}
	if l.PhysOffset != l.DirectMap.Start {
		return fmt.Errorf("physical offset %v does not start the direct map %v", l.PhysOffset, l.DirectMap)
	}

	var seen [numSegmentKinds]bool
	for i, s := range l.Segments {
		if s.Kind >= numSegmentKinds {
			return fmt.Errorf("segment %d has unknown kind %v", i, s.Kind)
		}
		if seen[s.Kind] {
			return fmt.Errorf("segment %v appears twice", s.Kind)
		}
		seen[s.Kind] = true
		if s.Align != hostarch.PageSize && s.Align != hostarch.HugePageSize {
			return fmt.Errorf("segment %v has alignment %#x, want page or superpage", s.Kind, s.Align)
		}
		if !s.Range.WellFormed() {
			return fmt.Errorf("segment %v range %v is inverted", s.Kind, s.Range)
		}
		if !s.Range.Start.IsAligned(s.Align) || !s.Range.End.IsPageAligned() {
			return fmt.Errorf("segment %v range %v violates %#x alignment", s.Kind, s.Range, s.Align)
		}
		if s.Range.Start < l.Kernel.Start || s.Range.End > l.Kernel.End {
			return fmt.Errorf("segment %v range %v lies outside kernel region %v", s.Kind, s.Range, l.Kernel)
		}
		if i > 0 && l.Segments[i-1].Range.End > s.Range.Start {
			return fmt.Errorf("segment %v overlaps or precedes %v", s.Kind, l.Segments[i-1].Kind)
		}
	}
	for k, ok := range seen {
		if !ok {
			return fmt.Errorf("segment %v missing", SegmentKind(k))
		}
	}
	return nil
}

// Segment returns the segment of the given kind.
func (l *Layout) Segment(kind SegmentKind) (Segment, bool) {
	for _, s := range l.Segments {
		if s.Kind == kind {
			return s, true
		}
	}
	return Segment{}, false
}

// IsKernel returns true if addr belongs to kernel address space, either the
// direct map or the paged kernel region.
func (l *Layout) IsKernel(addr hostarch.Addr) bool {
	return l.DirectMap.Contains(addr) || l.Kernel.Contains(addr)
}

// SegmentOf returns the segment containing addr.
func (l *Layout) SegmentOf(addr hostarch.Addr) (Segment, bool) {
	i := sort.Search(len(l.Segments), func(i int) bool {
		return l.Segments[i].Range.End > addr
	})
	if i < len(l.Segments) && l.Segments[i].Range.Contains(addr) {
		return l.Segments[i], true
	}
	return Segment{}, false
}

// PhysToVirt translates a physical address through the direct map.
func (l *Layout) PhysToVirt(phys uint64) (hostarch.Addr, bool) {
	v, ok := l.PhysOffset.AddLength(phys)
	if !ok || !l.DirectMap.Contains(v) {
		return 0, false
	}
	return v, true
}

// VirtToPhys is the inverse of PhysToVirt.
func (l *Layout) VirtToPhys(v hostarch.Addr) (uint64, bool) {
	if !l.DirectMap.Contains(v) {
		return 0, false
	}
	return uint64(v - l.PhysOffset), true
}
