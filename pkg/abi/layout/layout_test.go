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

package layout

import (
	"strings"
	"testing"

	"gvisor.dev/ukernel/pkg/hostarch"
)

func TestPresetsValidate(t *testing.T) {
	for _, name := range []string{"sv39", "sv48"} {
		l, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if err := l.Validate(); err != nil {
			t.Errorf("%s: Validate() = %v", name, err)
		}
	}
	if _, err := ByName("sv57"); err == nil {
		t.Errorf("ByName(sv57) succeeded")
	}
}

func TestValidateRejects(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Layout)
		want   string
	}{
		{
			name:   "misaligned text",
			mutate: func(l *Layout) { l.Segments[0].Range.Start += hostarch.PageSize },
			want:   "alignment",
		},
		{
			name: "overlapping segments",
			mutate: func(l *Layout) {
				l.Segments[2].Range.Start = l.Segments[1].Range.Start
			},
			want: "overlaps",
		},
		{
			name:   "missing segment",
			mutate: func(l *Layout) { l.Segments = l.Segments[:len(l.Segments)-1] },
			want:   "missing",
		},
		{
			name:   "direct map overlaps kernel",
			mutate: func(l *Layout) { l.DirectMap.End = l.Kernel.Start + hostarch.HugePageSize },
			want:   "overlaps kernel",
		},
		{
			name:   "segment outside kernel",
			mutate: func(l *Layout) { l.Kernel.End = l.Kernel.Start + hostarch.HugePageSize },
			want:   "outside",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l := Sv39()
			tc.mutate(&l)
			err := l.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestAddressClassification(t *testing.T) {
	l := Sv39()
	text, ok := l.Segment(Text)
	if !ok {
		t.Fatalf("no text segment")
	}
	if !l.IsKernel(text.Range.Start) {
		t.Errorf("text start not classified as kernel")
	}
	if l.IsKernel(0x10000) {
		t.Errorf("user address classified as kernel")
	}
	if s, ok := l.SegmentOf(text.Range.Start + 8); !ok || s.Kind != Text {
		t.Errorf("SegmentOf(text+8) = %v, %t", s.Kind, ok)
	}
	if _, ok := l.SegmentOf(0x10000); ok {
		t.Errorf("SegmentOf(user) found a segment")
	}
}

func TestDirectMap(t *testing.T) {
	l := Sv39()
	v, ok := l.PhysToVirt(0x80200000)
	if !ok {
		t.Fatalf("PhysToVirt failed")
	}
	p, ok := l.VirtToPhys(v)
	if !ok || p != 0x80200000 {
		t.Errorf("VirtToPhys(%v) = %#x, %t", v, p, ok)
	}
	if _, ok := l.PhysToVirt(uint64(l.DirectMap.Length())); ok {
		t.Errorf("PhysToVirt past the direct map succeeded")
	}
}
