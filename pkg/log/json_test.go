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

package log

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLevelText(t *testing.T) {
	for _, lv := range []Level{Warning, Info, Debug} {
		b, err := lv.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", lv, err)
		}
		var got Level
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if got != lv {
			t.Errorf("round trip of %v got %v", lv, got)
		}
	}
	if _, err := Level(7).MarshalText(); err == nil {
		t.Errorf("MarshalText accepted an invalid level")
	}
	var lv Level
	if err := lv.UnmarshalText([]byte("chatty")); err == nil {
		t.Errorf("UnmarshalText(chatty) succeeded")
	}
}

func TestLevelUnmarshalJSON(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Level
	}{
		{`0`, Warning},
		{`1`, Info},
		{`2`, Debug},
		{`"warning"`, Warning},
		{`"Info"`, Info},
		{`"debug"`, Debug},
	} {
		var lv Level
		if err := json.Unmarshal([]byte(tc.in), &lv); err != nil {
			t.Errorf("Unmarshal(%s): %v", tc.in, err)
			continue
		}
		if lv != tc.want {
			t.Errorf("Unmarshal(%s) = %v, want %v", tc.in, lv, tc.want)
		}
	}
	for _, in := range []string{`3`, `"loud"`, `{}`} {
		var lv Level
		if err := json.Unmarshal([]byte(in), &lv); err == nil {
			t.Errorf("Unmarshal(%s) succeeded", in)
		}
	}
}

func TestJSONEmitter(t *testing.T) {
	tw := &testWriter{}
	e := JSONEmitter{&Writer{Next: tw}}
	e.Emit(0, Warning, time.Unix(0, 0).UTC(), "cap %d revoked", 3)
	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(tw.lines))
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(tw.lines[0]), &got); err != nil {
		t.Fatalf("bad json %q: %v", tw.lines[0], err)
	}
	if got["source"] == "" {
		t.Errorf("no source in %q", tw.lines[0])
	}
	delete(got, "source")
	want := map[string]string{
		"time":  "1970-01-01T00:00:00Z",
		"level": "warning",
		"msg":   "cap 3 revoked",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("log line mismatch (-want +got):\n%s", diff)
	}
}
