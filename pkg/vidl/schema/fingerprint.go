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

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// encMode encodes descriptors with Core Deterministic Encoding, so equal
// descriptors always produce identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("schema: CBOR encoder initialization failed: %v", err))
	}
}

// Encode returns the canonical encoding of f.
func Encode(f *File) ([]byte, error) {
	return encMode.Marshal(f)
}

// Decode parses a canonical encoding produced by Encode.
func Decode(data []byte) (*File, error) {
	var f File
	if err := cbor.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}
	return &f, nil
}

// Fingerprint returns the hex blake3 digest of the canonical encoding of f.
func Fingerprint(f *File) (string, error) {
	b, err := Encode(f)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// serviceView is what a service fingerprint covers: the service and every
// declaration its methods can reach. Unrelated declarations in the same
// file do not change it.
type serviceView struct {
	Service Service    `cbor:"1,keyasint"`
	Types   []TypeDecl `cbor:"2,keyasint,omitempty"`
}

// ServiceFingerprint returns the fingerprint of service name in f. Two
// peers whose service fingerprints match agree on every opcode and on
// the wire format of every parameter and result.
func ServiceFingerprint(f *File, name string) (string, error) {
	svc, ok := f.Service(name)
	if !ok {
		return "", fmt.Errorf("no service %q in schema %q", name, f.Package)
	}
	b, err := encMode.Marshal(serviceView{Service: *svc, Types: f.Reachable(svc)})
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// MustServiceFingerprint is ServiceFingerprint for descriptors known to be
// valid, such as generated literals.
func MustServiceFingerprint(f *File, name string) string {
	fp, err := ServiceFingerprint(f, name)
	if err != nil {
		panic(err)
	}
	return fp
}
