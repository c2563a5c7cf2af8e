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

package kernel

import (
	"gvisor.dev/ukernel/pkg/abi/sysno"
	"gvisor.dev/ukernel/pkg/metric"
	"gvisor.dev/ukernel/pkg/syserr"
)

// Trap kinds for the trap counter.
const (
	trapSyscall   = "syscall"
	trapInterrupt = "interrupt"
	trapFault     = "fault"
)

const invalidSysno = "invalid"

type kernelMetrics struct {
	traps      *metric.Uint64Metric
	syscalls   *metric.Uint64Metric
	calls      *metric.Uint64Metric
	violations *metric.Uint64Metric
	capErrors  *metric.Uint64Metric
}

func newKernelMetrics(r *metric.Registry) kernelMetrics {
	var names []string
	for no := sysno.Sysno(0); no.Valid(); no++ {
		names = append(names, no.String())
	}
	names = append(names, invalidSysno)
	return kernelMetrics{
		traps:      r.MustCreateNewUint64Metric("ukernel_traps_total", "Traps taken, by kind.", metric.NewField("kind", trapSyscall, trapInterrupt, trapFault)),
		syscalls:   r.MustCreateNewUint64Metric("ukernel_syscalls_total", "Syscalls issued, by syscall.", metric.NewField("syscall", names...)),
		calls:      r.MustCreateNewUint64Metric("ukernel_calls_total", "Calls delivered to endpoints."),
		violations: r.MustCreateNewUint64Metric("ukernel_protocol_violations_total", "Syscalls that failed with a protocol violation."),
		capErrors:  r.MustCreateNewUint64Metric("ukernel_capability_errors_total", "Syscalls that failed a capability check."),
	}
}

func sysnoLabel(no sysno.Sysno) string {
	if no.Valid() {
		return no.String()
	}
	return invalidSysno
}

// countError records a failed syscall.
func (m *kernelMetrics) countError(err error) {
	switch syserr.KindOf(err) {
	case syserr.KindProtocol:
		m.violations.Increment()
	case syserr.KindCapability:
		m.capErrors.Increment()
	}
}
