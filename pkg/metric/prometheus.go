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

package metric

import (
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Families returns a snapshot of every metric as Prometheus metric
// families, ordered by name. Field combinations are exported as labels.
func (r *Registry) Families() []*dto.MetricFamily {
	var out []*dto.MetricFamily
	for _, m := range r.sorted() {
		fam := &dto.MetricFamily{
			Name: proto.String(m.name),
			Help: proto.String(m.description),
			Type: dto.MetricType_COUNTER.Enum(),
		}
		for key := range m.values {
			var labels []*dto.LabelPair
			for i, v := range m.fieldMapper.keyToMultiField(key) {
				labels = append(labels, &dto.LabelPair{
					Name:  proto.String(m.fieldMapper.fields[i].name),
					Value: proto.String(v),
				})
			}
			fam.Metric = append(fam.Metric, &dto.Metric{
				Label:   labels,
				Counter: &dto.Counter{Value: proto.Float64(float64(m.values[key].Load()))},
			})
		}
		out = append(out, fam)
	}
	return out
}

// Write writes a snapshot of every metric to w in the Prometheus text
// exposition format.
func (r *Registry) Write(w io.Writer) error {
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, fam := range r.Families() {
		if err := enc.Encode(fam); err != nil {
			return err
		}
	}
	return nil
}
