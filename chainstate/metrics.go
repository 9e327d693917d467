// Copyright 2026 Blink Labs Software
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

package chainstate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type reconstructorMetrics struct {
	decodeSkipped *prometheus.CounterVec
	tallies       prometheus.Counter
	proposals     prometheus.Gauge
	recovered     *prometheus.CounterVec
}

func (r *Reconstructor) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	r.metrics = &reconstructorMetrics{}
	r.metrics.decodeSkipped = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_chainstate_decode_skipped_total",
			Help: "outputs skipped during reconstruction by record type",
		},
		[]string{"record"},
	)
	r.metrics.tallies = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "quorum_chainstate_tallies_total",
			Help: "vote tallies computed",
		},
	)
	r.metrics.proposals = promautoFactory.NewGauge(
		prometheus.GaugeOpts{
			Name: "quorum_chainstate_proposals",
			Help: "proposals found by the most recent listing",
		},
	)
	r.metrics.recovered = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_chainstate_param_recovered_total",
			Help: "policy parameters recovered by source",
		},
		[]string{"source"},
	)
}
