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

package txbuilder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type builderMetrics struct {
	assembled     *prometheus.CounterVec
	submitted     *prometheus.CounterVec
	submitFailed  *prometheus.CounterVec
	lastFeeAmount *prometheus.GaugeVec
}

func (b *Builder) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	b.metrics = &builderMetrics{}
	b.metrics.assembled = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_tx_assembled_total",
			Help: "transactions assembled by kind and backend",
		},
		[]string{"kind", "backend"},
	)
	b.metrics.submitted = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_tx_submitted_total",
			Help: "transactions accepted by the submitter by kind",
		},
		[]string{"kind"},
	)
	b.metrics.submitFailed = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quorum_tx_submit_failed_total",
			Help: "transactions that failed signing or submission by kind",
		},
		[]string{"kind"},
	)
	b.metrics.lastFeeAmount = promautoFactory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quorum_tx_last_fee_lovelace",
			Help: "fee of the most recently assembled transaction by kind",
		},
		[]string{"kind"},
	)
}
