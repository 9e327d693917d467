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

package database

import (
	"log/slog"

	"github.com/blinklabs-io/quorum/event"
	"github.com/prometheus/client_golang/prometheus"
)

type JournalOptionFunc func(*Journal)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) JournalOptionFunc {
	return func(j *Journal) {
		j.logger = logger
	}
}

// WithPromRegistry specifies the prometheus registry to use for metrics
func WithPromRegistry(registry prometheus.Registerer) JournalOptionFunc {
	return func(j *Journal) {
		j.promRegistry = registry
	}
}

// WithDataDir specifies the data directory to use for storage. An empty
// value keeps the journal in memory.
func WithDataDir(dataDir string) JournalOptionFunc {
	return func(j *Journal) {
		j.dataDir = dataDir
	}
}

// WithEventBus records submission and tally events from eventBus
func WithEventBus(eventBus *event.EventBus) JournalOptionFunc {
	return func(j *Journal) {
		j.eventBus = eventBus
	}
}
