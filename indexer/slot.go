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

package indexer

import (
	"fmt"
	"time"
)

// SlotConfig describes the Shelley-era slot schedule of a network
type SlotConfig struct {
	ZeroTime   time.Time
	ZeroSlot   uint64
	SlotLength time.Duration
}

// SlotConfigs holds the Shelley start of the public networks
var SlotConfigs = map[string]SlotConfig{
	"mainnet": {
		ZeroSlot:   4492800,
		ZeroTime:   time.Unix(1596059091, 0).UTC(),
		SlotLength: time.Second,
	},
	"preprod": {
		ZeroSlot:   86400,
		ZeroTime:   time.Unix(1655769600, 0).UTC(),
		SlotLength: time.Second,
	},
	"preview": {
		ZeroSlot:   0,
		ZeroTime:   time.Unix(1666656000, 0).UTC(),
		SlotLength: time.Second,
	},
}

func SlotConfigForNetwork(network string) (SlotConfig, error) {
	cfg, ok := SlotConfigs[network]
	if !ok {
		return SlotConfig{}, fmt.Errorf("no slot config for network %q", network)
	}
	return cfg, nil
}

// SlotToTime converts a Shelley-era slot to wall-clock time
func (s SlotConfig) SlotToTime(slot uint64) time.Time {
	if slot < s.ZeroSlot {
		return s.ZeroTime
	}
	return s.ZeroTime.Add(time.Duration(slot-s.ZeroSlot) * s.SlotLength)
}

// TimeToSlot returns the slot containing t
func (s SlotConfig) TimeToSlot(t time.Time) uint64 {
	if !t.After(s.ZeroTime) || s.SlotLength <= 0 {
		return s.ZeroSlot
	}
	return s.ZeroSlot + uint64(t.Sub(s.ZeroTime)/s.SlotLength)
}
