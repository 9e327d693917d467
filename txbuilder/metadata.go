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
	"encoding/hex"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/datum"
)

const (
	metadataLabelMessage = 674
	metadataLabelDisplay = 721
	displayVersion       = 2
)

// Metadata is the informational auxiliary data attached for wallet display.
// It is never read back.
type Metadata struct {
	Display *DisplayMetadata
	Message []string
}

// DisplayMetadata describes minted tokens (CIP-25 version 2)
type DisplayMetadata struct {
	Assets   []DisplayAsset
	PolicyId lcommon.Blake2b224
}

type DisplayAsset struct {
	Name        []byte
	DisplayName string
	Description string
	Image       string
}

// NewMessage splits msg into metadata-sized chunks
func NewMessage(msg string) []string {
	if msg == "" {
		return nil
	}
	return datum.ChunkText(msg, datum.MaxTextBytes)
}

func (m Metadata) empty() bool {
	return m.Display == nil && len(m.Message) == 0
}

func (d DisplayAsset) fields() orderedMap {
	ret := orderedMap{
		{
			Key:   "name",
			Value: datum.TruncateText(d.DisplayName, datum.MaxTextBytes),
		},
	}
	if d.Description != "" {
		ret = append(ret, mapEntry{
			Key:   "description",
			Value: datum.ChunkText(d.Description, datum.MaxTextBytes),
		})
	}
	if d.Image != "" {
		ret = append(ret, mapEntry{
			Key:   "image",
			Value: datum.ChunkText(d.Image, datum.MaxTextBytes),
		})
	}
	return ret
}

// cbor returns the metadata map keyed by label
func (m Metadata) cbor() orderedMap {
	var ret orderedMap
	if len(m.Message) > 0 {
		ret = append(ret, mapEntry{
			Key: uint64(metadataLabelMessage),
			Value: orderedMap{
				{Key: "msg", Value: m.Message},
			},
		})
	}
	if m.Display != nil {
		assets := make(orderedMap, 0, len(m.Display.Assets))
		for _, a := range m.Display.Assets {
			assets = append(assets, mapEntry{Key: a.Name, Value: a.fields()})
		}
		ret = append(ret, mapEntry{
			Key: uint64(metadataLabelDisplay),
			Value: orderedMap{
				{Key: m.Display.PolicyId.Bytes(), Value: assets},
				{Key: "version", Value: uint64(displayVersion)},
			},
		})
	}
	return ret
}

// jsonValue renders the metadata for a transaction plan, with byte keys in hex
func (m Metadata) jsonValue() map[string]any {
	ret := map[string]any{}
	if len(m.Message) > 0 {
		ret["674"] = map[string]any{"msg": m.Message}
	}
	if m.Display != nil {
		assets := map[string]any{}
		for _, a := range m.Display.Assets {
			fields := map[string]any{}
			for _, f := range a.fields() {
				fields[f.Key.(string)] = f.Value
			}
			assets[hex.EncodeToString(a.Name)] = fields
		}
		ret["721"] = map[string]any{
			m.Display.PolicyId.String(): assets,
			"version":                   displayVersion,
		}
	}
	return ret
}
