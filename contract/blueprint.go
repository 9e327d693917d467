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

package contract

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/blinklabs-io/gouroboros/cbor"
)

// maxBlueprintSize bounds the blueprint file read at startup
const maxBlueprintSize = 16 << 20

var ErrValidatorNotFound = errors.New("validator not found in blueprint")

// Blueprint is a CIP-57 plutus.json document
type Blueprint struct {
	templates  map[string]Template
	Preamble   BlueprintPreamble    `json:"preamble"`
	Validators []BlueprintValidator `json:"validators"`
}

type BlueprintPreamble struct {
	Title         string `json:"title"`
	Version       string `json:"version"`
	PlutusVersion string `json:"plutusVersion"`
}

type BlueprintValidator struct {
	Title        string `json:"title"`
	CompiledCode string `json:"compiledCode"`
	Hash         string `json:"hash"`
}

// LoadBlueprint reads and validates a blueprint file
func LoadBlueprint(path string) (*Blueprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat blueprint: %w", err)
	}
	if info.Size() > maxBlueprintSize {
		return nil, fmt.Errorf(
			"blueprint %s too large: %d bytes",
			path,
			info.Size(),
		)
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}
	bp, err := ParseBlueprint(buf)
	if err != nil {
		return nil, fmt.Errorf("blueprint %s: %w", path, err)
	}
	return bp, nil
}

// ParseBlueprint decodes a blueprint and checks every validator's code and
// recorded hash
func ParseBlueprint(buf []byte) (*Blueprint, error) {
	bp := &Blueprint{}
	if err := json.Unmarshal(buf, bp); err != nil {
		return nil, fmt.Errorf("parse blueprint: %w", err)
	}
	version, err := ParsePlutusVersion(bp.Preamble.PlutusVersion)
	if err != nil {
		return nil, err
	}
	bp.templates = make(map[string]Template, len(bp.Validators))
	for _, v := range bp.Validators {
		code, err := hex.DecodeString(v.CompiledCode)
		if err != nil {
			return nil, fmt.Errorf(
				"%w: %s: compiledCode is not hex: %w",
				ErrInvalidScript,
				v.Title,
				err,
			)
		}
		var flat []byte
		if _, err := cbor.Decode(code, &flat); err != nil {
			return nil, fmt.Errorf(
				"%w: %s: compiledCode is not a CBOR byte string: %w",
				ErrInvalidScript,
				v.Title,
				err,
			)
		}
		t := Template{Title: v.Title, Version: version, Code: code}
		if v.Hash != "" {
			if got := t.Hash().String(); !strings.EqualFold(got, v.Hash) {
				return nil, fmt.Errorf(
					"%w: %s: recorded hash %s, computed %s",
					ErrInvalidScript,
					v.Title,
					v.Hash,
					got,
				)
			}
		}
		bp.templates[v.Title] = t
	}
	return bp, nil
}

// Template returns the validator with the given title. A title without a
// purpose suffix also matches "<title>.mint", "<title>.spend" and so on.
func (b *Blueprint) Template(title string) (Template, error) {
	if t, ok := b.templates[title]; ok {
		return t, nil
	}
	for _, v := range b.Validators {
		if strings.HasPrefix(v.Title, title+".") {
			return b.templates[v.Title], nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", ErrValidatorNotFound, title)
}
