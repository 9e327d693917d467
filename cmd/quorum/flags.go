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

package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/contract"
	"github.com/blinklabs-io/quorum/datum"
)

var cmdFlags = struct {
	title           string
	description     string
	externalRefId   string
	externalRefType string
	image           string
	message         string
	asset           string
	assetHex        string
	deadline        string
	membersFile     string
	policy          string
	choice          string
	listenAddr      string
	members         []string
	dryRun          bool
}{}

// parseBaseName takes the base asset name as text or as hex, not both
func parseBaseName(text, hexName string) ([]byte, error) {
	switch {
	case text != "" && hexName != "":
		return nil, errors.New("--asset and --asset-hex are mutually exclusive")
	case hexName != "":
		name, err := hex.DecodeString(hexName)
		if err != nil {
			return nil, fmt.Errorf("invalid --asset-hex: %w", err)
		}
		return name, nil
	case text != "":
		return []byte(text), nil
	}
	return nil, errors.New("one of --asset or --asset-hex is required")
}

func parsePolicy(s string) (lcommon.Blake2b224, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(lcommon.Blake2b224{}) {
		return lcommon.Blake2b224{}, fmt.Errorf("invalid policy ID %q", s)
	}
	return lcommon.NewBlake2b224(raw), nil
}

// parseDeadline accepts an RFC 3339 time or a duration from now
func parseDeadline(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("--deadline is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf(
			"invalid deadline %q: expected RFC 3339 time or duration",
			s,
		)
	}
	return now.Add(d), nil
}

// readMembers reads one address per line, skipping blanks and # comments
func readMembers(r io.Reader) ([]string, error) {
	var ret []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ret = append(ret, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// memberCredentials resolves member addresses to payment credentials. Two
// addresses sharing a payment credential count as one member.
func memberCredentials(
	addresses []string,
	membersFile string,
) ([]datum.Credential, error) {
	if membersFile != "" {
		f, err := os.Open(membersFile)
		if err != nil {
			return nil, fmt.Errorf("open members file: %w", err)
		}
		defer f.Close()
		fromFile, err := readMembers(f)
		if err != nil {
			return nil, fmt.Errorf("read members file: %w", err)
		}
		addresses = append(addresses, fromFile...)
	}
	seen := make(map[datum.Credential]struct{}, len(addresses))
	ret := make([]datum.Credential, 0, len(addresses))
	for _, addr := range addresses {
		cred, err := contract.PaymentCredential(addr)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[cred]; ok {
			continue
		}
		seen[cred] = struct{}{}
		ret = append(ret, cred)
	}
	return ret, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
