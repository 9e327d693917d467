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

// Package paramstore persists the one-time output reference each minting
// policy was derived from, so the parameter can be looked up directly
// instead of searched for
package paramstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/quorum/utxo"
	badger "github.com/dgraph-io/badger/v4"
)

const keyPrefix = "param:"

var ErrNotFound = errors.New("parameter not found")

type storedParam struct {
	cbor.StructAsArray
	TxId  []byte
	Index uint32
}

// Entry is one persisted policy parameter
type Entry struct {
	Ref      utxo.OutputRef
	PolicyId lcommon.Blake2b224
}

type Store struct {
	db       *badger.DB
	logger   *slog.Logger
	gcTicker *time.Ticker
	gcStopCh chan struct{}
	dataDir  string
	gcWg     sync.WaitGroup
}

type StoreOptionFunc func(*Store)

// WithDataDir stores data on disk. Without it the store is in-memory.
func WithDataDir(dataDir string) StoreOptionFunc {
	return func(s *Store) {
		s.dataDir = dataDir
	}
}

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) StoreOptionFunc {
	return func(s *Store) {
		s.logger = logger
	}
}

// New opens the parameter store
func New(opts ...StoreOptionFunc) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "paramstore")
	var badgerOpts badger.Options
	if s.dataDir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if _, err := os.Stat(s.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(s.dataDir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		badgerOpts = badger.DefaultOptions(s.dataDir)
	}
	badgerOpts = badgerOpts.
		WithLogger(&badgerLogger{logger: s.logger}).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open parameter store: %w", err)
	}
	s.db = db
	if s.dataDir != "" {
		s.gcTicker = time.NewTicker(10 * time.Minute)
		s.gcStopCh = make(chan struct{})
		s.gcWg.Add(1)
		go s.valueLogGc(s.gcTicker, s.gcStopCh)
	}
	return s, nil
}

func (s *Store) valueLogGc(t *time.Ticker, stop <-chan struct{}) {
	defer s.gcWg.Done()
	for {
		select {
		case <-t.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) {
					s.logger.Warn("value log GC failure", "error", err)
				}
				break
			}
		case <-stop:
			return
		}
	}
}

// Close stops background GC and closes the database
func (s *Store) Close() error {
	if s.gcTicker != nil {
		s.gcTicker.Stop()
		close(s.gcStopCh)
		s.gcWg.Wait()
		s.gcTicker = nil
	}
	return s.db.Close()
}

func paramKey(policyId lcommon.Blake2b224) []byte {
	return []byte(keyPrefix + policyId.String())
}

// Put records ref as the parameter policyId was derived from
func (s *Store) Put(policyId lcommon.Blake2b224, ref utxo.OutputRef) error {
	val, err := cbor.Encode(&storedParam{
		TxId:  ref.TxId.Bytes(),
		Index: ref.Index,
	})
	if err != nil {
		return fmt.Errorf("encode parameter: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(paramKey(policyId), val)
	})
	if err != nil {
		return fmt.Errorf("store parameter: %w", err)
	}
	s.logger.Debug(
		"stored policy parameter",
		"policy_id", policyId.String(),
		"ref", ref.String(),
	)
	return nil
}

// Get returns the parameter recorded for policyId, or ErrNotFound
func (s *Store) Get(policyId lcommon.Blake2b224) (utxo.OutputRef, error) {
	var ret utxo.OutputRef
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(paramKey(policyId))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		ret, err = decodeParam(val)
		return err
	})
	if err != nil {
		return utxo.OutputRef{}, err
	}
	return ret, nil
}

// List returns every stored parameter
func (s *Store) List() ([]Entry, error) {
	var ret []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			policyHex := strings.TrimPrefix(string(item.Key()), keyPrefix)
			policyId, err := parsePolicy(policyHex)
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			ref, err := decodeParam(val)
			if err != nil {
				return err
			}
			ret = append(ret, Entry{PolicyId: policyId, Ref: ref})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func parsePolicy(policyHex string) (lcommon.Blake2b224, error) {
	raw, err := hex.DecodeString(policyHex)
	if err != nil || len(raw) != 28 {
		return lcommon.Blake2b224{}, fmt.Errorf("invalid policy key %q", policyHex)
	}
	return lcommon.NewBlake2b224(raw), nil
}

func decodeParam(val []byte) (utxo.OutputRef, error) {
	var p storedParam
	if _, err := cbor.Decode(val, &p); err != nil {
		return utxo.OutputRef{}, fmt.Errorf("decode parameter: %w", err)
	}
	if len(p.TxId) != 32 {
		return utxo.OutputRef{}, fmt.Errorf(
			"decode parameter: tx id has %d bytes",
			len(p.TxId),
		)
	}
	return utxo.OutputRef{
		TxId:  lcommon.NewBlake2b256(p.TxId),
		Index: p.Index,
	}, nil
}
