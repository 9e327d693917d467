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

// Package datum maps the voting protocol's records to and from Plutus data.
//
// Every record is a constructor with a fixed tag and a fixed, ordered field
// list. Decoding never coerces: a wrong constructor tag, field count or field
// kind is reported as a *SchemaMismatchError.
package datum

import (
	"fmt"
	"math"
	"math/big"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/plutigo/data"
)

const hashSize = 28

// Encoder is implemented by every record in this package
type Encoder interface {
	ToPlutusData() data.PlutusData
}

// Encode serializes a record to its CBOR Plutus data form
func Encode(r Encoder) ([]byte, error) {
	ret, err := data.Encode(r.ToPlutusData())
	if err != nil {
		return nil, fmt.Errorf("encode plutus data: %w", err)
	}
	return ret, nil
}

func decodeCbor(record string, raw []byte) (data.PlutusData, error) {
	pd, err := data.Decode(raw)
	if err != nil {
		return nil, &SchemaMismatchError{
			Record: record,
			Field:  -1,
			Reason: "invalid plutus data: " + err.Error(),
		}
	}
	return pd, nil
}

func constrFields(
	record string,
	pd data.PlutusData,
	tag uint,
	count int,
) (*fieldReader, error) {
	c, ok := pd.(*data.Constr)
	if !ok {
		return nil, &SchemaMismatchError{
			Record:         record,
			ExpectedTag:    tag,
			ObservedTag:    tag,
			ExpectedFields: count,
			ObservedFields: count,
			Field:          -1,
			Reason:         fmt.Sprintf("expected constructor, got %T", pd),
		}
	}
	if c.Tag != tag || len(c.Fields) != count {
		return nil, &SchemaMismatchError{
			Record:         record,
			ExpectedTag:    tag,
			ObservedTag:    c.Tag,
			ExpectedFields: count,
			ObservedFields: len(c.Fields),
			Field:          -1,
		}
	}
	return &fieldReader{record: record, tag: tag, fields: c.Fields}, nil
}

// fieldReader extracts typed fields from a constructor. The first failure is
// kept in err and later reads return zero values.
type fieldReader struct {
	err    error
	record string
	fields []data.PlutusData
	tag    uint
}

func (r *fieldReader) fail(i int, format string, args ...any) {
	if r.err == nil {
		r.err = fieldMismatch(r.record, r.tag, len(r.fields), i, format, args...)
	}
}

func (r *fieldReader) bytes(i int) []byte {
	if r.err != nil {
		return nil
	}
	bs, ok := r.fields[i].(*data.ByteString)
	if !ok {
		r.fail(i, "expected bytes, got %T", r.fields[i])
		return nil
	}
	return bs.Inner
}

func (r *fieldReader) hash28(i int) lcommon.Blake2b224 {
	b := r.bytes(i)
	if r.err != nil {
		return lcommon.Blake2b224{}
	}
	if len(b) != hashSize {
		r.fail(i, "expected %d byte hash, got %d bytes", hashSize, len(b))
		return lcommon.Blake2b224{}
	}
	return lcommon.NewBlake2b224(b)
}

func (r *fieldReader) integer(i int) *big.Int {
	if r.err != nil {
		return nil
	}
	n, ok := r.fields[i].(*data.Integer)
	if !ok || n.Inner == nil {
		r.fail(i, "expected integer, got %T", r.fields[i])
		return nil
	}
	return n.Inner
}

func (r *fieldReader) uint64(i int) uint64 {
	n := r.integer(i)
	if r.err != nil {
		return 0
	}
	if n.Sign() < 0 || !n.IsUint64() {
		r.fail(i, "integer %s out of range for unsigned field", n.String())
		return 0
	}
	return n.Uint64()
}

func (r *fieldReader) int64(i int) int64 {
	n := r.integer(i)
	if r.err != nil {
		return 0
	}
	if !n.IsInt64() {
		r.fail(i, "integer %s out of range for signed field", n.String())
		return 0
	}
	return n.Int64()
}

func (r *fieldReader) uint32(i int) uint32 {
	n := r.uint64(i)
	if r.err != nil {
		return 0
	}
	if n > math.MaxUint32 {
		r.fail(i, "integer %d out of range for 32-bit field", n)
		return 0
	}
	return uint32(n)
}

func (r *fieldReader) list(i int) []data.PlutusData {
	if r.err != nil {
		return nil
	}
	l, ok := r.fields[i].(*data.List)
	if !ok {
		r.fail(i, "expected list, got %T", r.fields[i])
		return nil
	}
	return l.Items
}

func bigUint(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
