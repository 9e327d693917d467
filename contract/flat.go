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
	"errors"
	"fmt"
)

// Flat term and constant tags used when walking and splicing programs
const (
	flatTermTagWidth    = 4
	flatBuiltinTagWidth = 7
	flatConstTagWidth   = 4

	flatTagVar      = 0
	flatTagDelay    = 1
	flatTagLambda   = 2
	flatTagApply    = 3
	flatTagConstant = 4
	flatTagForce    = 5
	flatTagError    = 6
	flatTagBuiltin  = 7
	flatTagConstr   = 8
	flatTagCase     = 9

	flatConstInteger    = 0
	flatConstByteString = 1
	flatConstString     = 2
	flatConstUnit       = 3
	flatConstBool       = 4
	flatConstProtoList  = 5
	flatConstProtoPair  = 6
	flatConstTypeApply  = 7
	flatConstData       = 8

	flatMaxChunk = 255
)

var errFlatEnd = errors.New("unexpected end of flat program")

type flatReader struct {
	buf []byte
	pos int
}

func (r *flatReader) bit() (bool, error) {
	if r.pos >= len(r.buf)*8 {
		return false, errFlatEnd
	}
	b := r.buf[r.pos/8]&(0x80>>(r.pos%8)) != 0
	r.pos++
	return b, nil
}

func (r *flatReader) bits(n int) (uint, error) {
	var ret uint
	for range n {
		b, err := r.bit()
		if err != nil {
			return 0, err
		}
		ret <<= 1
		if b {
			ret |= 1
		}
	}
	return ret, nil
}

// word skips a variable length natural of 7 bit groups
func (r *flatReader) word() error {
	for {
		group, err := r.bits(8)
		if err != nil {
			return err
		}
		if group&0x80 == 0 {
			return nil
		}
	}
}

func (r *flatReader) filler() error {
	for {
		b, err := r.bit()
		if err != nil {
			return err
		}
		if b {
			return nil
		}
	}
}

// byteString skips a padded, chunked byte string
func (r *flatReader) byteString() error {
	if err := r.filler(); err != nil {
		return err
	}
	for {
		if r.pos/8 >= len(r.buf) {
			return errFlatEnd
		}
		chunk := int(r.buf[r.pos/8])
		r.pos += 8 * (chunk + 1)
		if r.pos > len(r.buf)*8 {
			return errFlatEnd
		}
		if chunk == 0 {
			return nil
		}
	}
}

// list walks a 1-prefixed, 0-terminated list
func (r *flatReader) list(item func() error) error {
	for {
		more, err := r.bit()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		if err := item(); err != nil {
			return err
		}
	}
}

// flatType is a constant type as its sequence of type tags
type flatType struct {
	tag  uint
	args []flatType
}

func parseFlatType(tags []uint) (flatType, []uint, error) {
	if len(tags) == 0 {
		return flatType{}, nil, errors.New("truncated constant type")
	}
	tag, rest := tags[0], tags[1:]
	switch tag {
	case flatConstInteger, flatConstByteString, flatConstString,
		flatConstUnit, flatConstBool, flatConstData:
		return flatType{tag: tag}, rest, nil
	case flatConstTypeApply:
		if len(rest) == 0 {
			return flatType{}, nil, errors.New("truncated constant type")
		}
		switch rest[0] {
		case flatConstProtoList:
			elem, rest, err := parseFlatType(rest[1:])
			if err != nil {
				return flatType{}, nil, err
			}
			return flatType{tag: flatConstProtoList, args: []flatType{elem}}, rest, nil
		case flatConstTypeApply:
			if len(rest) < 2 || rest[1] != flatConstProtoPair {
				return flatType{}, nil, errors.New("unknown constant type")
			}
			first, rest, err := parseFlatType(rest[2:])
			if err != nil {
				return flatType{}, nil, err
			}
			second, rest, err := parseFlatType(rest)
			if err != nil {
				return flatType{}, nil, err
			}
			return flatType{
				tag:  flatConstProtoPair,
				args: []flatType{first, second},
			}, rest, nil
		}
	}
	return flatType{}, nil, fmt.Errorf("unknown constant type tag %d", tag)
}

func (r *flatReader) constantValue(typ flatType) error {
	switch typ.tag {
	case flatConstInteger:
		return r.word()
	case flatConstByteString, flatConstString, flatConstData:
		return r.byteString()
	case flatConstUnit:
		return nil
	case flatConstBool:
		_, err := r.bit()
		return err
	case flatConstProtoList:
		return r.list(func() error {
			return r.constantValue(typ.args[0])
		})
	case flatConstProtoPair:
		if err := r.constantValue(typ.args[0]); err != nil {
			return err
		}
		return r.constantValue(typ.args[1])
	}
	return fmt.Errorf("unknown constant type tag %d", typ.tag)
}

// term skips one de Bruijn indexed term
func (r *flatReader) term() error {
	tag, err := r.bits(flatTermTagWidth)
	if err != nil {
		return err
	}
	switch tag {
	case flatTagVar:
		return r.word()
	case flatTagDelay, flatTagLambda, flatTagForce:
		return r.term()
	case flatTagApply:
		if err := r.term(); err != nil {
			return err
		}
		return r.term()
	case flatTagConstant:
		var tags []uint
		err := r.list(func() error {
			t, err := r.bits(flatConstTagWidth)
			tags = append(tags, t)
			return err
		})
		if err != nil {
			return err
		}
		typ, rest, err := parseFlatType(tags)
		if err != nil {
			return err
		}
		if len(rest) != 0 {
			return errors.New("trailing constant type tags")
		}
		return r.constantValue(typ)
	case flatTagError:
		return nil
	case flatTagBuiltin:
		_, err := r.bits(flatBuiltinTagWidth)
		return err
	case flatTagConstr:
		if err := r.word(); err != nil {
			return err
		}
		return r.list(r.term)
	case flatTagCase:
		if err := r.term(); err != nil {
			return err
		}
		return r.list(r.term)
	}
	return fmt.Errorf("invalid term tag %d", tag)
}

type flatWriter struct {
	buf  []byte
	used int
}

func (w *flatWriter) bit(b bool) {
	if w.used%8 == 0 {
		w.buf = append(w.buf, 0)
	}
	if b {
		w.buf[len(w.buf)-1] |= 0x80 >> (w.used % 8)
	}
	w.used++
}

func (w *flatWriter) bits(n int, val uint) {
	for i := n - 1; i >= 0; i-- {
		w.bit(val&(1<<i) != 0)
	}
}

// copyBits appends src bits in [from, to)
func (w *flatWriter) copyBits(src []byte, from, to int) {
	for i := from; i < to; i++ {
		w.bit(src[i/8]&(0x80>>(i%8)) != 0)
	}
}

func (w *flatWriter) filler() {
	for w.used%8 != 7 {
		w.bit(false)
	}
	w.bit(true)
}

func (w *flatWriter) byteString(b []byte) {
	w.filler()
	for len(b) > 0 {
		n := min(len(b), flatMaxChunk)
		w.buf = append(w.buf, byte(n))
		w.buf = append(w.buf, b[:n]...)
		w.used += 8 * (n + 1)
		b = b[n:]
	}
	w.buf = append(w.buf, 0)
	w.used += 8
}

// dataConstant appends a constant term of type data holding cborData
func (w *flatWriter) dataConstant(cborData []byte) {
	w.bits(flatTermTagWidth, flatTagConstant)
	w.bit(true)
	w.bits(flatConstTagWidth, flatConstData)
	w.bit(false)
	w.byteString(cborData)
}

// applyFlat returns the flat program with its term applied to each CBOR
// encoded data argument in order. The original term bits are carried over
// unchanged.
func applyFlat(program []byte, args [][]byte) ([]byte, error) {
	r := &flatReader{buf: program}
	for range 3 {
		if err := r.word(); err != nil {
			return nil, fmt.Errorf("version: %w", err)
		}
	}
	versionEnd := r.pos
	if err := r.term(); err != nil {
		return nil, fmt.Errorf("term: %w", err)
	}
	termEnd := r.pos
	w := &flatWriter{}
	w.copyBits(program, 0, versionEnd)
	for range args {
		w.bits(flatTermTagWidth, flatTagApply)
	}
	w.copyBits(program, versionEnd, termEnd)
	for _, arg := range args {
		w.dataConstant(arg)
	}
	w.filler()
	return w.buf, nil
}
