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

package datum

import (
	"errors"
	"fmt"
	"strings"
)

var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaMismatchError describes a decoded value whose shape differs from the
// expected record layout. Field is -1 when the mismatch is not tied to a
// single field.
type SchemaMismatchError struct {
	Record         string
	Reason         string
	ExpectedTag    uint
	ObservedTag    uint
	ExpectedFields int
	ObservedFields int
	Field          int
}

func (e *SchemaMismatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "schema mismatch decoding %s", e.Record)
	if e.ExpectedTag != e.ObservedTag {
		fmt.Fprintf(
			&sb,
			": constructor %d, expected %d",
			e.ObservedTag,
			e.ExpectedTag,
		)
	}
	if e.ExpectedFields != e.ObservedFields {
		fmt.Fprintf(
			&sb,
			": %d fields, expected %d",
			e.ObservedFields,
			e.ExpectedFields,
		)
	}
	if e.Field >= 0 {
		fmt.Fprintf(&sb, ": field %d", e.Field)
	}
	if e.Reason != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Reason)
	}
	return sb.String()
}

func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

func fieldMismatch(
	record string,
	tag uint,
	fields int,
	field int,
	format string,
	args ...any,
) *SchemaMismatchError {
	return &SchemaMismatchError{
		Record:         record,
		ExpectedTag:    tag,
		ObservedTag:    tag,
		ExpectedFields: fields,
		ObservedFields: fields,
		Field:          field,
		Reason:         fmt.Sprintf(format, args...),
	}
}
