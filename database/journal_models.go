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
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Submission is a transaction accepted by the submitter
type Submission struct {
	SubmittedAt   time.Time `gorm:"index"`
	TxHash        string    `gorm:"uniqueIndex;size:64"`
	Kind          string    `gorm:"index"`
	PolicyId      string    `gorm:"index;size:56"`
	BaseAssetName string
	ParamRef      string
	ID            uint `gorm:"primarykey"`
}

func (Submission) TableName() string {
	return "submission"
}

// TallySnapshot is a vote count observed at a point in time
type TallySnapshot struct {
	ObservedAt    time.Time `gorm:"index"`
	PolicyId      string    `gorm:"index:idx_tally_asset;size:56"`
	BaseAssetName string    `gorm:"index:idx_tally_asset"`
	ID            uint      `gorm:"primarykey"`
	Yes           uint64
	No            uint64
	Skipped       uint64
}

func (TallySnapshot) TableName() string {
	return "tally_snapshot"
}

// MigrateModels lists the models whose tables the journal creates
var MigrateModels = []any{
	&Submission{},
	&TallySnapshot{},
}
