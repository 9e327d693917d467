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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/blinklabs-io/quorum/event"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

const (
	journalFileName = "journal.sqlite"

	DefaultListCount = 100
	MaxListCount     = 100

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// memoryDbSeq keeps in-memory journals of one process apart
var memoryDbSeq atomic.Uint64

// Journal is a local SQLite record of submitted transactions and observed
// tallies. It is a cache of what this process saw, not a source of truth.
type Journal struct {
	db           *gorm.DB
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	eventBus     *event.EventBus
	writes       *prometheus.CounterVec
	subIds       map[event.EventType]event.EventSubscriberId
	dataDir      string
	mu           sync.Mutex
}

// New opens the journal, creating its tables as needed
func New(opts ...JournalOptionFunc) (*Journal, error) {
	j := &Journal{}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	j.logger = j.logger.With("component", "database")
	var dsn string
	if j.dataDir == "" {
		dsn = fmt.Sprintf(
			"file:journal-%d?mode=memory&cache=shared",
			memoryDbSeq.Add(1),
		)
	} else {
		if _, err := os.Stat(j.dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(j.dataDir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		// WAL journal mode with a busy timeout for the event handlers
		dsn = fmt.Sprintf(
			"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
			filepath.Join(j.dataDir, journalFileName),
		)
	}
	db, err := gorm.Open(
		sqlite.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, err
	}
	j.db = db
	if err := j.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		_ = j.Close()
		return nil, err
	}
	for _, model := range MigrateModels {
		j.logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := j.db.AutoMigrate(model); err != nil {
			_ = j.Close()
			return nil, err
		}
	}
	if j.promRegistry != nil {
		j.writes = promauto.With(j.promRegistry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "quorum_journal_writes_total",
				Help: "rows written to the local journal by table",
			},
			[]string{"table"},
		)
	}
	if j.eventBus != nil {
		j.subscribe()
	}
	return j, nil
}

// DB returns the underlying gorm database
func (j *Journal) DB() *gorm.DB {
	return j.db
}

// Close stops event handling and closes the database
func (j *Journal) Close() error {
	j.mu.Lock()
	subIds := j.subIds
	j.subIds = nil
	j.mu.Unlock()
	for evtType, subId := range subIds {
		j.eventBus.Unsubscribe(evtType, subId)
	}
	sqlDb, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

func (j *Journal) subscribe() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.subIds = map[event.EventType]event.EventSubscriberId{
		event.TxSubmittedEventType: j.eventBus.SubscribeFunc(
			event.TxSubmittedEventType,
			j.handleSubmitted,
		),
		event.TallyEventType: j.eventBus.SubscribeFunc(
			event.TallyEventType,
			j.handleTally,
		),
	}
}

func (j *Journal) handleSubmitted(evt event.Event) {
	data, ok := evt.Data.(event.TxSubmittedEvent)
	if !ok {
		return
	}
	err := j.RecordSubmission(context.Background(), &Submission{
		TxHash:        data.TxHash,
		Kind:          string(data.Kind),
		PolicyId:      data.PolicyId,
		BaseAssetName: data.BaseAssetName,
		ParamRef:      data.ParamRef,
		SubmittedAt:   data.SubmittedAt,
	})
	if err != nil {
		j.logger.Error(
			"failed to record submission",
			"tx_hash", data.TxHash,
			"error", err,
		)
	}
}

func (j *Journal) handleTally(evt event.Event) {
	data, ok := evt.Data.(event.TallyEvent)
	if !ok {
		return
	}
	err := j.RecordTally(context.Background(), &TallySnapshot{
		PolicyId:      data.PolicyId,
		BaseAssetName: data.BaseAssetName,
		Yes:           data.Yes,
		No:            data.No,
		Skipped:       data.Skipped,
		ObservedAt:    data.ObservedAt,
	})
	if err != nil {
		j.logger.Error(
			"failed to record tally",
			"policy_id", data.PolicyId,
			"error", err,
		)
	}
}

func (j *Journal) countWrite(table string) {
	if j.writes != nil {
		j.writes.WithLabelValues(table).Inc()
	}
}

// RecordSubmission stores a submission. A repeated transaction hash is
// ignored.
func (j *Journal) RecordSubmission(ctx context.Context, s *Submission) error {
	result := j.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(s)
	if result.Error != nil {
		return fmt.Errorf("insert submission: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		j.countWrite(Submission{}.TableName())
	}
	return nil
}

// ListOptions selects a page of journal rows
type ListOptions struct {
	Order    string
	Kind     string
	PolicyId string
	Count    int
	Page     int
}

func (o ListOptions) normalize() ListOptions {
	if o.Count < 1 {
		o.Count = DefaultListCount
	}
	o.Count = min(o.Count, MaxListCount)
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Order != OrderDesc {
		o.Order = OrderAsc
	}
	return o
}

// Submissions returns one page of submissions ordered by submission time,
// along with the total number of matching rows
func (j *Journal) Submissions(
	ctx context.Context,
	opts ListOptions,
) ([]Submission, int64, error) {
	opts = opts.normalize()
	query := j.db.WithContext(ctx).Model(&Submission{})
	if opts.Kind != "" {
		query = query.Where("kind = ?", opts.Kind)
	}
	if opts.PolicyId != "" {
		query = query.Where("policy_id = ?", opts.PolicyId)
	}
	var total int64
	if result := query.Count(&total); result.Error != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", result.Error)
	}
	var ret []Submission
	result := query.
		Order(clause.OrderByColumn{
			Column: clause.Column{Name: "submitted_at"},
			Desc:   opts.Order == OrderDesc,
		}).
		Order(clause.OrderByColumn{
			Column: clause.Column{Name: "id"},
			Desc:   opts.Order == OrderDesc,
		}).
		Limit(opts.Count).
		Offset((opts.Page - 1) * opts.Count).
		Find(&ret)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", result.Error)
	}
	return ret, total, nil
}

// Submission returns the submission with txHash
func (j *Journal) Submission(ctx context.Context, txHash string) (*Submission, error) {
	var ret Submission
	result := j.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", result.Error)
	}
	return &ret, nil
}

// RecordTally stores a tally snapshot
func (j *Journal) RecordTally(ctx context.Context, t *TallySnapshot) error {
	if result := j.db.WithContext(ctx).Create(t); result.Error != nil {
		return fmt.Errorf("insert tally snapshot: %w", result.Error)
	}
	j.countWrite(TallySnapshot{}.TableName())
	return nil
}

// TallyHistory returns up to limit snapshots for one proposal, newest first
func (j *Journal) TallyHistory(
	ctx context.Context,
	policyId string,
	baseAssetName string,
	limit int,
) ([]TallySnapshot, error) {
	if limit < 1 {
		limit = DefaultListCount
	}
	var ret []TallySnapshot
	result := j.db.WithContext(ctx).
		Where("policy_id = ? AND base_asset_name = ?", policyId, baseAssetName).
		Order("observed_at DESC, id DESC").
		Limit(limit).
		Find(&ret)
	if result.Error != nil {
		return nil, fmt.Errorf("list tally snapshots: %w", result.Error)
	}
	return ret, nil
}

// LatestTally returns the newest snapshot for one proposal
func (j *Journal) LatestTally(
	ctx context.Context,
	policyId string,
	baseAssetName string,
) (*TallySnapshot, error) {
	ret, err := j.TallyHistory(ctx, policyId, baseAssetName, 1)
	if err != nil {
		return nil, err
	}
	if len(ret) == 0 {
		return nil, ErrNotFound
	}
	return &ret[0], nil
}
