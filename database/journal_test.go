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
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/blinklabs-io/quorum/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T, opts ...JournalOptionFunc) *Journal {
	t.Helper()
	j, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalSubmissions(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		kind := "vote"
		if i%2 == 0 {
			kind = "claim"
		}
		require.NoError(t, j.RecordSubmission(ctx, &Submission{
			TxHash:      fmt.Sprintf("%064x", i),
			Kind:        kind,
			PolicyId:    "policy",
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// duplicates are ignored
	require.NoError(t, j.RecordSubmission(ctx, &Submission{
		TxHash:      fmt.Sprintf("%064x", 0),
		Kind:        "issue",
		SubmittedAt: base,
	}))

	all, total, err := j.Submissions(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, all, 5)
	assert.Equal(t, "claim", all[0].Kind)

	page, total, err := j.Submissions(ctx, ListOptions{Count: 2, Page: 2, Order: OrderDesc})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, fmt.Sprintf("%064x", 2), page[0].TxHash)
	assert.Equal(t, fmt.Sprintf("%064x", 1), page[1].TxHash)

	claims, total, err := j.Submissions(ctx, ListOptions{Kind: "claim"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, claims, 3)

	got, err := j.Submission(ctx, fmt.Sprintf("%064x", 4))
	require.NoError(t, err)
	assert.True(t, base.Add(4*time.Minute).Equal(got.SubmittedAt))
	_, err = j.Submission(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournalTallies(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	_, err := j.LatestTally(ctx, "policy", "61")
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, j.RecordTally(ctx, &TallySnapshot{
			PolicyId:      "policy",
			BaseAssetName: "61",
			Yes:           uint64(i),
			No:            1,
			ObservedAt:    base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, j.RecordTally(ctx, &TallySnapshot{
		PolicyId:      "other",
		BaseAssetName: "61",
		Yes:           9,
		ObservedAt:    base.Add(24 * time.Hour),
	}))
	latest, err := j.LatestTally(ctx, "policy", "61")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Yes)

	history, err := j.TallyHistory(ctx, "policy", "61", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, uint64(0), history[2].Yes)
}

func TestJournalRecordsEvents(t *testing.T) {
	eventBus := event.NewEventBus(nil, nil)
	defer eventBus.Stop()
	reg := prometheus.NewRegistry()
	j := newTestJournal(t, WithEventBus(eventBus), WithPromRegistry(reg))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	eventBus.Publish(
		event.TxSubmittedEventType,
		event.NewEvent(event.TxSubmittedEventType, event.TxSubmittedEvent{
			TxHash:      "abcd",
			Kind:        event.TxKindIssue,
			PolicyId:    "policy",
			ParamRef:    "ff#0",
			SubmittedAt: now,
		}),
	)
	eventBus.Publish(
		event.TallyEventType,
		event.NewEvent(event.TallyEventType, event.TallyEvent{
			PolicyId:      "policy",
			BaseAssetName: "61",
			Yes:           4,
			No:            2,
			Skipped:       1,
			ObservedAt:    now,
		}),
	)
	require.Eventually(t, func() bool {
		_, err := j.Submission(ctx, "abcd")
		if err != nil {
			return false
		}
		_, err = j.LatestTally(ctx, "policy", "61")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	sub, err := j.Submission(ctx, "abcd")
	require.NoError(t, err)
	assert.Equal(t, "issue", sub.Kind)
	assert.Equal(t, "ff#0", sub.ParamRef)
	tally, err := j.LatestTally(ctx, "policy", "61")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), tally.Yes)
	assert.Equal(t, uint64(1), tally.Skipped)

	expected := `
# HELP quorum_journal_writes_total rows written to the local journal by table
# TYPE quorum_journal_writes_total counter
quorum_journal_writes_total{table="submission"} 1
quorum_journal_writes_total{table="tally_snapshot"} 1
`
	assert.NoError(
		t,
		testutil.GatherAndCompare(
			reg,
			strings.NewReader(expected),
			"quorum_journal_writes_total",
		),
	)
}

func TestJournalDataDir(t *testing.T) {
	dir := t.TempDir() + "/journal"
	j, err := New(WithDataDir(dir))
	require.NoError(t, err)
	require.NoError(t, j.RecordSubmission(context.Background(), &Submission{
		TxHash:      "beef",
		Kind:        "vote",
		SubmittedAt: time.Now(),
	}))
	require.NoError(t, j.Close())

	reopened := newTestJournal(t, WithDataDir(dir))
	got, err := reopened.Submission(context.Background(), "beef")
	require.NoError(t, err)
	assert.Equal(t, "vote", got.Kind)
}
