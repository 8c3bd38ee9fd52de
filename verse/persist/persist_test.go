// Tests for the pure-logic pieces of the persistence projection that
// don't require a live MongoDB connection (spec.md §4.11). SaveNode,
// SaveTagGroup, SaveLayer, FlushScene and LoadSceneSubtree all drive
// *mongo.Collection directly and are not exercised by the tests in
// this package.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/verse-project/verse/node"
)

func TestToUint16HandlesBSONIntegerVariants(t *testing.T) {
	require.Equal(t, uint16(7), toUint16(int32(7)))
	require.Equal(t, uint16(7), toUint16(int64(7)))
	require.Equal(t, uint16(0), toUint16("not a number"))
	require.Equal(t, uint16(0), toUint16(nil))
}

func TestLatestVersionReturnsLastArrayEntry(t *testing.T) {
	raw := bson.M{
		"versions": bson.A{
			nodeDoc{NodeID: 1, Version: 1},
			nodeDoc{NodeID: 1, Version: 2},
			nodeDoc{NodeID: 1, Version: 3},
		},
	}
	got, ok := latestVersion[nodeDoc](raw, "versions")
	require.True(t, ok)
	require.Equal(t, uint32(3), got.Version)
}

func TestLatestVersionMissingKeyReturnsFalse(t *testing.T) {
	_, ok := latestVersion[nodeDoc](bson.M{}, "versions")
	require.False(t, ok)
}

func TestLatestVersionEmptyArrayReturnsFalse(t *testing.T) {
	_, ok := latestVersion[nodeDoc](bson.M{"versions": bson.A{}}, "versions")
	require.False(t, ok)
}

// fakeScheduler satisfies Scheduler without pulling in a real
// *cron.Cron, letting StartPeriodicFlush's wiring be checked in
// isolation from the scheduler implementation.
type fakeScheduler struct {
	spec string
	cmd  func()
	err  error
}

func (f *fakeScheduler) AddFunc(spec string, cmd func()) (cron.EntryID, error) {
	f.spec = spec
	f.cmd = cmd
	return 1, f.err
}

func TestStartPeriodicFlushRegistersTheGivenExpression(t *testing.T) {
	sched := &fakeScheduler{}
	err := StartPeriodicFlush(context.Background(), sched, "@every 30s", &Store{}, node.NewStore())
	require.NoError(t, err)
	require.Equal(t, "@every 30s", sched.spec)
	require.NotNil(t, sched.cmd)
}

func TestStartPeriodicFlushPropagatesSchedulingError(t *testing.T) {
	sched := &fakeScheduler{err: errors.New("boom")}
	err := StartPeriodicFlush(context.Background(), sched, "@every 30s", &Store{}, node.NewStore())
	require.Error(t, err)
}
