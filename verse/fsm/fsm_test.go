// Tests for the uniform entity lifecycle machine (spec.md §4.4).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verse-project/verse/vtypes"
)

func TestMachineStartsReservedAndEmpty(t *testing.T) {
	m := NewMachine()
	require.Equal(t, vtypes.Reserved, m.State())
	require.True(t, m.Empty())
	require.Equal(t, 0, m.FollowerCount())
}

func TestAddFollowerMovesToCreating(t *testing.T) {
	m := NewMachine()
	m.AddFollower(1)
	require.Equal(t, vtypes.Creating, m.State())
	require.Equal(t, 1, m.FollowerCount())
	st, ok := m.FollowerState(1)
	require.True(t, ok)
	require.Equal(t, vtypes.Creating, st)
}

func TestAddFollowerIdempotent(t *testing.T) {
	m := NewMachine()
	m.AddFollower(1)
	m.AddFollower(1)
	require.Equal(t, 1, m.FollowerCount())
}

func TestAckCreateSingleFollowerReachesCreated(t *testing.T) {
	m := NewMachine()
	m.AddFollower(1)
	destroyPending := m.AckCreate(1)
	require.False(t, destroyPending)
	require.Equal(t, vtypes.Created, m.State())
}

func TestAckCreateWaitsForEveryFollower(t *testing.T) {
	m := NewMachine()
	m.AddFollower(1)
	m.AddFollower(2)
	m.AckCreate(1)
	require.Equal(t, vtypes.Creating, m.State(), "state must not advance until all followers ack")
	m.AckCreate(2)
	require.Equal(t, vtypes.Created, m.State())
}

func TestAckCreateFromUntrackedFollowerIsIgnored(t *testing.T) {
	m := NewMachine()
	m.AddFollower(1)
	destroyPending := m.AckCreate(99)
	require.False(t, destroyPending)
	require.Equal(t, vtypes.Creating, m.State())
}

func TestRequestDestroySendsToCreatedFollowersImmediately(t *testing.T) {
	m := NewMachine()
	m.AddFollower(1)
	m.AckCreate(1)
	ready := m.RequestDestroy()
	require.Equal(t, []FollowerKey{1}, ready)
	require.Equal(t, vtypes.Deleting, m.State())
}

// TestDestroyRacesCreateAck covers spec.md §8's "destroy races
// subscribe-ack" scenario: a destroy requested while a follower is
// still CREATING must not be sent to it until that follower's own
// create_ack arrives, preserving "create always precedes destroy".
func TestDestroyRacesCreateAck(t *testing.T) {
	m := NewMachine()
	m.AddFollower(1)
	m.AddFollower(2)
	m.AckCreate(1) // follower 1 is CREATED, follower 2 still CREATING

	ready := m.RequestDestroy()
	require.Equal(t, []FollowerKey{1}, ready, "only the already-CREATED follower is sent destroy now")

	st, ok := m.FollowerState(2)
	require.True(t, ok)
	require.Equal(t, vtypes.Creating, st, "follower 2 has not acked create yet")

	destroyPending := m.AckCreate(2)
	require.True(t, destroyPending, "create_ack from follower 2 must report a deferred destroy")
	st, ok = m.FollowerState(2)
	require.True(t, ok)
	require.Equal(t, vtypes.Deleting, st)
}

func TestAckDestroyDrainsToDeleted(t *testing.T) {
	m := NewMachine()
	m.AddFollower(1)
	m.AddFollower(2)
	m.AckCreate(1)
	m.AckCreate(2)
	m.RequestDestroy()

	deleted := m.AckDestroy(1)
	require.False(t, deleted)
	require.False(t, m.Empty())

	deleted = m.AckDestroy(2)
	require.True(t, deleted)
	require.True(t, m.Empty())
	require.Equal(t, vtypes.Deleted, m.State())
}

func TestRemoveFollowerUnackedDuringCreating(t *testing.T) {
	m := NewMachine()
	m.AddFollower(1)
	m.AddFollower(2)
	m.AckCreate(1)

	deleted := m.RemoveFollowerUnacked(2)
	require.False(t, deleted)
	require.Equal(t, vtypes.Created, m.State(), "removing the last un-acked follower completes creation")
}

func TestRemoveFollowerUnackedDrainsEntity(t *testing.T) {
	m := NewMachine()
	m.AddFollower(1)
	m.RequestDestroy()
	deleted := m.RemoveFollowerUnacked(1)
	require.True(t, deleted)
	require.Equal(t, vtypes.Deleted, m.State())
}

func TestFollowersSnapshotPreservesInsertionOrder(t *testing.T) {
	m := NewMachine()
	m.AddFollower(3)
	m.AddFollower(1)
	m.AddFollower(2)
	got := m.Followers()
	require.Len(t, got, 3)
	require.Equal(t, FollowerKey(3), got[0].Key)
	require.Equal(t, FollowerKey(1), got[1].Key)
	require.Equal(t, FollowerKey(2), got[2].Key)
}
