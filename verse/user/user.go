// Package user holds the user directory consumed by the Verse core
// (spec.md §1: "a read-only user directory"; §3 User). Authentication
// itself lives in verse/authn; this package is the data side.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package user

import (
	"sync"

	"github.com/verse-project/verse/vtypes"
)

// User is a Verse account: real accounts plus the two fake principals
// (super-user, other-users) spec.md §3 requires to always exist.
type User struct {
	ID       vtypes.UserID
	Username string
	Realname string
	// Credential is opaque to this package; authn backends interpret
	// it (password hash, LDAP DN, ...).
	Credential string
	Fake       bool
}

// Key satisfies container.Keyed[vtypes.UserID].
func (u *User) Key() vtypes.UserID { return u.ID }

// Directory is the read-only (after bootstrap) set of known users,
// keyed by id and by username for authn lookups.
type Directory struct {
	mu       sync.RWMutex
	byID     map[vtypes.UserID]*User
	byName   map[string]*User
}

func NewDirectory() *Directory {
	return &Directory{
		byID:   make(map[vtypes.UserID]*User),
		byName: make(map[string]*User),
	}
}

// Add registers a user. Bootstrap calls this for the two fake
// principals and for every configured real account; it is not called
// again once the server reaches READY (spec.md §9 "Global server
// context" lifecycle rule).
func (d *Directory) Add(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[u.ID] = u
	d.byName[u.Username] = u
}

func (d *Directory) ByID(id vtypes.UserID) (*User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	return u, ok
}

func (d *Directory) ByUsername(name string) (*User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byName[name]
	return u, ok
}

func (d *Directory) All() []*User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*User, 0, len(d.byID))
	for _, u := range d.byID {
		out = append(out, u)
	}
	return out
}

// SuperUser and OtherUsers construct the two fake principals spec.md
// §3 mandates: "VRS_SUPER_USER_UID (owner of system nodes) and
// VRS_OTHER_USERS_UID (wildcard permission principal)".
func SuperUser() *User {
	return &User{ID: vtypes.VRSSuperUserUID, Username: "super", Realname: "Verse Super User", Fake: true}
}

func OtherUsers() *User {
	return &User{ID: vtypes.VRSOtherUsersUID, Username: "other_users", Realname: "Other Users", Fake: true}
}
