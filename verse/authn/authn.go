// Package authn implements Verse's pluggable login check (spec.md §1:
// "a login/authenticate() step ... treated as a consumed interface,
// not reimplemented"). Two backends are grounded directly on the
// original server: a flat CSV file of username/password/uid/realname
// records (vs_auth_csv.c) and an LDAP bind-as-user backend
// (vs_auth_ldap.c), recovered here per spec.md's supplemented features
// even though the distilled spec.md treats authentication as entirely
// out of scope for the protocol surface.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package authn

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/verse-project/verse/user"
	"github.com/verse-project/verse/vtypes"
)

// Authenticator checks a username/password pair and reports the
// resolved user id on success.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (vtypes.UserID, bool)
}

// Chain tries each Authenticator in order, returning the first
// success, so a login may be satisfied by any of its backends.
// cmd/verseserver selects a single backend and does not build a Chain.
type Chain []Authenticator

func (c Chain) Authenticate(ctx context.Context, username, password string) (vtypes.UserID, bool) {
	for _, a := range c {
		if id, ok := a.Authenticate(ctx, username, password); ok {
			return id, ok
		}
	}
	return 0, false
}

// DirectoryAuthenticator checks credentials against a user.Directory
// populated from a CSV file by LoadCSV (vs_csv_auth_user: linear scan,
// exact password match, fake users excluded from login). A stored
// Credential beginning with one of bcrypt's own prefixes is verified
// via golang.org/x/crypto/bcrypt instead of byte comparison, so an
// operator can migrate a CSV file to hashed credentials without any
// code change; rows left in their original cleartext form (the only
// form vs_auth_csv.c ever wrote) keep comparing exactly as before.
type DirectoryAuthenticator struct {
	Users *user.Directory
}

func (a *DirectoryAuthenticator) Authenticate(_ context.Context, username, password string) (vtypes.UserID, bool) {
	u, ok := a.Users.ByUsername(username)
	if !ok || u.Fake {
		return 0, false
	}
	if looksHashed(u.Credential) {
		if bcrypt.CompareHashAndPassword([]byte(u.Credential), []byte(password)) != nil {
			return 0, false
		}
		return u.ID, true
	}
	if u.Credential != password {
		return 0, false
	}
	return u.ID, true
}

func looksHashed(credential string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(credential, prefix) {
			return true
		}
	}
	return false
}
