// LDAP bind-as-user backend (vs_auth_ldap.c's vs_ldap_auth_user): bind
// to the configured directory server as the candidate user's DN using
// the supplied password; a successful bind is the authentication
// check, the LDAP server never sees the password compared in-process.
// Recovered from original_source per spec.md's supplemented features
// list (the distilled spec.md does not mention LDAP at all).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package authn

import (
	"context"
	"fmt"

	"github.com/verse-project/verse/user"
	"github.com/verse-project/verse/vtypes"
)

// Binder is the minimal capability LDAPAuthenticator needs: bind as a
// DN/password pair, succeeding only if the directory server accepts
// the credentials. NetBinder (ldapbind.go) is the implementation
// backed by github.com/go-ldap/ldap/v3, matching vs_ldap_auth_user's
// ldap_simple_bind_s call; the interface lets tests supply a fake.
type Binder interface {
	Bind(ctx context.Context, dn, password string) error
}

// LDAPAuthenticator resolves a username to its distinguished name via
// Users (the matching entry's Credential) and checks the password by
// binding. Nothing in this package fills Users from the directory; a
// username Users does not hold is bound through DNTemplate and then
// rejected, since it has no local user id.
type LDAPAuthenticator struct {
	Users *user.Directory
	Bind  Binder
	// DNTemplate formats a username into a full DN when Users has no
	// cached entry yet, e.g. "uid=%s,ou=people,dc=example,dc=com"
	// (vs_ldap_add_concrete_user's search-then-bind fallback).
	DNTemplate string
}

func (a *LDAPAuthenticator) Authenticate(ctx context.Context, username, password string) (vtypes.UserID, bool) {
	u, ok := a.Users.ByUsername(username)
	dn := ""
	if ok {
		dn = u.Credential
	} else if a.DNTemplate != "" {
		dn = fmt.Sprintf(a.DNTemplate, username)
	} else {
		return 0, false
	}

	if err := a.Bind.Bind(ctx, dn, password); err != nil {
		return 0, false
	}
	if !ok {
		return 0, false // bind succeeded but we have no local uid mapping yet
	}
	return u.ID, true
}
