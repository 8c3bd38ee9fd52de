// Concrete Binder backed by github.com/go-ldap/ldap/v3, the real
// successor to the C server's raw OpenLDAP client calls
// (ldap_initialize/ldap_set_option/ldap_simple_bind_s in
// vs_auth_ldap.c).
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package authn

import (
	"context"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
)

// NetBinder dials Addr fresh for every bind attempt, matching
// vs_ldap_auth_user's one-shot connect/bind/unbind sequence rather
// than pooling a long-lived connection.
type NetBinder struct {
	Addr    string // "ldap://host:389" or "ldaps://host:636"
	Timeout time.Duration
}

func (b *NetBinder) Bind(ctx context.Context, dn, password string) error {
	conn, err := ldap.DialURL(b.Addr)
	if err != nil {
		return errors.Wrapf(err, "authn: dialing ldap server %s", b.Addr)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	} else if b.Timeout > 0 {
		conn.SetTimeout(b.Timeout)
	}

	if err := conn.Bind(dn, password); err != nil {
		return errors.Wrapf(err, "authn: ldap bind as %s", dn)
	}
	return nil
}
