// CSV user account loading (vs_load_user_accounts_csv_file): a file
// with header "username,password,UID,real name" followed by one
// record per line, rejecting duplicate usernames and duplicate ids.
/*
 * Copyright (c) 2014-2026 Verse project contributors. All rights reserved.
 */
package authn

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/verse-project/verse/user"
	"github.com/verse-project/verse/vtypes"
)

const csvHeaderUsername = "username"

// LoadCSV reads user accounts from r into dir, skipping the header row
// and any record whose username or uid collides with one already
// loaded (vs_load_user_accounts_csv_file's uniqueness check). It
// returns the number of accounts added.
func LoadCSV(r io.Reader, dir *user.Directory) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 4

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "authn: reading csv header")
	}
	if len(header) == 0 || header[0] != csvHeaderUsername {
		return 0, errors.New("authn: csv file missing expected \"username,password,UID,real name\" header")
	}

	added := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return added, errors.Wrap(err, "authn: reading csv record")
		}

		username, password, uidStr, realname := rec[0], rec[1], rec[2], rec[3]
		uid, err := strconv.ParseUint(uidStr, 10, 16)
		if err != nil {
			glog.Warningf("authn: csv record for %q has unparsable UID %q, skipping", username, uidStr)
			continue
		}

		if _, exists := dir.ByUsername(username); exists {
			glog.Warningf("authn: user %s could not be added, username already in use", username)
			continue
		}
		if _, exists := dir.ByID(vtypes.UserID(uid)); exists {
			glog.Warningf("authn: user %s could not be added, UID %d already in use", username, uid)
			continue
		}

		dir.Add(&user.User{
			ID:         vtypes.UserID(uid),
			Username:   username,
			Realname:   realname,
			Credential: password,
		})
		glog.V(1).Infof("authn: added user %s (uid %d)", username, uid)
		added++
	}
	return added, nil
}
