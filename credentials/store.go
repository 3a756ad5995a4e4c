// Package credentials holds the staff session: the access/refresh token pair
// and the profile flags that live next to it. Storage is pluggable through
// Store so the same session can live in memory, in an encrypted file or in
// Redis.
package credentials

import (
	"context"
	"slices"

	"github.com/jrsteele09/taxappeal-client/internal/errors"
)

// Key names a single session value. The names match the keys the web client
// keeps in browser storage so sessions can be moved between the two.
type Key string

const (
	AccessTokenKey  Key = "staff_token"
	RefreshTokenKey Key = "staff_refresh_token"
	RoleKey         Key = "staff_role"
	NameKey         Key = "staff_name"
	StaffIDKey      Key = "staff_id"
	ProxyKey        Key = "staff_is_proxy"
)

// Keys lists every session key. Clear removes all of them.
var Keys = []Key{AccessTokenKey, RefreshTokenKey, RoleKey, NameKey, StaffIDKey, ProxyKey}

// IsSessionKey reports whether k is one of Keys.
func IsSessionKey(k Key) bool {
	return slices.Contains(Keys, k)
}

// CheckKeys returns ErrInvalidKey for the first key that is not a session
// key. Stores only hold what Clear removes.
func CheckKeys(keys ...Key) error {
	for _, k := range keys {
		if !IsSessionKey(k) {
			return errors.Wrapf(errors.ErrInvalidKey, "%q", k)
		}
	}
	return nil
}

// CheckValues is CheckKeys over the keys of values.
func CheckValues(values map[Key]string) error {
	for k := range values {
		if err := CheckKeys(k); err != nil {
			return err
		}
	}
	return nil
}
