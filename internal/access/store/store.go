// Package store declares the persistence contracts of the access-control
// integration. memory/ holds the test and dev implementations, sqlite/ the
// production ones.
package store

import "errors"

var ErrNotFound = errors.New("not found")
