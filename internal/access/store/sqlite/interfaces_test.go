package sqlite_test

import (
	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	sqlitestore "github.com/BrandonDHaskell/gymaccess/internal/access/store/sqlite"
)

var (
	_ store.CredentialStore    = (*sqlitestore.CredentialStore)(nil)
	_ store.TokenStore         = (*sqlitestore.TokenStore)(nil)
	_ store.AccessEventStore   = (*sqlitestore.AccessEventStore)(nil)
	_ store.AttendanceStore    = (*sqlitestore.AttendanceStore)(nil)
	_ store.PersonMappingStore = (*sqlitestore.PersonMappingStore)(nil)
	_ store.MembershipStore    = (*sqlitestore.MembershipStore)(nil)
	_ store.DeviceStore        = (*sqlitestore.DeviceStore)(nil)
)
