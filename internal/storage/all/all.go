// Package all registers every built-in storage backend. Import it for side
// effects:
//
//	import _ "companyload/internal/storage/all"
//
// which makes "postgres", "mssql", "mysql" and "sqlite" available to
// storage.Open.
package all

import (
	_ "companyload/internal/storage/mssql"
	_ "companyload/internal/storage/mysql"
	_ "companyload/internal/storage/postgres"
	_ "companyload/internal/storage/sqlite"
)
