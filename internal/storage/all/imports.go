// Package all registers every built-in storage backend when imported:
//
//	import _ "tagfreq/internal/storage/all"
//
// makes "mssql", "mysql", "postgres" and "sqlite" available to storage.New.
package all

import (
	_ "tagfreq/internal/storage/mssql"
	_ "tagfreq/internal/storage/mysql"
	_ "tagfreq/internal/storage/postgres"
	_ "tagfreq/internal/storage/sqlite"
)
