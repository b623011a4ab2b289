// Package all links every ledger backend into the binary.
package all

import (
	_ "hfexport/internal/storage/mssql"
	_ "hfexport/internal/storage/postgres"
	_ "hfexport/internal/storage/sqlite"
)
