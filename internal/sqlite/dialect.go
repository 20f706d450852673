package sqlite

import (
	"strconv"
	"strings"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// dialect captures the differences between the supported stores. Queries
// are written with ? placeholders and rebound per dialect.
type dialect struct {
	name       string
	driver     string
	blobType   string
	dollarArgs bool
}

var (
	dialectSQLite   = dialect{name: types.BackendSQLite, driver: "sqlite", blobType: "BLOB"}
	dialectPostgres = dialect{name: types.BackendPostgres, driver: "postgres", blobType: "BYTEA", dollarArgs: true}
)

func dialectFor(backend string) dialect {
	if backend == types.BackendPostgres {
		return dialectPostgres
	}
	return dialectSQLite
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL. Queries in
// this package never carry ? inside string literals.
func (d dialect) rebind(query string) string {
	if !d.dollarArgs || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
