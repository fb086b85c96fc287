package database

import (
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsFold matches rows whose column contains s, ignoring case. s is
// matched literally: % and _ are not wildcards. SQLite's LOWER only folds
// ASCII, so the needle is folded the same way there.
func ContainsFold(q sqlx.ExtContext, col, s string) exp.Expression {
	needle := strings.ToLower(s)
	if q.DriverName() == DriverSQLite {
		needle = lowerASCII(s)
	}
	return goqu.L(`LOWER(?) LIKE ? ESCAPE '\'`, goqu.C(col), "%"+likeEscaper.Replace(needle)+"%")
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
