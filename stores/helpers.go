package stores

import (
	"database/sql"
	"time"

	"github.com/oarkflow/date"
)

func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

// affected reports rows touched by a write; drivers that cannot count
// report -1 so absence checks fall back to "assume it happened".
func affected(res sql.Result) int64 {
	if res == nil {
		return -1
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}
