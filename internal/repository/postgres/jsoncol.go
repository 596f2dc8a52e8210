// Package postgres implements the repository boundary (internal/repository)
// against PostgreSQL with sqlx and lib/pq, grounded on the sqlx/database-sql
// access patterns in smartramana-developer-mesh's pkg/models (JSON
// driver.Valuer/sql.Scanner wrappers) and pkg/database/migration. It is
// the second of the two backings repository.Store documents; internal/
// repository/memory remains the default and the one the test suite runs
// against.
package postgres

import (
	"encoding/json"
	"fmt"
)

// scanJSON and toJSON marshal/unmarshal an arbitrary Go value through a
// jsonb column. Every open-shape document (domain.Doc) and every string/id
// slice column in this package goes through them, grounded on the
// driver.Valuer/sql.Scanner JSON wrappers in smartramana-developer-mesh's
// pkg/models (e.g. WorkflowSteps) — collapsed here to two functions since
// none of these columns need column-specific SQL behavior beyond JSON
// marshaling.
func scanJSON(value any, dst any) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into json column", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func toJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}
