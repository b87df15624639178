package warehouse

import (
	"fmt"
	"strings"
)

// ShowSemanticViews lists every semantic view the current role can see.
const ShowSemanticViews = "SHOW SEMANTIC VIEWS IN ACCOUNT"

// SemanticViewsFromTable turns a SHOW SEMANTIC VIEWS result into fully
// qualified database.schema.name identifiers. Column names are compared
// after stripping quotes and upper-casing.
func SemanticViewsFromTable(t *Table) ([]string, error) {
	if t.Empty() {
		return nil, nil
	}

	idx := map[string]int{}
	for i, c := range t.Columns {
		idx[strings.ToUpper(strings.Trim(strings.TrimSpace(c), `"`))] = i
	}
	var cols [3]int
	for i, name := range []string{"DATABASE_NAME", "SCHEMA_NAME", "NAME"} {
		j, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("semantic view listing has no %s column", name)
		}
		cols[i] = j
	}

	views := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		views = append(views, row[cols[0]]+"."+row[cols[1]]+"."+row[cols[2]])
	}
	return views, nil
}
