package postgres

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/backoffice/backend-go/internal/domain"
)

// buildWindowClause constructs the SQL filter for a reporting window. The window is
// open-ended: only a lower bound on timeColumn is applied.
func buildWindowClause(window domain.ReportWindow, alias, timeColumn string, startIndex int) (string, []interface{}) {
	alias = normalizeAlias(alias)

	var (
		clauses []string
		args    []interface{}
	)
	idx := startIndex

	clauses = append(clauses, fmt.Sprintf("%s%s >= $%d", alias, timeColumn, idx))
	args = append(args, window.Start)
	idx++

	if branch := strings.TrimSpace(window.BranchID); branch != "" {
		clauses = append(clauses, fmt.Sprintf("%sbranch_id = $%d", alias, idx))
		args = append(args, branch)
	}

	return " AND " + strings.Join(clauses, " AND "), args
}

func normalizeAlias(alias string) string {
	if alias == "" {
		return ""
	}
	if !strings.HasSuffix(alias, ".") {
		return alias + "."
	}
	return alias
}
