package indexes

import (
	"strings"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// Definition represents an index name and its creation SQL.
type Definition struct {
	Name  string
	Table string
	SQL   string
}

// expectedDefinitions is the single source of truth for tenant indexes.
var expectedDefinitions = []Definition{
	// breakdowns are read per dimension, highest count first
	{Name: "idx_dimension_rank", Table: "dimension_counts", SQL: `CREATE INDEX IF NOT EXISTS idx_dimension_rank ON dimension_counts(dimension, count DESC)`},

	// bot candidate ranking
	{Name: "idx_activity_score", Table: "visitor_activity", SQL: `CREATE INDEX IF NOT EXISTS idx_activity_score ON visitor_activity(automation_score DESC, request_count DESC)`},

	// recent bot log entries
	{Name: "idx_bot_logs_detected", Table: "bot_logs", SQL: `CREATE INDEX IF NOT EXISTS idx_bot_logs_detected ON bot_logs(detected_at DESC)`},
}

// Expected returns the index definitions in creation order.
func Expected() []Definition {
	out := make([]Definition, len(expectedDefinitions))
	copy(out, expectedDefinitions)
	return out
}

// Ensure reconciles expected indexes against SQLite, dropping unknown idx_
// indexes on managed tables and creating missing ones.
func Ensure(db *gorm.DB, logger *pterm.Logger) (created int, dropped int, err error) {
	existingIndexes, err := fetchExistingIndexes(db, managedTables())
	if err != nil {
		return 0, 0, err
	}

	existingSet := make(map[string]struct{}, len(existingIndexes))
	for _, name := range existingIndexes {
		existingSet[name] = struct{}{}
	}

	expectedSet := make(map[string]Definition, len(expectedDefinitions))
	for _, def := range expectedDefinitions {
		expectedSet[def.Name] = def
	}

	for name := range existingSet {
		if _, ok := expectedSet[name]; ok {
			continue
		}
		if err := db.Exec("DROP INDEX IF EXISTS " + name).Error; err != nil {
			logger.Warn("Failed to drop index", logger.Args("index", name, "error", err))
			continue
		}
		dropped++
	}

	for _, def := range expectedDefinitions {
		if _, ok := existingSet[def.Name]; ok {
			continue
		}
		if err := db.Exec(def.SQL).Error; err != nil {
			logger.Warn("Failed to create index", logger.Args("index", def.Name, "error", err))
			return created, dropped, err
		}
		created++
	}

	return created, dropped, nil
}

func managedTables() []string {
	seen := make(map[string]struct{})
	var tables []string
	for _, def := range expectedDefinitions {
		if _, ok := seen[def.Table]; ok {
			continue
		}
		seen[def.Table] = struct{}{}
		tables = append(tables, def.Table)
	}
	return tables
}

func fetchExistingIndexes(db *gorm.DB, tables []string) ([]string, error) {
	var names []string
	rows, err := db.Raw(`SELECT name FROM sqlite_master WHERE type='index' AND tbl_name IN ? AND name LIKE 'idx_%'`, tables).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names, rows.Err()
}
