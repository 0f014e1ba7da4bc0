package repository

import (
	"strings"

	"gorm.io/gorm"
)

var (
	itemSearchFields  = []string{"items.title", "items.description", "items.condition"}
	orderSearchFields = []string{"orders.number", "orders.tracking", "items.title", "items.description"}
)

// NotDeleted filters soft-deleted rows of the given table.
func NotDeleted(table string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(table+".delete_fl = ?", false)
	}
}

// MatchTerms requires every term to appear, case-insensitively, in at least one of fields.
func MatchTerms(terms []string, fields []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, term := range terms {
			pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
			clauses := make([]string, 0, len(fields))
			args := make([]interface{}, 0, len(fields))
			for _, f := range fields {
				clauses = append(clauses, "LOWER("+f+") LIKE ?")
				args = append(args, pattern)
			}
			db = db.Where("("+strings.Join(clauses, " OR ")+")", args...)
		}
		return db
	}
}

// ItemSearch is the item search: not deleted and every term matching title, description or condition.
func ItemSearch(terms []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return MatchTerms(terms, itemSearchFields)(NotDeleted("items")(db))
	}
}

// OrderSearch matches order number, tracking and the ordered item's text.
func OrderSearch(terms []string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Joins("JOIN items ON items.id = orders.item_id")
		return MatchTerms(terms, orderSearchFields)(NotDeleted("orders")(db))
	}
}

// apply runs the scopes eagerly so the chain can serve both Count and Find.
func apply(db *gorm.DB, scopes ...func(*gorm.DB) *gorm.DB) *gorm.DB {
	for _, scope := range scopes {
		db = scope(db)
	}
	return db.Session(&gorm.Session{})
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
