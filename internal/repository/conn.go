package repository

import (
	"sync/atomic"

	"gorm.io/gorm"
)

// conn is the connection a repository runs on. It is empty until the database
// comes up and is read concurrently by request goroutines.
type conn struct {
	db atomic.Pointer[gorm.DB]
}

func (c *conn) SetDB(db *gorm.DB) {
	c.db.Store(db)
}

// get returns nil before SetDB.
func (c *conn) get() *gorm.DB {
	return c.db.Load()
}
