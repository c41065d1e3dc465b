// Package repository holds the gorm data access for the marketplace core.
// Methods that take a tx run on it when it is non-nil and on the
// repository's own handle otherwise, so callers inside a transaction never
// reach for a second connection.
package repository

import (
	"errors"

	"campusmart/internal/apperr"

	"gorm.io/gorm"
)

const maxPageLimit = 100

// Page is 1-based page/limit pagination.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page to sane bounds, using def when no limit is set.
func (p Page) Normalize(def int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Pages is the number of pages needed for total rows.
func (p Page) Pages(total int64) int {
	if p.Limit <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

func pick(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

// notFound maps gorm.ErrRecordNotFound to an apperr NotFound for what.
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	return err
}
