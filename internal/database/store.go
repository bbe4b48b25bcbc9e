// MIT License
//
// Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//
package database

import (
	"errors"
	"fmt"
	"sync"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/apperr"

	"github.com/pterm/pterm"
	"gorm.io/gorm"
)

// Store is an open handle on one tenant's aggregates.
type Store struct {
	Tenant string

	path    string
	db      *gorm.DB
	writeMu *sync.Mutex
	logger  *pterm.Logger
	closed  bool
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Update runs fn in one transaction while holding the tenant's writer lock.
// Either every write in fn is committed or none is.
func (s *Store) Update(fn func(tx *gorm.DB) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.db.Transaction(fn); err != nil {
		return s.wrap("update", err)
	}
	return nil
}

// View runs fn against the store without taking the writer lock. WAL gives
// readers a consistent snapshot.
func (s *Store) View(fn func(db *gorm.DB) error) error {
	if err := fn(s.db); err != nil {
		return s.wrap("read", err)
	}
	return nil
}

// Snapshot writes a consistent copy of the store to dest using VACUUM INTO.
func (s *Store) Snapshot(dest string) error {
	if err := s.db.Exec("VACUUM INTO ?", dest).Error; err != nil {
		return s.wrap("snapshot", err)
	}
	return nil
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	sqlDB, err := s.db.DB()
	if err != nil {
		return s.wrap("close", err)
	}
	if err := sqlDB.Close(); err != nil {
		return s.wrap("close", err)
	}
	return nil
}

func (s *Store) wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	s.logger.WithCaller().Error("Tenant store failure",
		s.logger.Args("tenant", s.Tenant, "op", op, "error", err))
	return apperr.Storage(fmt.Sprintf("%s tenant %s", op, s.Tenant), err)
}
