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
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/apperr"

	"github.com/pterm/pterm"
)

// DefaultTenant is used when a tenant id is empty or has no allowed characters.
const DefaultTenant = "default"

const storeExt = ".db"

// Sanitize keeps only letters, digits, '-', '_' and '.'. An empty result,
// or one made only of dots, becomes DefaultTenant.
func Sanitize(tenant string) string {
	var b strings.Builder
	b.Grow(len(tenant))
	for _, r := range tenant {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if strings.Trim(cleaned, ".") == "" {
		return DefaultTenant
	}
	return cleaned
}

// Registry owns the data directory holding one SQLite file per tenant.
type Registry struct {
	dataDir string
	logger  *pterm.Logger

	// one writer lock per tenant
	locks sync.Map
	// tenant files whose schema was ensured by this process
	ensured sync.Map
}

// NewRegistry creates the data directory if needed.
func NewRegistry(dataDir string, logger *pterm.Logger) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, apperr.Storage("create data directory", err)
	}
	return &Registry{dataDir: dataDir, logger: logger}, nil
}

// DataDir returns the directory holding the tenant files.
func (r *Registry) DataDir() string {
	return r.dataDir
}

// Path returns the file backing a tenant after sanitization.
func (r *Registry) Path(tenant string) string {
	return filepath.Join(r.dataDir, Sanitize(tenant)+storeExt)
}

// Open returns a handle on the tenant's store, creating the file and schema
// on first use. The caller must Close the handle.
func (r *Registry) Open(tenant string) (*Store, error) {
	tenant = Sanitize(tenant)
	path := r.Path(tenant)

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	db, err := openTenantDB(path, r.logger)
	if err != nil {
		return nil, apperr.Storage(fmt.Sprintf("open tenant %s", tenant), err)
	}

	store := &Store{
		Tenant:  tenant,
		path:    path,
		db:      db,
		writeMu: r.lockFor(tenant),
		logger:  r.logger,
	}

	if _, done := r.ensured.Load(path); isNew || !done {
		if err := r.ensureSchema(store); err != nil {
			store.Close()
			return nil, err
		}
		r.ensured.Store(path, struct{}{})
		if isNew {
			r.logger.Info("Created tenant store", r.logger.Args("tenant", tenant))
		}
	}

	return store, nil
}

func (r *Registry) ensureSchema(store *Store) error {
	store.writeMu.Lock()
	defer store.writeMu.Unlock()

	if err := RunMigrations(store.db); err != nil {
		r.logger.WithCaller().Error("Failed to run tenant migrations", r.logger.Args("tenant", store.Tenant, "error", err))
		return apperr.Storage(fmt.Sprintf("migrate tenant %s", store.Tenant), err)
	}
	if err := OptimizeDatabase(store.db, r.logger); err != nil {
		r.logger.Warn("Tenant optimization had warnings", r.logger.Args("tenant", store.Tenant, "error", err))
	}
	return nil
}

func (r *Registry) lockFor(tenant string) *sync.Mutex {
	mu, _ := r.locks.LoadOrStore(tenant, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// List returns every tenant that has a store file, sorted ascending.
func (r *Registry) List() ([]string, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, apperr.Storage("list tenants", err)
	}

	tenants := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, storeExt) {
			continue
		}
		tenants = append(tenants, strings.TrimSuffix(name, storeExt))
	}
	sort.Strings(tenants)
	return tenants, nil
}

// Size returns the combined size of the tenant files including WAL segments.
func (r *Registry) Size() (int64, error) {
	var total int64
	err := filepath.WalkDir(r.dataDir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
