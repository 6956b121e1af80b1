// Package pgcatalog mirrors a Catalog's interned names into Postgres via
// gorm, the way db/postgres.go opens a gorm connection and AutoMigrates a
// model. The mirror is strictly secondary: the in-memory catalog.Catalog
// stays authoritative for query execution, and nothing here is read back
// into it. Its purpose is cross-process auditing — letting an external tool
// inspect which labels/types/keys a running engine has interned without
// talking to the engine's own process.
package pgcatalog

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/hivellm/nexus/catalog"
)

// NameKind distinguishes which of the catalog's three namespaces a mirrored
// row belongs to.
type NameKind string

const (
	KindLabel   NameKind = "label"
	KindRelType NameKind = "rel_type"
	KindPropKey NameKind = "prop_key"
)

// InternedName is one row of the mirror: a namespace-qualified name observed
// in a running catalog, along with when it was first recorded.
type InternedName struct {
	ID        uint `gorm:"primaryKey"`
	Kind      NameKind `gorm:"uniqueIndex:idx_kind_name;not null"`
	Name      string   `gorm:"uniqueIndex:idx_kind_name;not null"`
	CreatedAt time.Time
}

// Mirror wraps a gorm Postgres connection holding the InternedName table.
type Mirror struct {
	db *gorm.DB
}

// Open connects to Postgres at pgURL and ensures the mirror table exists.
func Open(pgURL string) (*Mirror, error) {
	db, err := gorm.Open(postgres.Open(pgURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&InternedName{}); err != nil {
		return nil, err
	}
	return &Mirror{db: db}, nil
}

// Sync upserts every name currently interned in cat into the mirror,
// skipping names already recorded. It is safe to call repeatedly — only
// newly interned names since the last Sync produce writes.
func (m *Mirror) Sync(cat *catalog.Catalog) error {
	snap := cat.Snapshot()
	return m.db.Transaction(func(tx *gorm.DB) error {
		for _, name := range snap.Labels {
			if err := upsert(tx, KindLabel, name); err != nil {
				return err
			}
		}
		for _, name := range snap.RelTypes {
			if err := upsert(tx, KindRelType, name); err != nil {
				return err
			}
		}
		for _, name := range snap.PropertyKeys {
			if err := upsert(tx, KindPropKey, name); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsert(tx *gorm.DB, kind NameKind, name string) error {
	var existing InternedName
	err := tx.Where("kind = ? AND name = ?", kind, name).First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return tx.Create(&InternedName{Kind: kind, Name: name}).Error
}

// Names returns every mirrored name of the given kind, in insertion order.
func (m *Mirror) Names(kind NameKind) ([]string, error) {
	var rows []InternedName
	if err := m.db.Where("kind = ?", kind).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (m *Mirror) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
