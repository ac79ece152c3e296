// Package store defines the persistence contracts every stateful feature is
// built on. A Collection holds many records of one type keyed by a
// store-assigned id; a Single holds at most one document.
//
// Backends live in subpackages (local, sqlstore, bolt) and must give the same
// observable semantics. None of them coordinate writers across processes:
// the per-instance mutex only serializes writers inside one process.
package store

import "time"

// Stamps carries the provenance timestamps shared by records and documents.
type Stamps struct {
	CreatedUtc time.Time `json:"createdUtc"`
	UpdatedUtc time.Time `json:"updatedUtc"`
}

// Timestamps exposes the stamps of any type embedding Stamps.
func (s *Stamps) Timestamps() *Stamps { return s }

// Meta is embedded by collection records. ID is assigned by the store and
// never changes afterwards.
type Meta struct {
	ID uint64 `json:"id"`
	Stamps
}

// Metadata exposes the metadata of any type embedding Meta.
func (m *Meta) Metadata() *Meta { return m }

// Document is a singleton payload: timestamps, no id.
// Implementations are pointer types (e.g. *Settings).
type Document interface {
	Timestamps() *Stamps
}

// Record is a collection payload. Implementations are pointer types
// embedding Meta (e.g. *Grenade).
type Record interface {
	Document
	Metadata() *Meta
}

// Collection is CRUD over many records of one type.
type Collection[T Record] interface {
	// GetAll returns every persisted record in backend-defined order.
	GetAll() ([]T, error)
	// Get returns ErrNotFound when no record has the id.
	Get(id uint64) (T, error)
	// Add ignores any caller id, assigns the next id, stamps both
	// timestamps and returns the stored copy. The argument is not modified.
	Add(rec T) (T, error)
	// Update replaces an existing record, keeping its stored CreatedUtc.
	Update(rec T) error
	// Delete returns ErrNotFound when absent.
	Delete(id uint64) error
	// Exist never errors; any lookup failure reports false.
	Exist(id uint64) bool
}

// Single is CRUD over at most one document.
type Single[T Document] interface {
	Get() (T, error)
	// AddOrUpdate inserts the document or replaces the existing one,
	// preserving the original CreatedUtc.
	AddOrUpdate(doc T) error
	Delete() error
	Exists() bool
}

// Now is the clock used for stamping. Always UTC without a monotonic reading.
var Now = func() time.Time { return time.Now().UTC() }

// StampNew sets both timestamps of a freshly persisted value.
func StampNew(s *Stamps) {
	now := Now()
	s.CreatedUtc = now
	s.UpdatedUtc = now
}

// StampUpdate copies provenance from the stored value and advances
// UpdatedUtc, never moving it backwards.
func StampUpdate(s *Stamps, stored *Stamps) {
	now := Now()
	if now.Before(stored.UpdatedUtc) {
		now = stored.UpdatedUtc
	}
	s.CreatedUtc = stored.CreatedUtc
	s.UpdatedUtc = now
}
