package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/facegate/internal/match"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Face is the metadata of an enrolled face.
type Face struct {
	ID        int64     `json:"id"`
	Dim       int       `json:"dim"`
	CreatedAt time.Time `json:"created_at"`
}

// FaceRepository stores face embeddings. It implements match.Collection.
type FaceRepository struct {
	store *Store
}

var _ match.Collection = (*FaceRepository)(nil)

// Faces returns the face repository for this store.
func (s *Store) Faces() *FaceRepository {
	return &FaceRepository{store: s}
}

// Ready reports whether the underlying store is open.
func (r *FaceRepository) Ready() bool {
	return r.store.Ready()
}

// Count returns the number of enrolled faces.
func (r *FaceRepository) Count() (int, error) {
	if !r.Ready() {
		return 0, match.ErrNotReady
	}

	var n int
	if err := r.store.db.QueryRow(`SELECT COUNT(*) FROM faces`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// All loads every stored face in id order.
func (r *FaceRepository) All() ([]match.Record, error) {
	if !r.Ready() {
		return nil, match.ErrNotReady
	}

	rows, err := r.store.db.Query(`SELECT id, feature FROM faces ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []match.Record
	for rows.Next() {
		var (
			id   int64
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		f, err := match.DecodeFeature(blob)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", id, err)
		}
		records = append(records, match.Record{ID: id, Feature: f})
	}

	return records, rows.Err()
}

// Insert stores f and returns its new id. Every stored face must have the
// same dimension.
func (r *FaceRepository) Insert(f match.Feature) (int64, error) {
	if !r.Ready() {
		return 0, match.ErrNotReady
	}
	if len(f) == 0 {
		return 0, match.ErrEmptyFeature
	}

	tx, err := r.store.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var dim int
	err = tx.QueryRow(`SELECT dim FROM faces LIMIT 1`).Scan(&dim)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, err
	case dim != len(f):
		return 0, fmt.Errorf("%w: have %d, got %d", match.ErrDimensionMismatch, dim, len(f))
	}

	res, err := tx.Exec(
		`INSERT INTO faces (feature, dim, created_at) VALUES (?, ?, ?)`,
		match.EncodeFeature(f), len(f), time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// List returns the metadata of every stored face in id order.
func (r *FaceRepository) List() ([]Face, error) {
	if !r.Ready() {
		return nil, match.ErrNotReady
	}

	rows, err := r.store.db.Query(`SELECT id, dim, created_at FROM faces ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faces []Face
	for rows.Next() {
		var f Face
		if err := rows.Scan(&f.ID, &f.Dim, &f.CreatedAt); err != nil {
			return nil, err
		}
		faces = append(faces, f)
	}

	return faces, rows.Err()
}

// Clear removes every stored face. The id sequence is kept, so ids of
// cleared faces are never handed out again.
func (r *FaceRepository) Clear() error {
	if !r.Ready() {
		return match.ErrNotReady
	}

	_, err := r.store.db.Exec(`DELETE FROM faces`)
	return err
}
