package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Event is a recorded enroll or recognize outcome.
type Event struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Outcome    string    `json:"outcome"`
	FaceID     int64     `json:"face_id"`
	Similarity float64   `json:"similarity"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventRepository records recognition history.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create inserts a new event. An empty ID is filled with a random UUID.
func (r *EventRepository) Create(e *Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO events (id, kind, outcome, face_id, similarity, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Outcome, e.FaceID, e.Similarity, e.Message, e.CreatedAt,
	)
	return err
}

// Recent returns up to limit events, newest first. A non-positive limit
// returns every event.
func (r *EventRepository) Recent(limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, kind, outcome, face_id, similarity, message, created_at
		 FROM events ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.Kind, &e.Outcome, &e.FaceID, &e.Similarity, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Clear removes all events.
func (r *EventRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM events`)
	return err
}
