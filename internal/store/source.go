package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/handbow/internal/capture"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// CameraSource is a named camera the player can switch to.
type CameraSource struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Source    capture.Source `json:"source"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// SourceRepository provides CRUD operations for camera sources.
type SourceRepository struct {
	db *sql.DB
}

// Sources returns the camera source repository for this store.
func (s *Store) Sources() *SourceRepository {
	return &SourceRepository{db: s.db}
}

const sourceColumns = `id, name, kind, device, url, width, height, fps, active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*CameraSource, error) {
	cs := &CameraSource{}
	var kind string
	err := row.Scan(
		&cs.ID, &cs.Name, &kind, &cs.Source.Device, &cs.Source.URL,
		&cs.Source.Width, &cs.Source.Height, &cs.Source.FPS,
		&cs.Active, &cs.CreatedAt, &cs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	cs.Source.Kind = capture.SourceKind(kind)
	return cs, nil
}

// Create validates and inserts a camera source. An empty ID is filled in
// with a new UUID.
func (r *SourceRepository) Create(cs *CameraSource) error {
	if cs.Name == "" {
		return fmt.Errorf("camera source name is required")
	}
	if err := cs.Source.Validate(); err != nil {
		return err
	}
	if cs.ID == "" {
		cs.ID = uuid.New().String()
	}
	now := time.Now()
	cs.CreatedAt = now
	cs.UpdatedAt = now
	cs.Active = false

	_, err := r.db.Exec(
		`INSERT INTO camera_sources (id, name, kind, device, url, width, height, fps, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		cs.ID, cs.Name, string(cs.Source.Kind), cs.Source.Device, cs.Source.URL,
		cs.Source.Width, cs.Source.Height, cs.Source.FPS, cs.CreatedAt, cs.UpdatedAt,
	)
	return err
}

// GetByID retrieves a camera source by its ID.
func (r *SourceRepository) GetByID(id string) (*CameraSource, error) {
	cs, err := scanSource(r.db.QueryRow(
		`SELECT `+sourceColumns+` FROM camera_sources WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return cs, nil
}

// GetActive retrieves the active camera source.
func (r *SourceRepository) GetActive() (*CameraSource, error) {
	cs, err := scanSource(r.db.QueryRow(
		`SELECT ` + sourceColumns + ` FROM camera_sources WHERE active = 1`,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return cs, nil
}

// List retrieves all camera sources ordered by name.
func (r *SourceRepository) List() ([]*CameraSource, error) {
	rows, err := r.db.Query(`SELECT ` + sourceColumns + ` FROM camera_sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*CameraSource
	for rows.Next() {
		cs, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, cs)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sources, nil
}

// Activate marks the source with id as the active one and clears the flag
// on every other source.
func (r *SourceRepository) Activate(id string) (*CameraSource, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE camera_sources SET active = 0 WHERE active = 1`); err != nil {
		return nil, err
	}

	result, err := tx.Exec(
		`UPDATE camera_sources SET active = 1, updated_at = ? WHERE id = ?`,
		time.Now(), id,
	)
	if err != nil {
		return nil, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	cs, err := scanSource(tx.QueryRow(`SELECT `+sourceColumns+` FROM camera_sources WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return cs, nil
}

// Delete removes a camera source by its ID.
func (r *SourceRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM camera_sources WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
