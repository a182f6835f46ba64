package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-tracker/internal/models"
)

// Store archives completed rides to Postgres so receipts survive the
// client clearing its local state.
type Store struct {
	db *sql.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) ArchiveCompleted(ctx context.Context, snap models.RideSnapshot) error {
	breakdown, err := json.Marshal(snap.Breakdown)
	if err != nil {
		return err
	}
	var fare, distance sql.NullFloat64
	if snap.Fare != nil {
		fare = sql.NullFloat64{Float64: *snap.Fare, Valid: true}
	}
	if snap.DistanceMeters != nil {
		distance = sql.NullFloat64{Float64: *snap.DistanceMeters, Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO completed_rides(ride_id, pickup_label, dropoff_label, fare, distance_meters, breakdown, completed_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (ride_id) DO NOTHING`,
		snap.RideID, snap.Pickup.Label, snap.Dropoff.Label, fare, distance, breakdown, time.Now())
	return err
}

func (s *Store) Close() error { return s.db.Close() }
