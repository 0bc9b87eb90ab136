package storage

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"github.com/example/campus-carpool/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// Migrate applies the given schema statements.
func (p *PostgresStore) Migrate(ctx context.Context, schema string) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresStore) SaveBooking(ctx context.Context, b *models.Booking) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO bookings(id, rider_id, driver_id, home_address, pickup_lat, pickup_lon, seats_booked, total_cost, departure_time, payment_intent_id, status, payment_pending, created_at, updated_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		b.ID, b.RiderID, b.DriverID, b.HomeAddress, b.Pickup.Lat, b.Pickup.Lon, b.SeatsBooked, b.TotalCost, b.DepartureTime, b.PaymentIntentID, string(b.Status), b.PaymentPending, b.CreatedAt, b.UpdatedAt)
	return err
}

func (p *PostgresStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	res, err := p.db.ExecContext(ctx, `UPDATE bookings SET driver_id=$1, status=$2, payment_intent_id=$3, payment_pending=$4, updated_at=$5 WHERE id=$6`,
		b.DriverID, string(b.Status), b.PaymentIntentID, b.PaymentPending, b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	var status string
	err := p.db.QueryRowContext(ctx, `SELECT id, rider_id, driver_id, home_address, pickup_lat, pickup_lon, seats_booked, total_cost, departure_time, payment_intent_id, status, payment_pending, created_at, updated_at FROM bookings WHERE id=$1`, id).
		Scan(&b.ID, &b.RiderID, &b.DriverID, &b.HomeAddress, &b.Pickup.Lat, &b.Pickup.Lon, &b.SeatsBooked, &b.TotalCost, &b.DepartureTime, &b.PaymentIntentID, &status, &b.PaymentPending, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = models.BookingStatus(status)
	return &b, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }
