package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/example/campus-carpool/internal/models"
)

var ErrNotFound = errors.New("storage: booking not found")

// BookingStore defines persistence operations for bookings.
type BookingStore interface {
	SaveBooking(ctx context.Context, b *models.Booking) error
	UpdateBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
}

type MemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: make(map[string]models.Booking)}
}

func (m *MemoryStore) SaveBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemoryStore) UpdateBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemoryStore) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}
