package service

import (
	"context"
	"testing"
	"time"

	roomserrors "roomly/internal/rooms/errors"
	"roomly/internal/rooms/validator"
	"roomly/pkg/config"
	mongotx "roomly/pkg/db/mongo"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/logger"
	"roomly/pkg/model"
)

// ────────────────────────────────────────────────
// Mock repository
// ────────────────────────────────────────────────

type mockRoomRepository struct {
	createFunc           func(ctx context.Context, room *model.Room) error
	findByIDFunc         func(ctx context.Context, id string) (*model.Room, error)
	findAllFunc          func(ctx context.Context, includeInactive bool, limit int, offset int64) ([]*model.Room, error)
	findActiveByNameFunc func(ctx context.Context, name string) (*model.Room, error)
	updateFunc           func(ctx context.Context, id string, room *model.Room) error
	deactivateFunc       func(ctx context.Context, id string) error
	countFunc            func(ctx context.Context, includeInactive bool) (int64, error)
}

func (m *mockRoomRepository) Create(ctx context.Context, room *model.Room) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, room)
	}
	room.ID = "99a0a6e2-9b63-4a6d-9a10-2f9e24cc6a41"
	return nil
}

func (m *mockRoomRepository) FindByID(ctx context.Context, id string) (*model.Room, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, roomserrors.ErrNotFound
}

func (m *mockRoomRepository) FindAll(ctx context.Context, includeInactive bool, limit int, offset int64) ([]*model.Room, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, includeInactive, limit, offset)
	}
	return []*model.Room{}, nil
}

func (m *mockRoomRepository) FindActiveByName(ctx context.Context, name string) (*model.Room, error) {
	if m.findActiveByNameFunc != nil {
		return m.findActiveByNameFunc(ctx, name)
	}
	return nil, roomserrors.ErrNotFound
}

func (m *mockRoomRepository) Update(ctx context.Context, id string, room *model.Room) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, room)
	}
	return nil
}

func (m *mockRoomRepository) Deactivate(ctx context.Context, id string) error {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(ctx, id)
	}
	return nil
}

func (m *mockRoomRepository) Count(ctx context.Context, includeInactive bool) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, includeInactive)
	}
	return 0, nil
}

func (m *mockRoomRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

func newTestService(repo *mockRoomRepository) RoomService {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
	cfg := &config.Config{
		Log:         log,
		ReadTimeout: 5 * time.Second,
	}
	return NewRoomService(repo, validator.NewRoomValidator(), cfg)
}

// ────────────────────────────────────────────────
// Create
// ────────────────────────────────────────────────

func TestCreate_Success(t *testing.T) {
	svc := newTestService(&mockRoomRepository{})

	room := &model.Room{Name: "  Fishbowl  ", Capacity: 8}
	if err := svc.Create(context.Background(), room); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if room.Name != "Fishbowl" {
		t.Errorf("expected name to be trimmed, got %q", room.Name)
	}
	if !room.Active {
		t.Error("new rooms should be active")
	}
	if room.ID == "" {
		t.Error("expected room to receive an id")
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	svc := newTestService(&mockRoomRepository{
		findActiveByNameFunc: func(ctx context.Context, name string) (*model.Room, error) {
			return &model.Room{ID: "existing", Name: name, Active: true}, nil
		},
	})

	err := svc.Create(context.Background(), &model.Room{Name: "Fishbowl", Capacity: 8})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreate_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		room *model.Room
	}{
		{"name too short", &model.Room{Name: "A", Capacity: 8}},
		{"missing capacity", &model.Room{Name: "Fishbowl"}},
		{"capacity too large", &model.Room{Name: "Fishbowl", Capacity: 501}},
	}

	svc := newTestService(&mockRoomRepository{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Create(context.Background(), tt.room)
			appErr := apperrors.AsAppError(err)
			if appErr == nil || appErr.Code != apperrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

// ────────────────────────────────────────────────
// Lookups
// ────────────────────────────────────────────────

func TestFindActive_InactiveRoom(t *testing.T) {
	svc := newTestService(&mockRoomRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Room, error) {
			return &model.Room{ID: id, Name: "Fishbowl", Capacity: 8, Active: false}, nil
		},
	})

	_, err := svc.FindActive(context.Background(), "some-id")
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found for inactive room, got %v", err)
	}
}

func TestFind_NotFound(t *testing.T) {
	svc := newTestService(&mockRoomRepository{})

	_, err := svc.Find(context.Background(), "missing")
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetAll(t *testing.T) {
	svc := newTestService(&mockRoomRepository{
		countFunc: func(ctx context.Context, includeInactive bool) (int64, error) {
			time.Sleep(5 * time.Millisecond)
			return 2, nil
		},
		findAllFunc: func(ctx context.Context, includeInactive bool, limit int, offset int64) ([]*model.Room, error) {
			time.Sleep(5 * time.Millisecond)
			return []*model.Room{
				{ID: "1", Name: "Fishbowl", Capacity: 8, Active: true},
				{ID: "2", Name: "War Room", Capacity: 20, Active: true},
			}, nil
		},
	})

	rooms, total, err := svc.GetAll(context.Background(), false, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected total 2, got %d", total)
	}
	if len(rooms) != 2 {
		t.Errorf("expected 2 rooms, got %d", len(rooms))
	}
}

// ────────────────────────────────────────────────
// Update and Deactivate
// ────────────────────────────────────────────────

func TestUpdate_MergesFields(t *testing.T) {
	var saved *model.Room
	svc := newTestService(&mockRoomRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Room, error) {
			return &model.Room{ID: id, Name: "Fishbowl", Location: "Floor 2", Capacity: 8, Active: true}, nil
		},
		updateFunc: func(ctx context.Context, id string, room *model.Room) error {
			saved = room
			return nil
		},
	})

	capacity := 12
	updated, err := svc.Update(context.Background(), "room-1", &model.RoomUpdate{Capacity: &capacity})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Capacity != 12 {
		t.Errorf("expected capacity 12, got %d", updated.Capacity)
	}
	if updated.Name != "Fishbowl" {
		t.Errorf("untouched fields must survive the merge, got name %q", updated.Name)
	}
	if saved == nil || saved.Capacity != 12 {
		t.Error("merged room should be persisted")
	}
}

func TestDeactivate_NotFound(t *testing.T) {
	svc := newTestService(&mockRoomRepository{
		deactivateFunc: func(ctx context.Context, id string) error {
			return roomserrors.ErrNotFound
		},
	})

	err := svc.Deactivate(context.Background(), "missing")
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
