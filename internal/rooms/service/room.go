package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	roomserrors "roomly/internal/rooms/errors"
	"roomly/internal/rooms/repository"
	"roomly/internal/rooms/validator"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/model"
	"roomly/pkg/sanitizer"
)

type RoomService interface {
	Create(ctx context.Context, room *model.Room) error
	GetByID(ctx context.Context, id string) (*model.Room, error)
	GetAll(ctx context.Context, includeInactive bool, limit int, offset int64) ([]*model.Room, int64, error)
	Update(ctx context.Context, id string, updates *model.RoomUpdate) (*model.Room, error)
	Deactivate(ctx context.Context, id string) error

	// Find and FindActive back the booking engine's room lookups.
	Find(ctx context.Context, id string) (*model.Room, error)
	FindActive(ctx context.Context, id string) (*model.Room, error)
}

type roomService struct {
	repo      repository.RoomRepository
	validator *validator.RoomValidator
	cfg       *config.Config
}

func NewRoomService(
	repo repository.RoomRepository,
	roomValidator *validator.RoomValidator,
	cfg *config.Config,
) RoomService {
	return &roomService{
		repo:      repo,
		validator: roomValidator,
		cfg:       cfg,
	}
}

// Create registers a room. Name uniqueness among active rooms is
// enforced inside a transaction so two concurrent creates with the
// same name cannot both commit.
func (s *roomService) Create(ctx context.Context, room *model.Room) error {
	s.sanitize(room)
	room.Active = true

	if err := s.validator.Validate(room); err != nil {
		s.cfg.Log.Warn("Room validation failed",
			"name", room.Name,
			"error", err,
		)
		return apperrors.Validation("Room validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		existing, err := s.repo.FindActiveByName(sessCtx, room.Name)
		if err != nil && !errors.Is(err, roomserrors.ErrNotFound) {
			return fmt.Errorf("failed to check for duplicate name: %w", err)
		}
		if existing != nil {
			return apperrors.Conflict(fmt.Sprintf(
				"An active room named %q already exists (id: %s)",
				existing.Name, existing.ID,
			))
		}

		if err := s.repo.Create(sessCtx, room); err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		return nil
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		s.cfg.Log.Error("Failed to create room",
			"name", room.Name,
			"error", err,
		)
		return apperrors.Internal("Failed to create room", err)
	}

	s.cfg.Log.Info("Room created successfully",
		"id", room.ID,
		"name", room.Name,
		"capacity", room.Capacity,
	)

	return nil
}

func (s *roomService) GetByID(ctx context.Context, id string) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}
	return s.Find(ctx, id)
}

func (s *roomService) GetAll(ctx context.Context, includeInactive bool, limit int, offset int64) ([]*model.Room, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var rooms []*model.Room
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, includeInactive)
		if err != nil {
			s.cfg.Log.Error("Failed to count rooms", "error", err)
			errCount = apperrors.Internal("Failed to count rooms", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		rooms, err = s.repo.FindAll(ctx, includeInactive, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get rooms",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve rooms", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	if rooms == nil {
		rooms = []*model.Room{}
	}
	return rooms, count, nil
}

func (s *roomService) Update(ctx context.Context, id string, updates *model.RoomUpdate) (*model.Room, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Room ID cannot be empty")
	}

	s.sanitizeUpdate(updates)
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, apperrors.Validation("Room update validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	var merged *model.Room
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx context.Context) error {
		existing, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			return err
		}

		merged = mergeRoomUpdates(existing, updates)

		if updates.Name != "" && updates.Name != existing.Name {
			duplicate, err := s.repo.FindActiveByName(sessCtx, merged.Name)
			if err != nil && !errors.Is(err, roomserrors.ErrNotFound) {
				return fmt.Errorf("failed to check for duplicate name: %w", err)
			}
			if duplicate != nil && duplicate.ID != id {
				return apperrors.Conflict(fmt.Sprintf(
					"An active room named %q already exists (id: %s)",
					duplicate.Name, duplicate.ID,
				))
			}
		}

		return s.repo.Update(sessCtx, id, merged)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		switch {
		case errors.Is(err, roomserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("room", id)
		case errors.Is(err, roomserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid room ID format")
		}
		s.cfg.Log.Error("Failed to update room",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to update room", err)
	}

	s.cfg.Log.Info("Room updated successfully",
		"id", id,
		"name", merged.Name,
	)

	return merged, nil
}

func (s *roomService) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Room ID cannot be empty")
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		switch {
		case errors.Is(err, roomserrors.ErrNotFound):
			return apperrors.NotFoundWithID("room", id)
		case errors.Is(err, roomserrors.ErrInvalidID):
			return apperrors.InvalidInput("Invalid room ID format")
		}
		s.cfg.Log.Error("Failed to deactivate room",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to deactivate room", err)
	}

	s.cfg.Log.Info("Room deactivated", "id", id)

	return nil
}

func (s *roomService) Find(ctx context.Context, id string) (*model.Room, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, roomserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("room", id)
		case errors.Is(err, roomserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid room ID format")
		}
		s.cfg.Log.Error("Failed to find room",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve room", err)
	}
	return room, nil
}

func (s *roomService) FindActive(ctx context.Context, id string) (*model.Room, error) {
	room, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	// A deactivated room is gone as far as new bookings are concerned.
	if !room.Active {
		return nil, apperrors.NotFoundWithID("room", id)
	}
	return room, nil
}

func (s *roomService) sanitize(room *model.Room) {
	room.Name = sanitizer.NormalizeRoomName(room.Name)
	room.Location = sanitizer.NormalizeLocation(room.Location)
}

func (s *roomService) sanitizeUpdate(updates *model.RoomUpdate) {
	if updates.Name != "" {
		updates.Name = sanitizer.NormalizeRoomName(updates.Name)
	}
	if updates.Location != "" {
		updates.Location = sanitizer.NormalizeLocation(updates.Location)
	}
}

func mergeRoomUpdates(existing *model.Room, updates *model.RoomUpdate) *model.Room {
	merged := *existing
	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Location != "" {
		merged.Location = updates.Location
	}
	if updates.Capacity != nil {
		merged.Capacity = *updates.Capacity
	}
	return &merged
}
