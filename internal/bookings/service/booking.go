package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "roomly/internal/bookings/errors"
	"roomly/internal/bookings/events"
	"roomly/internal/bookings/policy"
	"roomly/internal/bookings/repository"
	"roomly/internal/bookings/validator"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/interval"
	"roomly/pkg/keylock"
	"roomly/pkg/logger"
	"roomly/pkg/model"
	"roomly/pkg/sanitizer"
)

// RoomDirectory is the slice of the rooms module the booking engine
// needs: existence and active-state lookups.
type RoomDirectory interface {
	Find(ctx context.Context, id string) (*model.Room, error)
	FindActive(ctx context.Context, id string) (*model.Room, error)
}

// UserDirectory resolves requester ids to display names for
// user-facing availability output.
type UserDirectory interface {
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

type Clock interface {
	Now() time.Time
}

type BookingService interface {
	Propose(ctx context.Context, req *model.BookingRequest) (*model.Booking, error)
	Cancel(ctx context.Context, id string) (*model.Booking, error)
	Get(ctx context.Context, id string) (*model.Booking, error)
	ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, int64, error)
	Availability(ctx context.Context, roomID string, date time.Time) (*model.AvailabilityReport, error)
}

type bookingService struct {
	cfg       *config.Config
	repo      repository.BookingRepository
	rooms     RoomDirectory
	users     UserDirectory
	validator *validator.BookingValidator
	publisher events.Publisher
	locks     *keylock.KeyedMutex
	clock     Clock
	logger    *logger.Logger
}

func NewBookingService(
	cfg *config.Config,
	repo repository.BookingRepository,
	rooms RoomDirectory,
	users UserDirectory,
	bookingValidator *validator.BookingValidator,
	publisher events.Publisher,
	clk Clock,
	log *logger.Logger,
) BookingService {
	return &bookingService{
		cfg:       cfg,
		repo:      repo,
		rooms:     rooms,
		users:     users,
		validator: bookingValidator,
		publisher: publisher,
		locks:     keylock.New(),
		clock:     clk,
		logger:    log,
	}
}

// Propose runs the full admission pipeline for a booking request:
// structural validation, policy rules against the current instant,
// room lookup, then the per-room critical section where the overlap
// check and the insert commit together. Between the check and the
// commit no other proposal for the same room can interleave; proposals
// for different rooms proceed in parallel.
func (s *bookingService) Propose(ctx context.Context, req *model.BookingRequest) (*model.Booking, error) {
	if err := s.validator.ValidateRequest(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, apperrors.Validation("booking request validation failed", validationDetails(verrs))
		}
		return nil, apperrors.Internal("failed to validate booking request", err)
	}

	req.Purpose = sanitizer.NormalizePurpose(req.Purpose)

	iv := req.Interval()
	if err := policy.Check(iv, s.clock.Now(), s.cfg.MinBookingDuration); err != nil {
		return nil, policyToAppError(err)
	}

	if _, err := s.rooms.FindActive(ctx, req.RoomID); err != nil {
		return nil, err
	}

	release, err := s.acquireRoomLock(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	defer release()

	booking := &model.Booking{
		RoomID:      req.RoomID,
		RequesterID: req.RequesterID,
		StartTime:   iv.Start,
		EndTime:     iv.End,
		Purpose:     req.Purpose,
		Status:      model.StatusActive,
	}

	err = s.repo.ExecuteTransaction(ctx, func(sc context.Context) error {
		existing, err := s.repo.FindActiveOverlapping(sc, req.RoomID, iv)
		if err != nil {
			return fmt.Errorf("overlap check failed: %w", err)
		}
		if len(existing) > 0 {
			return conflictError(existing)
		}
		return s.repo.Create(sc, booking)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("failed to commit booking", err)
	}

	s.logger.Info("booking committed",
		"booking_id", booking.ID,
		"room_id", booking.RoomID,
		"requester_id", booking.RequesterID,
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
	)

	s.publisher.BookingCreated(ctx, booking)

	return booking, nil
}

// Cancel moves an active booking to cancelled. The transition runs
// under the same per-room lock as Propose so a cancellation and a
// proposal for the freed slot serialize cleanly.
func (s *bookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	release, err := s.acquireRoomLock(ctx, booking.RoomID)
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.repo.ExecuteTransaction(ctx, func(sc context.Context) error {
		// Re-read under the lock: the status may have changed while
		// we were waiting.
		booking, err = s.findByID(sc, id)
		if err != nil {
			return err
		}
		if booking.Status == model.StatusCancelled {
			return apperrors.Conflict(bookingserrors.ErrAlreadyCancelled.Error())
		}
		return s.repo.UpdateStatus(sc, id, model.StatusCancelled)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("booking", id)
		}
		return nil, apperrors.Internal("failed to cancel booking", err)
	}
	booking.Status = model.StatusCancelled

	s.logger.Info("booking cancelled",
		"booking_id", booking.ID,
		"room_id", booking.RoomID,
	)

	s.publisher.BookingCancelled(ctx, booking)

	return booking, nil
}

func (s *bookingService) Get(ctx context.Context, id string) (*model.Booking, error) {
	return s.findByID(ctx, id)
}

func (s *bookingService) ListByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if requesterID == "" {
		return nil, 0, apperrors.InvalidInput("requester_id is required")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	bookings, err := s.repo.FindByRequester(ctx, requesterID, limit, offset)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to list bookings", err)
	}

	total, err := s.repo.CountByRequester(ctx, requesterID)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to count bookings", err)
	}

	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, total, nil
}

// Availability reports every active booking touching the day that
// contains date, in the 24-hour half-open window starting at that
// day's UTC midnight. The room must exist but need not be active:
// schedules of deactivated rooms remain readable.
func (s *bookingService) Availability(ctx context.Context, roomID string, date time.Time) (*model.AvailabilityReport, error) {
	if _, err := s.rooms.Find(ctx, roomID); err != nil {
		return nil, err
	}

	window := interval.DayWindow(date)

	bookings, err := s.repo.FindActiveOverlapping(ctx, roomID, window)
	if err != nil {
		return nil, apperrors.Internal("failed to query availability", err)
	}

	names := s.resolveDisplayNames(ctx, bookings)

	slots := make([]model.AvailabilitySlot, 0, len(bookings))
	for _, b := range bookings {
		bookedBy := names[b.RequesterID]
		if bookedBy == "" {
			bookedBy = b.RequesterID
		}
		slots = append(slots, model.AvailabilitySlot{
			ID:        b.ID,
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Purpose:   b.Purpose,
			BookedBy:  bookedBy,
		})
	}

	return &model.AvailabilityReport{
		Date:        window.Start.Format("2006-01-02"),
		IsAvailable: len(slots) == 0,
		Bookings:    slots,
	}, nil
}

func (s *bookingService) findByID(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("booking", id)
		case errors.Is(err, bookingserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("invalid booking id format")
		default:
			return nil, apperrors.Internal("failed to find booking", err)
		}
	}
	return booking, nil
}

// acquireRoomLock takes the per-room mutex, waiting at most
// LockWaitTimeout. A caller that cannot get the lock in time is told
// to retry rather than queue indefinitely.
func (s *bookingService) acquireRoomLock(ctx context.Context, roomID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWaitTimeout)
	defer cancel()

	release, err := s.locks.Lock(lockCtx, roomID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Timeout("room is busy processing another booking, retry shortly")
		}
		return nil, apperrors.Internal("failed to acquire room lock", err)
	}
	return release, nil
}

// resolveDisplayNames is best-effort: if the users directory is down
// the report falls back to raw requester ids.
func (s *bookingService) resolveDisplayNames(ctx context.Context, bookings []*model.Booking) map[string]string {
	if len(bookings) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(bookings))
	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.RequesterID]; ok {
			continue
		}
		seen[b.RequesterID] = struct{}{}
		ids = append(ids, b.RequesterID)
	}

	names, err := s.users.DisplayNames(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve requester display names", "error", err)
		return nil
	}
	return names
}

func conflictError(existing []*model.Booking) *apperrors.AppError {
	conflicts := make([]map[string]any, 0, len(existing))
	for _, b := range existing {
		conflicts = append(conflicts, map[string]any{
			"booking_id":   b.ID,
			"requester_id": b.RequesterID,
			"start_time":   b.StartTime,
			"end_time":     b.EndTime,
		})
	}
	return apperrors.ConflictWithDetails(
		"requested interval overlaps an existing booking",
		map[string]any{"conflicts": conflicts},
	)
}

func policyToAppError(err error) error {
	var perr *policy.Error
	if !errors.As(err, &perr) {
		return apperrors.Internal("policy check failed", err)
	}

	details := map[string]any{"reason": string(perr.Reason)}
	switch perr.Reason {
	case policy.ReasonInvalidOrdering, policy.ReasonPastBooking, policy.ReasonTooShort:
		return apperrors.Validation(perr.Message, details)
	default:
		return apperrors.Internal("policy check failed", err)
	}
}

func validationDetails(verrs validator.ValidationErrors) map[string]any {
	fields := make(map[string]any, len(verrs))
	for _, v := range verrs {
		fields[v.Field] = v.Message
	}
	return map[string]any{"fields": fields}
}
