package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	bookingserrors "roomly/internal/bookings/errors"
	"roomly/internal/bookings/validator"
	"roomly/pkg/clock"
	"roomly/pkg/config"
	mongotx "roomly/pkg/db/mongo"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/interval"
	"roomly/pkg/logger"
	"roomly/pkg/model"
)

// ────────────────────────────────────────────────
// In-memory repository
// ────────────────────────────────────────────────

// memoryBookingRepo keeps bookings in a slice. It deliberately does NOT
// serialize the check-then-commit sequence itself: commitDelay widens
// the window between the overlap check and the insert so concurrency
// tests fail loudly if the service ever stops locking per room.
type memoryBookingRepo struct {
	mu          sync.Mutex
	bookings    []*model.Booking
	commitDelay time.Duration
}

func (m *memoryBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	if m.commitDelay > 0 {
		time.Sleep(m.commitDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	booking.CreatedAt = time.Now().UTC()
	stored := *booking
	m.bookings = append(m.bookings, &stored)
	return nil
}

func (m *memoryBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, bookingserrors.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ID == id {
			copied := *b
			return &copied, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *memoryBookingRepo) FindActiveOverlapping(ctx context.Context, roomID string, iv interval.Interval) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.bookings {
		if b.RoomID != roomID || b.Status != model.StatusActive {
			continue
		}
		if b.Interval().Overlaps(iv) {
			copied := *b
			out = append(out, &copied)
		}
	}
	// Honor the interface's ordering contract regardless of insertion order.
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memoryBookingRepo) FindByRequester(ctx context.Context, requesterID string, limit int, offset int64) ([]*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.bookings {
		if b.RequesterID == requesterID && b.Status != model.StatusCancelled {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memoryBookingRepo) CountByRequester(ctx context.Context, requesterID string) (int64, error) {
	found, _ := m.FindByRequester(ctx, requesterID, 0, 0)
	return int64(len(found)), nil
}

func (m *memoryBookingRepo) UpdateStatus(ctx context.Context, id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ID == id {
			b.Status = status
			return nil
		}
	}
	return bookingserrors.ErrNotFound
}

func (m *memoryBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

func (m *memoryBookingRepo) active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		if b.Status == model.StatusActive {
			n++
		}
	}
	return n
}

// ────────────────────────────────────────────────
// Directory and publisher mocks
// ────────────────────────────────────────────────

type mockRoomDirectory struct {
	findFunc       func(ctx context.Context, id string) (*model.Room, error)
	findActiveFunc func(ctx context.Context, id string) (*model.Room, error)
}

func (m *mockRoomDirectory) Find(ctx context.Context, id string) (*model.Room, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, id)
	}
	return &model.Room{ID: id, Name: "Room", Capacity: 10, Active: true}, nil
}

func (m *mockRoomDirectory) FindActive(ctx context.Context, id string) (*model.Room, error) {
	if m.findActiveFunc != nil {
		return m.findActiveFunc(ctx, id)
	}
	return &model.Room{ID: id, Name: "Room", Capacity: 10, Active: true}, nil
}

type mockUserDirectory struct {
	displayNamesFunc func(ctx context.Context, ids []string) (map[string]string, error)
}

func (m *mockUserDirectory) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	if m.displayNamesFunc != nil {
		return m.displayNamesFunc(ctx, ids)
	}
	return map[string]string{}, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	created   []*model.Booking
	cancelled []*model.Booking
}

func (p *recordingPublisher) BookingCreated(ctx context.Context, b *model.Booking) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, b)
}

func (p *recordingPublisher) BookingCancelled(ctx context.Context, b *model.Booking) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, b)
}

func (p *recordingPublisher) Close() error { return nil }

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

var testNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc       BookingService
	repo      *memoryBookingRepo
	rooms     *mockRoomDirectory
	users     *mockUserDirectory
	publisher *recordingPublisher
	cfg       *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
	cfg := &config.Config{
		Log:                log,
		MinBookingDuration: 30 * time.Minute,
		LockWaitTimeout:    2 * time.Second,
	}

	f := &fixture{
		repo:      &memoryBookingRepo{},
		rooms:     &mockRoomDirectory{},
		users:     &mockUserDirectory{},
		publisher: &recordingPublisher{},
		cfg:       cfg,
	}
	f.svc = NewBookingService(
		cfg,
		f.repo,
		f.rooms,
		f.users,
		validator.NewBookingValidator(log),
		f.publisher,
		clock.NewFixed(testNow),
		log,
	)
	return f
}

func request(roomID string, start, end time.Time) *model.BookingRequest {
	return &model.BookingRequest{
		RoomID:      roomID,
		RequesterID: "alice",
		StartTime:   start,
		EndTime:     end,
		Purpose:     "standup",
	}
}

func mustCode(t *testing.T, err error, code string) *apperrors.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
	return appErr
}

// ────────────────────────────────────────────────
// Propose
// ────────────────────────────────────────────────

func TestPropose_Success(t *testing.T) {
	f := newFixture(t)
	roomID := uuid.NewString()

	booking, err := f.svc.Propose(context.Background(), request(roomID, testNow.Add(time.Hour), testNow.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.ID == "" {
		t.Error("expected booking to receive an id")
	}
	if booking.Status != model.StatusActive {
		t.Errorf("expected status %q, got %q", model.StatusActive, booking.Status)
	}
	if len(f.publisher.created) != 1 {
		t.Errorf("expected 1 created event, got %d", len(f.publisher.created))
	}
}

func TestPropose_StartingNowIsAllowed(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Propose(context.Background(), request(uuid.NewString(), testNow, testNow.Add(time.Hour)))
	if err != nil {
		t.Fatalf("booking starting at the current instant should be accepted: %v", err)
	}
}

func TestPropose_PolicyViolations(t *testing.T) {
	f := newFixture(t)
	roomID := uuid.NewString()

	tests := []struct {
		name   string
		start  time.Time
		end    time.Time
		reason string
	}{
		{
			name:   "inverted interval",
			start:  testNow.Add(2 * time.Hour),
			end:    testNow.Add(time.Hour),
			reason: "invalid_ordering",
		},
		{
			name:   "zero-length interval",
			start:  testNow.Add(time.Hour),
			end:    testNow.Add(time.Hour),
			reason: "invalid_ordering",
		},
		{
			name:   "starts in the past",
			start:  testNow.Add(-time.Second),
			end:    testNow.Add(time.Hour),
			reason: "past_booking",
		},
		{
			name:   "one second too short",
			start:  testNow.Add(time.Hour),
			end:    testNow.Add(time.Hour + 30*time.Minute - time.Second),
			reason: "too_short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Propose(context.Background(), request(roomID, tt.start, tt.end))
			appErr := mustCode(t, err, apperrors.CodeValidation)
			if got := appErr.Details["reason"]; got != tt.reason {
				t.Errorf("expected reason %q, got %v", tt.reason, got)
			}
		})
	}

	if f.repo.active() != 0 {
		t.Errorf("rejected proposals must not reach the ledger, found %d", f.repo.active())
	}
}

func TestPropose_StructuralValidation(t *testing.T) {
	f := newFixture(t)

	req := request("not-a-uuid", testNow.Add(time.Hour), testNow.Add(2*time.Hour))
	_, err := f.svc.Propose(context.Background(), req)
	mustCode(t, err, apperrors.CodeValidation)
}

func TestPropose_RoomErrorsPassThrough(t *testing.T) {
	f := newFixture(t)
	f.rooms.findActiveFunc = func(ctx context.Context, id string) (*model.Room, error) {
		return nil, apperrors.NotFoundWithID("room", id)
	}

	_, err := f.svc.Propose(context.Background(), request(uuid.NewString(), testNow.Add(time.Hour), testNow.Add(2*time.Hour)))
	mustCode(t, err, apperrors.CodeNotFound)
}

func TestPropose_OverlapShapes(t *testing.T) {
	roomID := uuid.NewString()
	base := testNow.Add(2 * time.Hour) // existing booking [base, base+1h)

	overlapping := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{"straddles the start", base.Add(-30 * time.Minute), base.Add(30 * time.Minute)},
		{"straddles the end", base.Add(30 * time.Minute), base.Add(90 * time.Minute)},
		{"fully inside", base.Add(15 * time.Minute), base.Add(45 * time.Minute)},
		{"fully contains", base.Add(-30 * time.Minute), base.Add(90 * time.Minute)},
		{"identical", base, base.Add(time.Hour)},
	}

	for _, tt := range overlapping {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.svc.Propose(context.Background(), request(roomID, base, base.Add(time.Hour))); err != nil {
				t.Fatalf("seed booking failed: %v", err)
			}

			_, err := f.svc.Propose(context.Background(), request(roomID, tt.start, tt.end))
			appErr := mustCode(t, err, apperrors.CodeConflict)
			if appErr.Details["conflicts"] == nil {
				t.Error("conflict error should carry the colliding bookings")
			}
		})
	}
}

func TestPropose_BackToBackIsNotAConflict(t *testing.T) {
	f := newFixture(t)
	roomID := uuid.NewString()
	base := testNow.Add(2 * time.Hour)

	if _, err := f.svc.Propose(context.Background(), request(roomID, base, base.Add(time.Hour))); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	// [base+1h, base+2h) shares only the boundary instant.
	if _, err := f.svc.Propose(context.Background(), request(roomID, base.Add(time.Hour), base.Add(2*time.Hour))); err != nil {
		t.Fatalf("back-to-back booking should be accepted: %v", err)
	}
	// Same on the left edge.
	if _, err := f.svc.Propose(context.Background(), request(roomID, base.Add(-time.Hour), base)); err != nil {
		t.Fatalf("left-adjacent booking should be accepted: %v", err)
	}

	if f.repo.active() != 3 {
		t.Errorf("expected 3 active bookings, got %d", f.repo.active())
	}
}

func TestPropose_ConcurrentSameRoom(t *testing.T) {
	f := newFixture(t)
	f.repo.commitDelay = 20 * time.Millisecond
	roomID := uuid.NewString()
	start := testNow.Add(time.Hour)
	end := start.Add(time.Hour)

	const goroutines = 10
	var wg sync.WaitGroup
	results := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Propose(context.Background(), request(roomID, start, end))
		}(i)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case apperrors.AsAppError(err) != nil && apperrors.AsAppError(err).Code == apperrors.CodeConflict:
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly 1 success, got %d", successes)
	}
	if conflicts != goroutines-1 {
		t.Errorf("expected %d conflicts, got %d", goroutines-1, conflicts)
	}
	if f.repo.active() != 1 {
		t.Errorf("ledger should hold exactly 1 booking, got %d", f.repo.active())
	}
}

func TestPropose_ConcurrentDifferentRooms(t *testing.T) {
	f := newFixture(t)
	f.repo.commitDelay = 10 * time.Millisecond
	start := testNow.Add(time.Hour)
	end := start.Add(time.Hour)

	const goroutines = 8
	var wg sync.WaitGroup
	results := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.svc.Propose(context.Background(), request(uuid.NewString(), start, end))
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		if err != nil {
			t.Errorf("proposal %d for its own room should succeed: %v", i, err)
		}
	}
	if f.repo.active() != goroutines {
		t.Errorf("expected %d bookings, got %d", goroutines, f.repo.active())
	}
}

func TestPropose_LockWaitTimeout(t *testing.T) {
	f := newFixture(t)
	f.cfg.LockWaitTimeout = 30 * time.Millisecond
	f.repo.commitDelay = 300 * time.Millisecond
	roomID := uuid.NewString()

	holderDone := make(chan error, 1)
	go func() {
		_, err := f.svc.Propose(context.Background(), request(roomID, testNow.Add(time.Hour), testNow.Add(2*time.Hour)))
		holderDone <- err
	}()

	// Give the first proposal time to take the room lock.
	time.Sleep(50 * time.Millisecond)

	_, err := f.svc.Propose(context.Background(), request(roomID, testNow.Add(3*time.Hour), testNow.Add(4*time.Hour)))
	mustCode(t, err, apperrors.CodeTimeout)

	if err := <-holderDone; err != nil {
		t.Fatalf("holder proposal should have succeeded: %v", err)
	}
}

// ────────────────────────────────────────────────
// Cancel
// ────────────────────────────────────────────────

func TestCancel(t *testing.T) {
	f := newFixture(t)
	roomID := uuid.NewString()

	booking, err := f.svc.Propose(context.Background(), request(roomID, testNow.Add(time.Hour), testNow.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	cancelled, err := f.svc.Cancel(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != model.StatusCancelled {
		t.Errorf("expected status %q, got %q", model.StatusCancelled, cancelled.Status)
	}
	if len(f.publisher.cancelled) != 1 {
		t.Errorf("expected 1 cancelled event, got %d", len(f.publisher.cancelled))
	}

	// Cancelled is terminal.
	_, err = f.svc.Cancel(context.Background(), booking.ID)
	mustCode(t, err, apperrors.CodeConflict)

	// The freed slot is bookable again.
	if _, err := f.svc.Propose(context.Background(), request(roomID, testNow.Add(time.Hour), testNow.Add(2*time.Hour))); err != nil {
		t.Fatalf("slot freed by cancellation should be bookable: %v", err)
	}
}

func TestCancel_UnknownBooking(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Cancel(context.Background(), uuid.NewString())
	mustCode(t, err, apperrors.CodeNotFound)
}

func TestCancel_MalformedID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Cancel(context.Background(), "definitely-not-a-uuid")
	mustCode(t, err, apperrors.CodeInvalidInput)
}

// ────────────────────────────────────────────────
// Availability
// ────────────────────────────────────────────────

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	f.users.displayNamesFunc = func(ctx context.Context, ids []string) (map[string]string, error) {
		return map[string]string{"alice": "Alice Liddell"}, nil
	}
	roomID := uuid.NewString()

	// Two bookings tomorrow, one the day after.
	tomorrow := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	if _, err := f.svc.Propose(context.Background(), request(roomID, tomorrow, tomorrow.Add(time.Hour))); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if _, err := f.svc.Propose(context.Background(), request(roomID, tomorrow.Add(4*time.Hour), tomorrow.Add(5*time.Hour))); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if _, err := f.svc.Propose(context.Background(), request(roomID, tomorrow.Add(24*time.Hour), tomorrow.Add(25*time.Hour))); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	report, err := f.svc.Availability(context.Background(), roomID, tomorrow)
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if report.Date != "2026-03-11" {
		t.Errorf("expected date 2026-03-11, got %s", report.Date)
	}
	if report.IsAvailable {
		t.Error("day with bookings should not report as available")
	}
	if len(report.Bookings) != 2 {
		t.Fatalf("expected 2 bookings in the window, got %d", len(report.Bookings))
	}
	if report.Bookings[0].BookedBy != "Alice Liddell" {
		t.Errorf("expected display name, got %q", report.Bookings[0].BookedBy)
	}
}

func TestAvailability_SortedByStartTime(t *testing.T) {
	f := newFixture(t)
	roomID := uuid.NewString()
	day := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	// Seed out of chronological order.
	for _, hour := range []int{14, 9, 11} {
		start := day.Add(time.Duration(hour) * time.Hour)
		if _, err := f.svc.Propose(context.Background(), request(roomID, start, start.Add(time.Hour))); err != nil {
			t.Fatalf("seed booking failed: %v", err)
		}
	}

	report, err := f.svc.Availability(context.Background(), roomID, day)
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if len(report.Bookings) != 3 {
		t.Fatalf("expected 3 bookings, got %d", len(report.Bookings))
	}
	for i := 1; i < len(report.Bookings); i++ {
		if report.Bookings[i].StartTime.Before(report.Bookings[i-1].StartTime) {
			t.Fatalf("bookings not ordered by start time: %v before %v",
				report.Bookings[i].StartTime, report.Bookings[i-1].StartTime)
		}
	}
}

func TestAvailability_EmptyDay(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.Availability(context.Background(), uuid.NewString(), testNow)
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if !report.IsAvailable {
		t.Error("day without bookings should report as available")
	}
	if len(report.Bookings) != 0 {
		t.Errorf("expected no bookings, got %d", len(report.Bookings))
	}
}

func TestAvailability_CancelledBookingsExcluded(t *testing.T) {
	f := newFixture(t)
	roomID := uuid.NewString()
	start := testNow.Add(time.Hour)

	booking, err := f.svc.Propose(context.Background(), request(roomID, start, start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), booking.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	report, err := f.svc.Availability(context.Background(), roomID, start)
	if err != nil {
		t.Fatalf("availability failed: %v", err)
	}
	if !report.IsAvailable {
		t.Error("cancelled bookings must not block availability")
	}
}

func TestAvailability_DirectoryFailureFallsBackToIDs(t *testing.T) {
	f := newFixture(t)
	f.users.displayNamesFunc = func(ctx context.Context, ids []string) (map[string]string, error) {
		return nil, context.DeadlineExceeded
	}
	roomID := uuid.NewString()
	start := testNow.Add(time.Hour)

	if _, err := f.svc.Propose(context.Background(), request(roomID, start, start.Add(time.Hour))); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	report, err := f.svc.Availability(context.Background(), roomID, start)
	if err != nil {
		t.Fatalf("availability should survive a directory outage: %v", err)
	}
	if report.Bookings[0].BookedBy != "alice" {
		t.Errorf("expected raw requester id fallback, got %q", report.Bookings[0].BookedBy)
	}
}

// ────────────────────────────────────────────────
// ListByRequester
// ────────────────────────────────────────────────

func TestListByRequester(t *testing.T) {
	f := newFixture(t)
	roomID := uuid.NewString()

	first, err := f.svc.Propose(context.Background(), request(roomID, testNow.Add(time.Hour), testNow.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if _, err := f.svc.Propose(context.Background(), request(roomID, testNow.Add(3*time.Hour), testNow.Add(4*time.Hour))); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), first.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	bookings, total, err := f.svc.ListByRequester(context.Background(), "alice", 10, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected total 1, got %d", total)
	}
	if len(bookings) != 1 {
		t.Errorf("expected 1 booking, got %d", len(bookings))
	}
}

func TestListByRequester_RequiresID(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.ListByRequester(context.Background(), "", 10, 0)
	mustCode(t, err, apperrors.CodeInvalidInput)
}
