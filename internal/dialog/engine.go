package dialog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keanulaw/NeoCare-App/internal/booking"
	"github.com/keanulaw/NeoCare-App/internal/dateparse"
	"github.com/keanulaw/NeoCare-App/internal/metrics"
	"github.com/keanulaw/NeoCare-App/internal/models"
	"github.com/keanulaw/NeoCare-App/internal/recommend"
	"github.com/keanulaw/NeoCare-App/internal/schedule"
)

// Recommender maps free-text symptoms to a consultant id.
type Recommender interface {
	Recommend(ctx context.Context, symptoms string) (*recommend.Recommendation, error)
}

// ConsultantSource resolves consultant snapshots.
type ConsultantSource interface {
	GetConsultant(ctx context.Context, id string) (*models.Consultant, error)
}

// SlotSource answers availability questions against a fresh reservation
// snapshot.
type SlotSource interface {
	AvailableSlots(ctx context.Context, c *models.Consultant, date time.Time) ([]string, error)
	SelectableDates(ctx context.Context, c *models.Consultant, lookaheadDays int, now time.Time) ([]time.Time, error)
}

// Committer performs the conflict-checked booking write.
type Committer interface {
	Commit(ctx context.Context, req booking.Request) (*models.BookingRequest, error)
}

// Result is one turn's outcome: the state the session ended the turn in
// and the reply to show the user.
type Result struct {
	State State
	Reply string
}

// DefaultPreviewDates caps how many upcoming dates the opening
// recommendation message lists.
const DefaultPreviewDates = 5

var (
	affirmativeRe = regexp.MustCompile(`(?i)^y(es)?$`)

	errUpstream = "Sorry, something went wrong on our end. Please try again."
)

// Engine drives booking conversations. One utterance in, one reply out;
// all progress lives in the per-user Session.
type Engine struct {
	fsm           *FSM
	sessions      *SessionStore
	recommender   Recommender
	consultants   ConsultantSource
	slots         SlotSource
	committer     Committer
	lookaheadDays int
	previewDates  int
	now           func() time.Time
	logger        *zerolog.Logger

	userMu    sync.Mutex
	userLocks map[string]*sync.Mutex
}

// Config wires an Engine.
type Config struct {
	Sessions      *SessionStore
	Recommender   Recommender
	Consultants   ConsultantSource
	Slots         SlotSource
	Committer     Committer
	LookaheadDays int
	PreviewDates  int
	Now           func() time.Time
	Logger        *zerolog.Logger
}

// NewEngine constructs an Engine with defaults applied.
func NewEngine(cfg Config) *Engine {
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = schedule.DefaultLookaheadDays
	}
	if cfg.PreviewDates <= 0 {
		cfg.PreviewDates = DefaultPreviewDates
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionStore(0)
	}
	// Expiry checks and UpdatedAt stamps must share one clock.
	cfg.Sessions.now = cfg.Now
	return &Engine{
		fsm:           NewFSM(),
		sessions:      cfg.Sessions,
		recommender:   cfg.Recommender,
		consultants:   cfg.Consultants,
		slots:         cfg.Slots,
		committer:     cfg.Committer,
		lookaheadDays: cfg.LookaheadDays,
		previewDates:  cfg.PreviewDates,
		now:           cfg.Now,
		logger:        cfg.Logger,
		userLocks:     make(map[string]*sync.Mutex),
	}
}

// lockUser returns the mutex serializing one user's turns.
func (e *Engine) lockUser(userID string) *sync.Mutex {
	e.userMu.Lock()
	defer e.userMu.Unlock()
	l, ok := e.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.userLocks[userID] = l
	}
	return l
}

// HandleUtterance processes one user utterance and returns the next
// reply. Every failure path produces a user-readable reply and leaves the
// session in a resumable state; the conversation never errors out.
// Turns for the same user are serialized: a second utterance blocks until
// the one in flight has run to completion.
func (e *Engine) HandleUtterance(ctx context.Context, userID, fullName, text string) Result {
	lock := e.lockUser(userID)
	lock.Lock()
	defer lock.Unlock()

	trimmed := strings.TrimSpace(text)

	if isCancel(trimmed) {
		if s := e.sessions.Get(userID); s != nil {
			e.sessions.Delete(userID)
			metrics.IncSessionFinished("cancelled")
		}
		return Result{State: StateCancelled, Reply: "Appointment cancelled."}
	}

	session := e.sessions.Get(userID)
	if session == nil {
		return e.handleIdle(ctx, userID, fullName, trimmed)
	}

	session.UpdatedAt = e.now()

	switch session.State {
	case StateAwaitingBooking:
		return e.handleAwaitingBooking(ctx, session, trimmed)
	case StateSelectingDate:
		return e.handleSelectingDate(ctx, session, trimmed)
	case StateSelectingTime:
		return e.handleSelectingTime(ctx, session, trimmed)
	case StateSelectingPlatform:
		return e.handleSelectingPlatform(session, trimmed)
	case StateAwaitingFinal:
		return e.handleAwaitingFinal(ctx, session, trimmed)
	default:
		// Unknown state, drop the session and start over.
		e.sessions.Delete(session.UserID)
		return e.handleIdle(ctx, userID, fullName, trimmed)
	}
}

// handleIdle treats the utterance as a symptom description: resolve a
// consultant, preview their upcoming dates and ask to book. Nothing is
// retained on failure.
func (e *Engine) handleIdle(ctx context.Context, userID, fullName, text string) Result {
	if text == "" {
		return Result{State: StateIdle, Reply: "Tell me what you're experiencing and I'll find the right consultant for you."}
	}

	rec, err := e.recommender.Recommend(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("recommendation failed")
		return Result{State: StateIdle, Reply: errUpstream}
	}

	consultant, err := e.consultants.GetConsultant(ctx, rec.ConsultantID)
	if err != nil {
		e.logger.Warn().Err(err).Str("consultant_id", rec.ConsultantID).Msg("consultant lookup failed")
		return Result{State: StateIdle, Reply: errUpstream}
	}

	upcoming := schedule.UpcomingDates(consultant.AvailableDays, e.lookaheadDays, e.now())
	if len(upcoming) == 0 {
		return Result{State: StateIdle, Reply: fmt.Sprintf(
			"%s has no consultation days in the next %d days. Please check back later.",
			consultant.Name, e.lookaheadDays)}
	}

	session := &Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		FullName:      fullName,
		State:         StateAwaitingBooking,
		Consultant:    consultant,
		UpcomingDates: upcoming,
		StartedAt:     e.now(),
		UpdatedAt:     e.now(),
	}
	e.sessions.Put(session)
	metrics.IncSessionStarted()

	var b strings.Builder
	if rec.Explanation != "" {
		b.WriteString(rec.Explanation)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "I recommend %s", consultant.Name)
	if consultant.Specialty != "" {
		fmt.Fprintf(&b, " (%s)", consultant.Specialty)
	}
	if consultant.HourlyRate > 0 {
		fmt.Fprintf(&b, ", rate ₱%.0f/hr", consultant.HourlyRate)
	}
	b.WriteString(".\nUpcoming dates:\n")
	b.WriteString(formatDateList(upcoming, e.previewDates))
	b.WriteString("\nShall we book an appointment? (Yes/No)")

	return Result{State: StateAwaitingBooking, Reply: b.String()}
}

// handleAwaitingBooking gates entry into date selection. The selectable
// list is filtered against a fresh reservation snapshot here, so fully
// booked dates are never offered.
func (e *Engine) handleAwaitingBooking(ctx context.Context, s *Session, text string) Result {
	if !affirmativeRe.MatchString(text) {
		e.sessions.Delete(s.UserID)
		metrics.IncSessionFinished("declined")
		return Result{State: StateIdle, Reply: "No worries—let me know if you need anything else."}
	}

	dates, err := e.slots.SelectableDates(ctx, s.Consultant, e.lookaheadDays, e.now())
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", s.UserID).Msg("selectable dates fetch failed")
		return Result{State: s.State, Reply: errUpstream}
	}
	if len(dates) == 0 {
		e.sessions.Delete(s.UserID)
		metrics.IncSessionFinished("no_availability")
		return Result{State: StateIdle, Reply: fmt.Sprintf(
			"%s is fully booked for the next %d days. Please check back later.",
			s.Consultant.Name, e.lookaheadDays)}
	}

	s.UpcomingDates = dates
	e.transition(s, StateSelectingDate)
	return Result{State: s.State, Reply: "Great! Choose a date:\n" + formatDateList(dates, 0)}
}

// handleSelectingDate parses a date and requires it to be one of the
// offered dates. The slot list for the chosen date is fetched before the
// date is stored, so an upstream failure leaves the selection untouched.
func (e *Engine) handleSelectingDate(ctx context.Context, s *Session, text string) Result {
	date, ok := dateparse.ParseDate(text, e.now())
	if !ok {
		metrics.IncParseFailure("date")
		return Result{State: s.State, Reply: "I couldn't read that date. Choose one of:\n" + formatDateList(s.UpcomingDates, 0)}
	}
	if !s.DateOffered(date) {
		return Result{State: s.State, Reply: fmt.Sprintf(
			"%s isn't available. Choose one of:\n%s",
			dateparse.FormatWordDate(date), formatDateList(s.UpcomingDates, 0))}
	}

	free, err := e.slots.AvailableSlots(ctx, s.Consultant, date)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", s.UserID).Msg("slot fetch failed")
		return Result{State: s.State, Reply: errUpstream}
	}
	if len(free) == 0 {
		return Result{State: s.State, Reply: fmt.Sprintf(
			"No free slots on %s. Choose another date:\n%s",
			dateparse.FormatWordDate(date), formatDateList(s.UpcomingDates, 0))}
	}

	s.SelectedDate = dateparse.Midnight(date)
	e.transition(s, StateSelectingTime)
	return Result{State: s.State, Reply: fmt.Sprintf(
		"What time on %s?\nOptions: %s",
		dateparse.FormatWordDate(date), strings.Join(free, ", "))}
}

// handleSelectingTime matches the utterance against the slots still free
// for the selected date. The snapshot is re-fetched on every attempt.
func (e *Engine) handleSelectingTime(ctx context.Context, s *Session, text string) Result {
	canonical, ok := dateparse.ParseClock(text)
	if !ok {
		metrics.IncParseFailure("time")
		reply := `Please enter a time like "8 PM" or "14:30".`
		if free, err := e.slots.AvailableSlots(ctx, s.Consultant, s.SelectedDate); err == nil && len(free) > 0 {
			reply += "\nOptions: " + strings.Join(free, ", ")
		}
		return Result{State: s.State, Reply: reply}
	}

	free, err := e.slots.AvailableSlots(ctx, s.Consultant, s.SelectedDate)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", s.UserID).Msg("slot fetch failed")
		return Result{State: s.State, Reply: errUpstream}
	}

	slot, matched := schedule.MatchSlot(free, canonical)
	if !matched {
		return Result{State: s.State, Reply: fmt.Sprintf(
			"%s isn't available on %s.\nOptions: %s",
			canonical, dateparse.FormatWordDate(s.SelectedDate), strings.Join(free, ", "))}
	}

	s.SelectedSlot = slot
	e.transition(s, StateSelectingPlatform)
	return Result{State: s.State, Reply: "Online or In Person?"}
}

// handleSelectingPlatform stores the consultation mode and presents the
// final summary. Any answer mentioning "online" selects Online, anything
// else selects In Person.
func (e *Engine) handleSelectingPlatform(s *Session, text string) Result {
	if strings.Contains(strings.ToLower(text), "online") {
		s.SelectedPlatform = models.PlatformOnline
	} else {
		s.SelectedPlatform = models.PlatformInPerson
	}

	e.transition(s, StateAwaitingFinal)
	return Result{State: s.State, Reply: e.summary(s)}
}

// handleAwaitingFinal commits on an affirmative reply. A commit conflict
// routes back to time selection with a fresh slot list; everything else
// non-affirmative cancels.
func (e *Engine) handleAwaitingFinal(ctx context.Context, s *Session, text string) Result {
	if !affirmativeRe.MatchString(text) {
		e.sessions.Delete(s.UserID)
		metrics.IncSessionFinished("cancelled")
		return Result{State: StateCancelled, Reply: "Appointment cancelled."}
	}

	_, err := e.committer.Commit(ctx, booking.Request{
		Consultant: s.Consultant,
		UserID:     s.UserID,
		FullName:   s.FullName,
		Date:       s.SelectedDate,
		Slot:       s.SelectedSlot,
		Platform:   s.SelectedPlatform,
	})
	if errors.Is(err, booking.ErrSlotTaken) {
		s.SelectedSlot = ""
		s.SelectedPlatform = ""
		e.transition(s, StateSelectingTime)

		reply := fmt.Sprintf("That slot was just taken. Pick another time on %s.",
			dateparse.FormatWordDate(s.SelectedDate))
		if free, ferr := e.slots.AvailableSlots(ctx, s.Consultant, s.SelectedDate); ferr == nil && len(free) > 0 {
			reply += "\nOptions: " + strings.Join(free, ", ")
		}
		return Result{State: s.State, Reply: reply}
	}
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", s.UserID).Msg("booking commit failed")
		return Result{State: s.State, Reply: errUpstream}
	}

	e.sessions.Delete(s.UserID)
	metrics.IncSessionFinished("committed")
	return Result{State: StateCommitted, Reply: fmt.Sprintf(
		"Your appointment with %s on %s at %s (%s) has been requested. We'll notify you once it's confirmed.",
		s.Consultant.Name, dateparse.FormatWordDate(s.SelectedDate), s.SelectedSlot, s.SelectedPlatform)}
}

func (e *Engine) summary(s *Session) string {
	var b strings.Builder
	b.WriteString("Confirm appointment:\n")
	fmt.Fprintf(&b, "Consultant: %s", s.Consultant.Name)
	if s.Consultant.HourlyRate > 0 {
		fmt.Fprintf(&b, " (₱%.0f/hr)", s.Consultant.HourlyRate)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Date: %s\n", dateparse.FormatWordDate(s.SelectedDate))
	fmt.Fprintf(&b, "Time: %s\n", s.SelectedSlot)
	fmt.Fprintf(&b, "Mode: %s\n", s.SelectedPlatform)
	b.WriteString("(Yes/No)")
	return b.String()
}

func (e *Engine) transition(s *Session, to State) {
	if !e.fsm.CanTransition(s.State, to) {
		e.logger.Error().
			Str("user_id", s.UserID).
			Str("from", string(s.State)).
			Str("to", string(to)).
			Msg("blocked illegal state transition")
		return
	}
	s.State = to
	s.UpdatedAt = e.now()
}

func isCancel(text string) bool {
	switch strings.ToLower(text) {
	case "cancel", "/cancel":
		return true
	}
	return false
}

func formatDateList(dates []time.Time, limit int) string {
	if limit <= 0 || limit > len(dates) {
		limit = len(dates)
	}
	lines := make([]string, 0, limit)
	for _, d := range dates[:limit] {
		lines = append(lines, "- "+dateparse.FormatWordDate(d))
	}
	return strings.Join(lines, "\n")
}
