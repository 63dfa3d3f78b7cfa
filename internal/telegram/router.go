package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rc4lifting/rc4-facilities-bot/internal/booking"
	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
	"github.com/rc4lifting/rc4-facilities-bot/internal/facility"
	"github.com/rc4lifting/rc4-facilities-bot/internal/feature/registration"
	"github.com/rc4lifting/rc4-facilities-bot/internal/logging"
)

const (
	commandRate  = rate.Limit(1)
	commandBurst = 5

	genericFailure = "Something went wrong, please try again later."
	ownerOnly      = "This command is only available to the bot owner."
	slowDown       = "You are sending commands too quickly, please wait a moment."
)

// Bookings is the booking surface used by the chat commands.
type Bookings interface {
	TryBook(ctx context.Context, telegramID int64, begin, end time.Time) error
	Ballot(ctx context.Context, telegramID int64, begin, end time.Time) error
	Cancel(ctx context.Context, telegramID int64, begin, end time.Time) error
	WithdrawBallot(ctx context.Context, telegramID int64, begin, end time.Time) error
	Overview(ctx context.Context, telegramID int64) (booking.Overview, error)
}

// Resolver runs a ballot resolution on demand.
type Resolver interface {
	Resolve(ctx context.Context) (booking.Report, error)
}

// Accounts manages registration and verification.
type Accounts interface {
	Register(ctx context.Context, telegramID int64, in registration.Input) (domain.User, error)
	SendCode(ctx context.Context, telegramID int64) error
	Verify(ctx context.Context, telegramID int64, code string) error
	Unregister(ctx context.Context, telegramID int64) error
}

// Board serves the cached week view.
type Board interface {
	View() (text string, refreshed time.Time, ok bool)
	Refresh(ctx context.Context) error
}

// Stats reports store counts for /status.
type Stats interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

// Deps wires the router to the services behind each command.
type Deps struct {
	Rules    facility.Rules
	OwnerID  int64
	Bookings Bookings
	Resolver Resolver
	Accounts Accounts
	Board    Board
	Stats    Stats
}

// Request is a parsed chat command.
type Request struct {
	TelegramID int64
	ChatID     int64
	Command    string
	Args       string
}

// Reply is the text sent back for a Request. Preformatted replies are shown
// in a monospace block.
type Reply struct {
	Text         string
	Preformatted bool
}

type commandFunc func(ctx context.Context, req Request) (Reply, error)

// Router maps chat commands to service calls and renders their outcome.
type Router struct {
	deps     Deps
	commands map[string]commandFunc
	owner    map[string]bool
	limiter  *limiter
	now      func() time.Time
	logger   *logrus.Entry
}

// NewRouter constructs a Router over deps.
func NewRouter(deps Deps, logger *logrus.Entry) *Router {
	if logger == nil {
		logger = logging.Logger()
	}

	r := &Router{
		deps:    deps,
		limiter: newLimiter(commandRate, commandBurst),
		now:     time.Now,
		logger:  logger,
	}

	r.commands = map[string]commandFunc{
		"start":      r.help,
		"help":       r.help,
		"register":   r.register,
		"get_code":   r.getCode,
		"verify":     r.verify,
		"unregister": r.unregister,
		"book":       r.book,
		"ballot":     r.ballot,
		"cancel":     r.cancel,
		"withdraw":   r.withdraw,
		"mybookings": r.myBookings,
		"view":       r.view,
		"resolve":    r.resolve,
		"status":     r.status,
	}
	r.owner = map[string]bool{"resolve": true, "status": true}

	return r
}

// Handle runs one command and returns the reply to send. An empty reply means
// nothing should be sent.
func (r *Router) Handle(ctx context.Context, req Request) Reply {
	if r == nil || ctx == nil {
		return Reply{}
	}

	logger := r.logger.WithFields(logging.Context{
		TelegramID: req.TelegramID,
		ChatID:     req.ChatID,
		Command:    req.Command,
	}.Fields())

	if !r.limiter.allow(req.TelegramID, r.now()) {
		logger.WithField("event", "command_rate_limited").Warn("command rate limited")
		return Reply{Text: slowDown}
	}

	handler, ok := r.commands[req.Command]
	if !ok {
		return Reply{Text: "Unknown command. Send /help for the list of commands."}
	}
	if r.owner[req.Command] && req.TelegramID != r.deps.OwnerID {
		logger.WithField("event", "command_forbidden").Warn("non-owner attempted owner command")
		return Reply{Text: ownerOnly}
	}

	reply, err := handler(ctx, req)
	if err != nil {
		return r.failure(logger, err)
	}

	logger.WithField("event", "command_handled").Info("handled command")
	return reply
}

func (r *Router) failure(logger *logrus.Entry, err error) Reply {
	var invalid *facility.ValidationError
	var input *registration.InputError
	var usage usageError

	switch {
	case errors.As(err, &invalid):
		return Reply{Text: invalid.Message}
	case errors.As(err, &input):
		return Reply{Text: capitalize(input.Error())}
	case errors.As(err, &usage):
		return Reply{Text: string(usage)}
	case isUserError(err):
		logger.WithField("event", "command_rejected").WithError(err).Info("command rejected")
		return Reply{Text: capitalize(err.Error())}
	default:
		logger.WithField("event", "command_failed").WithError(err).Error("command failed")
		return Reply{Text: genericFailure}
	}
}

var userErrors = []error{
	domain.ErrConflict,
	domain.ErrNotRegistered,
	domain.ErrNotVerified,
	domain.ErrAlreadyRegistered,
	domain.ErrAlreadyBalloted,
	domain.ErrSlotNotFound,
	booking.ErrSlotStarted,
	registration.ErrAlreadyVerified,
	registration.ErrNoPendingCode,
	registration.ErrInvalidCode,
	registration.ErrTooManyAttempts,
}

func isUserError(err error) bool {
	var failure *domain.StoreFailure
	if errors.As(err, &failure) {
		return false
	}
	for _, known := range userErrors {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

type usageError string

func (e usageError) Error() string {
	return string(e)
}

const helpText = `Commands:
/register <name> | <email> | <room> - sign up
/get_code - email a verification code
/verify <code> - confirm your email
/book <YYYY-MM-DD> <HH:MM> <HH:MM> - book a slot this week
/ballot <YYYY-MM-DD> <HH:MM> <HH:MM> - ballot for a slot next week
/cancel <YYYY-MM-DD> <HH:MM> <HH:MM> - cancel a booking
/withdraw <YYYY-MM-DD> <HH:MM> <HH:MM> - withdraw a ballot
/mybookings - list your bookings and ballots
/view - show this week's bookings
/unregister - delete your account`

func (r *Router) help(context.Context, Request) (Reply, error) {
	rules := r.deps.Rules
	return Reply{Text: fmt.Sprintf(
		"%s\n\nThe facility is open %s-%s in %d minute intervals, up to %d minutes per booking.",
		helpText,
		facility.FormatClock(rules.DailyStart),
		facility.FormatClock(rules.DailyEnd),
		int(rules.Interval/time.Minute),
		int(rules.MaxLength/time.Minute),
	)}, nil
}

func (r *Router) register(ctx context.Context, req Request) (Reply, error) {
	parts := strings.Split(req.Args, "|")
	if len(parts) != 3 {
		return Reply{}, usageError("Usage: /register <name> | <email> | <room>")
	}

	user, err := r.deps.Accounts.Register(ctx, req.TelegramID, registration.Input{
		Name:  parts[0],
		Email: parts[1],
		Room:  parts[2],
	})
	if err != nil {
		return Reply{}, err
	}

	return Reply{Text: fmt.Sprintf("Welcome, %s! Run /get_code to verify %s.", user.Name, user.Email)}, nil
}

func (r *Router) getCode(ctx context.Context, req Request) (Reply, error) {
	if err := r.deps.Accounts.SendCode(ctx, req.TelegramID); err != nil {
		return Reply{}, err
	}
	return Reply{Text: "A verification code has been sent to your email. Reply with /verify <code>."}, nil
}

func (r *Router) verify(ctx context.Context, req Request) (Reply, error) {
	code := strings.TrimSpace(req.Args)
	if code == "" {
		return Reply{}, usageError("Usage: /verify <code>")
	}
	if err := r.deps.Accounts.Verify(ctx, req.TelegramID, code); err != nil {
		return Reply{}, err
	}
	return Reply{Text: "Your email is verified. You can now /book and /ballot."}, nil
}

func (r *Router) unregister(ctx context.Context, req Request) (Reply, error) {
	if err := r.deps.Accounts.Unregister(ctx, req.TelegramID); err != nil {
		return Reply{}, err
	}
	return Reply{Text: "Your account, bookings, and ballots have been removed."}, nil
}

type spanAction func(ctx context.Context, telegramID int64, begin, end time.Time) error

func (r *Router) withSpan(ctx context.Context, req Request, action spanAction, done string) (Reply, error) {
	begin, end, err := parseSpan(req.Args, r.deps.Rules.Location)
	if err != nil {
		return Reply{}, usageError(fmt.Sprintf("%s.\nUsage: /%s <YYYY-MM-DD> <HH:MM> <HH:MM>", capitalize(err.Error()), req.Command))
	}
	if err := action(ctx, req.TelegramID, begin, end); err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("%s %s.", done, formatSpan(begin, end, r.deps.Rules.Location))}, nil
}

func (r *Router) book(ctx context.Context, req Request) (Reply, error) {
	return r.withSpan(ctx, req, r.deps.Bookings.TryBook, "Booked")
}

func (r *Router) ballot(ctx context.Context, req Request) (Reply, error) {
	return r.withSpan(ctx, req, r.deps.Bookings.Ballot, "Balloted for")
}

func (r *Router) cancel(ctx context.Context, req Request) (Reply, error) {
	return r.withSpan(ctx, req, r.deps.Bookings.Cancel, "Cancelled")
}

func (r *Router) withdraw(ctx context.Context, req Request) (Reply, error) {
	return r.withSpan(ctx, req, r.deps.Bookings.WithdrawBallot, "Withdrew ballot for")
}

func (r *Router) myBookings(ctx context.Context, req Request) (Reply, error) {
	overview, err := r.deps.Bookings.Overview(ctx, req.TelegramID)
	if err != nil {
		return Reply{}, err
	}
	if len(overview.Slots) == 0 && len(overview.Ballots) == 0 {
		return Reply{Text: "You have no upcoming bookings or ballots."}, nil
	}

	loc := r.deps.Rules.Location
	var b strings.Builder
	if len(overview.Slots) > 0 {
		b.WriteString("Bookings:")
		for _, slot := range overview.Slots {
			b.WriteString("\n- " + formatSpan(slot.Begin, slot.End, loc))
		}
	}
	if len(overview.Ballots) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Ballots:")
		for _, ballot := range overview.Ballots {
			b.WriteString("\n- " + formatSpan(ballot.Begin, ballot.End, loc))
		}
	}

	return Reply{Text: b.String()}, nil
}

func (r *Router) view(ctx context.Context, _ Request) (Reply, error) {
	text, refreshed, ok := r.deps.Board.View()
	if !ok {
		if err := r.deps.Board.Refresh(ctx); err != nil {
			return Reply{}, err
		}
		text, refreshed, _ = r.deps.Board.View()
	}

	stamp := refreshed.In(r.deps.Rules.Location).Format("15:04")
	return Reply{Text: text + "\n\nUpdated " + stamp, Preformatted: true}, nil
}

func (r *Router) resolve(ctx context.Context, _ Request) (Reply, error) {
	report, err := r.deps.Resolver.Resolve(ctx)
	if err != nil {
		return Reply{}, err
	}
	if report.Considered() == 0 {
		return Reply{Text: "There were no ballots to resolve."}, nil
	}

	return Reply{Text: fmt.Sprintf(
		"Resolved %d ballots for the week of %s: %d booked, %d dropped.\nRun %s",
		report.Considered(),
		report.Window.Begin.In(r.deps.Rules.Location).Format("2 Jan 2006"),
		len(report.Booked),
		len(report.Dropped),
		report.RunID,
	)}, nil
}

func (r *Router) status(ctx context.Context, _ Request) (Reply, error) {
	stats, err := r.deps.Stats.Stats(ctx)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("Users: %d\nSlots: %d\nBallots: %d", stats.Users, stats.Slots, stats.Ballots)}, nil
}

// parseSpan reads "<YYYY-MM-DD> <HH:MM> <HH:MM>" as a local interval in loc.
func parseSpan(args string, loc *time.Location) (time.Time, time.Time, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return time.Time{}, time.Time{}, errors.New("please give a date followed by start and end times")
	}

	day, err := time.ParseInLocation("2006-01-02", fields[0], loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%q is not a valid date", fields[0])
	}

	clock := func(value string) (time.Time, error) {
		offset, err := facility.ParseClock(value)
		if err != nil {
			return time.Time{}, fmt.Errorf("%q is not a valid time", value)
		}
		y, m, d := day.Date()
		return time.Date(y, m, d, int(offset/time.Hour), int(offset%time.Hour/time.Minute), 0, 0, loc), nil
	}

	begin, err := clock(fields[1])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := clock(fields[2])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return begin, end, nil
}

func formatSpan(begin, end time.Time, loc *time.Location) string {
	return begin.In(loc).Format("Mon 2 Jan 15:04") + "-" + end.In(loc).Format("15:04")
}

func capitalize(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(first)) + s[size:]
}
