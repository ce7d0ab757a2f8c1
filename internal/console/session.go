// Package console runs the interactive reservation terminal on top of the ledger service.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/seatledger/pkg/ledger"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.uber.org/zap"
)

const (
	DefaultMaxGroups         = 5
	DefaultMaxRidersPerGroup = 6
	quitCommand              = "quit"
)

var (
	// ErrInvalidSession indicates a session was built without its dependencies.
	ErrInvalidSession = errors.New("invalid console session")

	errQuit = errors.New("quit requested")
)

// Ledger is the slice of the reservation service driven by the console.
type Ledger interface {
	Authenticate(ctx context.Context, username string, password string) (ledger.User, error)
	Services() []ledger.TrainService
	ServicesOn(rawDate string) ([]ledger.ServiceAvailability, error)
	Search(source string, destination string, rawDate string) ([]ledger.ServiceAvailability, error)
	AddService(ctx context.Context, definition ledger.ServiceDefinition) (ledger.TrainService, error)
	RemoveService(ctx context.Context, rawID string) error
	Bookings() []ledger.Booking
	PromoteWaitlist(ctx context.Context, rawID string, rawDate string) ([]ledger.Reference, error)
	Waitlist(rawID string, rawDate string) ([]ledger.WaitlistEntry, error)
	BookGroups(ctx context.Context, requests []ledger.BookingRequest) []ledger.GroupResult
	FindBooking(reference ledger.Reference) (ledger.BookingView, error)
	Cancel(ctx context.Context, reference ledger.Reference) (ledger.CancellationOutcome, error)
	History(ctx context.Context, reference ledger.Reference) ([]ledger.TransactionEvent, error)
}

// Limits bounds the multi-group booking dialog.
type Limits struct {
	MaxGroups         int
	MaxRidersPerGroup int
}

// Option customizes a Session.
type Option func(*Session)

// WithLimits overrides the booking dialog bounds. Non-positive values keep the defaults.
func WithLimits(limits Limits) Option {
	return func(session *Session) {
		if limits.MaxGroups > 0 {
			session.limits.MaxGroups = limits.MaxGroups
		}
		if limits.MaxRidersPerGroup > 0 {
			session.limits.MaxRidersPerGroup = limits.MaxRidersPerGroup
		}
	}
}

// WithPlainOutput disables colors regardless of the output terminal.
func WithPlainOutput() Option {
	return func(session *Session) {
		session.plain = true
	}
}

// WithLogger attaches a logger for session lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(session *Session) {
		if logger != nil {
			session.logger = logger
		}
	}
}

// Session is one interactive terminal conversation.
type Session struct {
	ledger  Ledger
	scanner *bufio.Scanner
	output  io.Writer
	theme   theme
	limits  Limits
	logger  *zap.Logger
	plain   bool
}

type menuAction int

const (
	actionStay menuAction = iota
	actionSwitchUser
	actionExit
)

// NewSession wires a console session to a ledger and a pair of streams.
func NewSession(service Ledger, input io.Reader, output io.Writer, options ...Option) (*Session, error) {
	if service == nil {
		return nil, fmt.Errorf("%w: ledger is required", ErrInvalidSession)
	}
	if input == nil || output == nil {
		return nil, fmt.Errorf("%w: input and output are required", ErrInvalidSession)
	}
	session := &Session{
		ledger:  service,
		scanner: bufio.NewScanner(input),
		output:  output,
		limits:  Limits{MaxGroups: DefaultMaxGroups, MaxRidersPerGroup: DefaultMaxRidersPerGroup},
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(session)
		}
	}
	renderer := lipgloss.NewRenderer(output)
	if session.plain {
		renderer.SetColorProfile(termenv.Ascii)
	}
	session.theme = newTheme(renderer)
	session.logger = session.logger.Named("console")
	return session, nil
}

// Run drives the login and menu loop until the operator exits or input ends.
func (session *Session) Run(ctx context.Context) error {
	session.banner("Train Reservation Ledger")
	for {
		if ctx.Err() != nil {
			session.goodbye()
			return nil
		}
		user, err := session.login(ctx)
		if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
			session.goodbye()
			return nil
		}
		if err != nil {
			return err
		}
		session.logger.Info("operator signed in", zap.String("username", user.Username()), zap.String("role", user.Role().String()))
		var action menuAction
		switch user.Role() {
		case ledger.RoleAdmin:
			action, err = session.runMenu(ctx, session.adminMenu)
		default:
			action, err = session.runMenu(ctx, session.customerMenu)
		}
		if errors.Is(err, io.EOF) || action == actionExit {
			session.goodbye()
			return nil
		}
		if err != nil {
			return err
		}
		session.logger.Info("operator signed out", zap.String("username", user.Username()))
	}
}

func (session *Session) goodbye() {
	session.println("")
	session.println(session.theme.muted.Render("Goodbye."))
}

func (session *Session) login(ctx context.Context) (ledger.User, error) {
	for {
		session.heading("Login")
		username, err := session.prompt("Username (or 'quit' to exit): ")
		if err != nil {
			return ledger.User{}, err
		}
		if strings.EqualFold(username, quitCommand) {
			return ledger.User{}, errQuit
		}
		password, err := session.prompt("Password: ")
		if err != nil {
			return ledger.User{}, err
		}
		user, err := session.ledger.Authenticate(ctx, username, password)
		if errors.Is(err, ledger.ErrInvalidCredentials) {
			session.fail("Login failed: invalid username or password.")
			continue
		}
		if err != nil {
			return ledger.User{}, err
		}
		session.succeed("Welcome, %s (%s).", user.Username(), user.Role())
		return user, nil
	}
}

func (session *Session) runMenu(ctx context.Context, menu func(context.Context) (menuAction, error)) (menuAction, error) {
	for {
		if ctx.Err() != nil {
			return actionExit, nil
		}
		action, err := menu(ctx)
		if err != nil {
			return actionExit, err
		}
		if action != actionStay {
			return action, nil
		}
	}
}

// prompt writes a label and returns the next trimmed input line.
func (session *Session) prompt(label string) (string, error) {
	session.printf("%s", label)
	if !session.scanner.Scan() {
		session.println("")
		if err := session.scanner.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(session.scanner.Text()), nil
}

// promptInt re-prompts until the answer is an integer within [minimum, maximum].
func (session *Session) promptInt(label string, minimum int, maximum int) (int, error) {
	for {
		raw, err := session.prompt(label)
		if err != nil {
			return 0, err
		}
		value, parseErr := strconv.Atoi(raw)
		if parseErr == nil && value >= minimum && value <= maximum {
			return value, nil
		}
		session.fail("Enter a whole number between %d and %d.", minimum, maximum)
	}
}

// promptChoice reads one menu selection. Unparseable input yields zero.
func (session *Session) promptChoice() (int, error) {
	raw, err := session.prompt("Enter your choice: ")
	if err != nil {
		return 0, err
	}
	choice, parseErr := strconv.Atoi(raw)
	if parseErr != nil {
		return 0, nil
	}
	return choice, nil
}

func (session *Session) promptReference() (ledger.Reference, bool, error) {
	raw, err := session.prompt("Enter booking reference: ")
	if err != nil {
		return ledger.Reference{}, false, err
	}
	reference, parseErr := ledger.ParseReference(raw)
	if parseErr != nil {
		session.fail("%q is not a booking reference.", raw)
		return ledger.Reference{}, false, nil
	}
	return reference, true, nil
}
