// Package registration manages resident accounts: sign-up, email verification
// and removal.
package registration

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/rc4lifting/rc4-facilities-bot/internal/domain"
	"github.com/rc4lifting/rc4-facilities-bot/internal/email"
	"github.com/rc4lifting/rc4-facilities-bot/internal/logging"
)

var (
	// ErrAlreadyVerified is returned when a verified user asks for a code.
	ErrAlreadyVerified = errors.New("you are already verified")
	// ErrNoPendingCode is returned when verifying before requesting a code.
	ErrNoPendingCode = errors.New("no verification code found, please run /get_code to get a new one")
	// ErrInvalidCode is returned when the submitted code does not match.
	ErrInvalidCode = errors.New("invalid verification code, please try again")
	// ErrTooManyAttempts is returned when repeated wrong codes void the pending one.
	ErrTooManyAttempts = errors.New("too many incorrect codes, please run /get_code to get a new one")
)

// maxVerifyAttempts wrong codes discard the pending code.
const maxVerifyAttempts = 5

// UserStore persists resident accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	UserByTelegramID(ctx context.Context, telegramID int64) (domain.User, error)
	SetVerificationHash(ctx context.Context, telegramID int64, hash string) error
	MarkVerified(ctx context.Context, telegramID int64) error
	DeleteUser(ctx context.Context, telegramID int64) error
}

// Input is the registration form.
type Input struct {
	Name  string `validate:"required,max=64"`
	Email string `validate:"required,email,max=254,allowed_domain"`
	Room  string `validate:"required,max=16"`
}

// Registrar signs residents up and verifies their institutional email.
type Registrar struct {
	users    UserStore
	sender   email.Sender
	validate *validator.Validate
	domain   string
	cost     int
	newCode  func() (string, error)
	logger   *logrus.Entry

	maxAttempts int
	mu          sync.Mutex
	failures    map[int64]int
}

// NewRegistrar constructs a Registrar accepting emails under allowedDomain.
func NewRegistrar(users UserStore, sender email.Sender, allowedDomain string, logger *logrus.Entry) (*Registrar, error) {
	if logger == nil {
		logger = logging.Logger()
	}

	r := &Registrar{
		users:   users,
		sender:  sender,
		domain:  strings.ToLower(strings.TrimPrefix(strings.TrimSpace(allowedDomain), "@")),
		cost:    bcrypt.DefaultCost,
		newCode: sixDigitCode,
		logger:  logger,

		maxAttempts: maxVerifyAttempts,
		failures:    make(map[int64]int),
	}

	v := validator.New()
	if err := v.RegisterValidation("allowed_domain", r.allowedDomain); err != nil {
		return nil, fmt.Errorf("register allowed_domain validation: %w", err)
	}
	r.validate = v

	return r, nil
}

func (r *Registrar) allowedDomain(fl validator.FieldLevel) bool {
	if r.domain == "" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(fl.Field().String()), "@"+r.domain)
}

// Register creates an unverified account for the telegram user.
func (r *Registrar) Register(ctx context.Context, telegramID int64, in Input) (domain.User, error) {
	if err := r.ready(ctx); err != nil {
		return domain.User{}, err
	}
	if telegramID == 0 {
		return domain.User{}, errors.New("telegram id is required")
	}

	in = Input{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
		Room:  strings.ToUpper(strings.TrimSpace(in.Room)),
	}
	if err := r.check(in); err != nil {
		return domain.User{}, err
	}

	user, err := r.users.CreateUser(ctx, domain.User{
		TelegramID: telegramID,
		Name:       in.Name,
		Email:      in.Email,
		Room:       in.Room,
	})
	if err != nil {
		return domain.User{}, err
	}

	r.logger.WithFields(logging.Fields{
		"event":       "user_registered",
		"telegram_id": telegramID,
		"user_id":     user.UserID,
	}).Info("registered new user")
	return user, nil
}

// SendCode generates a fresh code, stores its hash and mails it to the user.
func (r *Registrar) SendCode(ctx context.Context, telegramID int64) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	user, err := r.user(ctx, telegramID)
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	code, err := r.newCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), r.cost)
	if err != nil {
		return fmt.Errorf("hash verification code: %w", err)
	}

	if err := r.users.SetVerificationHash(ctx, telegramID, string(hash)); err != nil {
		return err
	}
	r.clearFailures(telegramID)
	if err := r.sender.SendVerification(ctx, user.Email, code); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":       "verification_code_sent",
		"telegram_id": telegramID,
	}).Info("sent verification code")
	return nil
}

// Verify checks code against the pending one and marks the user verified.
func (r *Registrar) Verify(ctx context.Context, telegramID int64, code string) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	user, err := r.user(ctx, telegramID)
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}
	if user.VerificationHash == "" {
		return ErrNoPendingCode
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.VerificationHash), []byte(strings.TrimSpace(code)))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return r.rejectCode(ctx, telegramID)
	}
	if err != nil {
		return fmt.Errorf("compare verification code: %w", err)
	}

	if err := r.users.MarkVerified(ctx, telegramID); err != nil {
		return err
	}
	r.clearFailures(telegramID)

	r.logger.WithFields(logging.Fields{
		"event":       "user_verified",
		"telegram_id": telegramID,
	}).Info("verified user email")
	return nil
}

// Unregister deletes the account along with its slots and ballots.
func (r *Registrar) Unregister(ctx context.Context, telegramID int64) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	err := r.users.DeleteUser(ctx, telegramID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.ErrNotRegistered
	}
	if err != nil {
		return err
	}
	r.clearFailures(telegramID)

	r.logger.WithFields(logging.Fields{
		"event":       "user_unregistered",
		"telegram_id": telegramID,
	}).Info("unregistered user")
	return nil
}

// rejectCode counts a wrong code and voids the pending one once the user has
// used up their attempts.
func (r *Registrar) rejectCode(ctx context.Context, telegramID int64) error {
	r.mu.Lock()
	r.failures[telegramID]++
	failed := r.failures[telegramID]
	r.mu.Unlock()

	if failed < r.maxAttempts {
		return ErrInvalidCode
	}

	if err := r.users.SetVerificationHash(ctx, telegramID, ""); err != nil {
		return fmt.Errorf("discard verification code: %w", err)
	}
	r.clearFailures(telegramID)

	r.logger.WithFields(logging.Fields{
		"event":       "verification_code_discarded",
		"telegram_id": telegramID,
		"attempts":    failed,
	}).Warn("discarded verification code after repeated failures")
	return ErrTooManyAttempts
}

func (r *Registrar) clearFailures(telegramID int64) {
	r.mu.Lock()
	delete(r.failures, telegramID)
	r.mu.Unlock()
}

func (r *Registrar) user(ctx context.Context, telegramID int64) (domain.User, error) {
	user, err := r.users.UserByTelegramID(ctx, telegramID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.ErrNotRegistered
	}
	return user, err
}

func (r *Registrar) ready(ctx context.Context) error {
	if r == nil || r.users == nil || r.sender == nil || r.validate == nil {
		return errors.New("registrar is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// InputError lists the registration fields that failed validation.
type InputError struct {
	Problems []string
}

func (e *InputError) Error() string {
	return "invalid registration: " + strings.Join(e.Problems, "; ")
}

func (r *Registrar) check(in Input) error {
	err := r.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate registration: %w", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, r.describe(fe))
	}
	return &InputError{Problems: problems}
}

func (r *Registrar) describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "email must be a valid address"
	case "allowed_domain":
		return "email must end with @" + r.domain
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
