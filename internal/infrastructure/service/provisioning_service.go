package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gradlink-hub/mentor-vetting/internal/application/command"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/pkg/circuitbreaker"
	"github.com/gradlink-hub/mentor-vetting/pkg/logger"
	"github.com/gradlink-hub/mentor-vetting/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROVISIONING SERVICE
// Implements command.AccountProvisioner. The account platform runs in the
// same deployment, so "provisioning" is a direct call rather than an HTTP
// hop, but it still goes through the breaker and retrier: approval
// responses block on it, and a degraded directory must fail fast.
// ══════════════════════════════════════════════════════════════════════════════

// tempPasswordLength is the length of generated temporary passwords.
const tempPasswordLength = 16

// passwordCharset excludes ambiguous characters (0/O, 1/l/I).
const passwordCharset = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ProvisioningService creates mentor accounts on the platform directory.
type ProvisioningService struct {
	directory MentorDirectory
	log       *logger.Logger
	retrier   *retry.Retrier
	breaker   *circuitbreaker.CircuitBreaker
}

// MentorDirectory is the account platform's registration surface.
type MentorDirectory interface {
	// Upsert registers a mentor account, or upgrades an existing account
	// for the email. Returns the account id and whether it was created.
	Upsert(ctx context.Context, account MentorAccount) (accountID string, created bool, err error)
}

// MentorAccount carries the data handed to the directory. Only the bcrypt
// hash of the temporary password leaves this package boundary.
type MentorAccount struct {
	AccountID      string
	Email          string
	FullName       string
	Specialization string
	PasswordHash   []byte
}

// NewProvisioningService creates a new ProvisioningService.
func NewProvisioningService(directory MentorDirectory, log *logger.Logger) *ProvisioningService {
	svcLog := log.With(logger.Component("provisioning"))

	breaker := circuitbreaker.ProvisioningBreaker(func(name string, from, to circuitbreaker.State) {
		svcLog.Warn("circuit breaker state change",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})

	return &ProvisioningService{
		directory: directory,
		log:       svcLog,
		retrier:   retry.ProvisioningRetrier(),
		breaker:   breaker,
	}
}

// ProvisionMentor creates or upgrades the platform account for an approved
// mentor. The clear-text temporary password is returned exactly once so
// the approval email can carry it; only its hash is stored.
func (s *ProvisioningService) ProvisionMentor(ctx context.Context, email, fullName, specialization string) (*command.ProvisionedAccount, error) {
	tempPassword, err := generateTempPassword()
	if err != nil {
		return nil, shared.WrapError("provisioning", "ProvisionMentor", shared.ErrExternalService,
			"failed to generate temporary password", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.WrapError("provisioning", "ProvisionMentor", shared.ErrExternalService,
			"failed to hash temporary password", err)
	}

	account := MentorAccount{
		AccountID:      uuid.New().String(),
		Email:          email,
		FullName:       fullName,
		Specialization: specialization,
		PasswordHash:   hash,
	}

	var accountID string
	var created bool

	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.retrier.Do(ctx, func(ctx context.Context) error {
			var upsertErr error
			accountID, created, upsertErr = s.directory.Upsert(ctx, account)
			if upsertErr != nil {
				return retry.Retryable(upsertErr)
			}
			return nil
		})
	})
	if err != nil {
		return nil, shared.WrapError("provisioning", "ProvisionMentor", shared.ErrExternalService,
			"mentor directory rejected the account", err)
	}

	s.log.Info("mentor account provisioned",
		logger.Email(email),
		logger.String("account_id", accountID),
		logger.Bool("created", created),
	)

	return &command.ProvisionedAccount{
		AccountID:    accountID,
		TempPassword: tempPassword,
		Created:      created,
	}, nil
}

// generateTempPassword draws a random password from the charset using
// crypto/rand.
func generateTempPassword() (string, error) {
	buf := make([]byte, tempPasswordLength)
	max := big.NewInt(int64(len(passwordCharset)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = passwordCharset[n.Int64()]
	}
	return string(buf), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY DIRECTORY
// Stands in for the platform directory in single-binary deployments and
// tests. Accounts are keyed by normalized email.
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryDirectory is a MentorDirectory backed by a map.
type InMemoryDirectory struct {
	mu       sync.Mutex
	accounts map[string]MentorAccount
}

// NewInMemoryDirectory creates an empty directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{accounts: make(map[string]MentorAccount)}
}

// Upsert registers or upgrades an account for the email.
func (d *InMemoryDirectory) Upsert(_ context.Context, account MentorAccount) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.accounts[account.Email]; ok {
		existing.FullName = account.FullName
		existing.Specialization = account.Specialization
		existing.PasswordHash = account.PasswordHash
		d.accounts[account.Email] = existing
		return existing.AccountID, false, nil
	}

	d.accounts[account.Email] = account
	return account.AccountID, true, nil
}

// Len returns the number of registered accounts.
func (d *InMemoryDirectory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.accounts)
}
