package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gradlink-hub/mentor-vetting/pkg/logger"
)

func TestProvisionMentorCreatesAccount(t *testing.T) {
	directory := NewInMemoryDirectory()
	svc := NewProvisioningService(directory, logger.Default())

	account, err := svc.ProvisionMentor(context.Background(), "ada@gradlink.io", "Ada Lovelace", "Software Engineering")
	require.NoError(t, err)

	assert.NotEmpty(t, account.AccountID)
	assert.Len(t, account.TempPassword, tempPasswordLength)
	assert.True(t, account.Created)
	assert.Equal(t, 1, directory.Len())
}

func TestProvisionMentorStoresOnlyHash(t *testing.T) {
	directory := NewInMemoryDirectory()
	svc := NewProvisioningService(directory, logger.Default())

	account, err := svc.ProvisionMentor(context.Background(), "ada@gradlink.io", "Ada Lovelace", "Software Engineering")
	require.NoError(t, err)

	stored, ok := directory.accounts["ada@gradlink.io"]
	require.True(t, ok)

	// The directory holds a bcrypt hash that verifies against the
	// clear-text password returned to the caller.
	assert.NotContains(t, string(stored.PasswordHash), account.TempPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte(account.TempPassword)))
}

func TestProvisionMentorUpgradesExistingAccount(t *testing.T) {
	directory := NewInMemoryDirectory()
	svc := NewProvisioningService(directory, logger.Default())

	first, err := svc.ProvisionMentor(context.Background(), "ada@gradlink.io", "Ada Lovelace", "Software Engineering")
	require.NoError(t, err)

	second, err := svc.ProvisionMentor(context.Background(), "ada@gradlink.io", "Ada L.", "Data Science")
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.AccountID, second.AccountID)
	assert.NotEqual(t, first.TempPassword, second.TempPassword)
	assert.Equal(t, 1, directory.Len())
}

func TestGenerateTempPassword(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		pw, err := generateTempPassword()
		require.NoError(t, err)
		require.Len(t, pw, tempPasswordLength)
		for _, r := range pw {
			assert.Contains(t, passwordCharset, string(r))
		}
		assert.False(t, seen[pw], "temp passwords must not repeat")
		seen[pw] = true
	}
}
