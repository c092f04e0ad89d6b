package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradlink-hub/mentor-vetting/config"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
	"github.com/gradlink-hub/mentor-vetting/internal/domain/testsession"
	"github.com/gradlink-hub/mentor-vetting/pkg/logger"
)

func testToken() testsession.Token {
	return testsession.Token(strings.Repeat("ab", 20))
}

func emailConfig(gatewayURL string) config.EmailConfig {
	return config.EmailConfig{
		GatewayURL:      gatewayURL,
		APIKey:          "test-key",
		FromAddress:     "mentors@gradlink.io",
		TestLinkBaseURL: "https://gradlink.io/mentor-test",
		RequestTimeout:  2 * time.Second,
	}
}

func TestLogOnlyModeSucceedsWithoutGateway(t *testing.T) {
	svc := NewEmailService(emailConfig(""), logger.Default(), true)

	err := svc.SendTestInvitation(context.Background(), "ada@gradlink.io", "Ada", testToken(), time.Now().Add(48*time.Hour))
	assert.NoError(t, err)

	err = svc.SendApprovalNotice(context.Background(), "ada@gradlink.io", "Ada", "secret")
	assert.NoError(t, err)

	err = svc.SendRejectionNotice(context.Background(), "ada@gradlink.io", "Ada", 40, nil)
	assert.NoError(t, err)
}

func TestDeliveryDisabledSkipsGateway(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer ts.Close()

	svc := NewEmailService(emailConfig(ts.URL), logger.Default(), false)
	require.NoError(t, svc.SendApprovalNotice(context.Background(), "ada@gradlink.io", "Ada", "secret"))
	assert.False(t, called)
}

func TestInvitationCarriesLinkAndAuth(t *testing.T) {
	var got gatewayMessage
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	svc := NewEmailService(emailConfig(ts.URL), logger.Default(), true)

	expiresAt := time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SendTestInvitation(context.Background(), "ada@gradlink.io", "Ada", testToken(), expiresAt))

	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "mentors@gradlink.io", got.From)
	assert.Equal(t, "ada@gradlink.io", got.To)
	assert.Contains(t, got.Body, "https://gradlink.io/mentor-test?token="+string(testToken()))
}

func TestRejectionWordingTracksRetryWindow(t *testing.T) {
	var bodies []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg gatewayMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		bodies = append(bodies, msg.Body)
	}))
	defer ts.Close()

	svc := NewEmailService(emailConfig(ts.URL), logger.Default(), true)

	retryAt := time.Date(2026, 9, 9, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.SendRejectionNotice(context.Background(), "ada@gradlink.io", "Ada", 55, &retryAt))
	require.NoError(t, svc.SendRejectionNotice(context.Background(), "ada@gradlink.io", "Ada", 55, nil))

	require.Len(t, bodies, 2)
	assert.Contains(t, bodies[0], "try again")
	assert.Contains(t, bodies[1], "all available attempts")
}

func TestClientErrorIsPermanent(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	svc := NewEmailService(emailConfig(ts.URL), logger.Default(), true)

	err := svc.SendApprovalNotice(context.Background(), "ada@gradlink.io", "Ada", "secret")
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))

	// 4xx responses must not be retried.
	assert.Equal(t, 1, attempts)
}
