package e2e

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ptgott/mailsend/email"
	"github.com/ptgott/mailsend/journal"
	"github.com/ptgott/mailsend/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Send through STARTTLS and AUTH and make sure the server gets the message
// we built.
func TestSendThroughServer(t *testing.T) {
	testenv, err := startTestEnvironment(t, testEnvironmentConfig{
		username: "myuser123",
		password: "mypassword123",
		useSSL:   true,
	})
	defer testenv.tearDown()
	require.NoError(t, err, "error starting test environment")

	config, err := testenv.config()
	require.NoError(t, err)

	c := email.NewClient(config.Email)
	defer c.Close()

	start := time.Now()
	err = c.SendEmail(
		context.Background(),
		"a@example.com; b@example.com",
		"Weekly update",
		"<h1>Hello</h1><p>Read <a href=\"https://example.com\">this</a>.</p>",
		true,
		"",
	)
	require.NoError(t, err)

	msgs := testenv.SMTPServer.RetrieveMessages(start)
	require.Len(t, msgs, 1)
	assert.Equal(t, "mynewsletter@example.com", msgs[0].From)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, msgs[0].To)

	m, err := msgs[0].Parse()
	require.NoError(t, err)
	assert.Equal(t, "Weekly update", m.Header.Get("Subject"))
	assert.Contains(t, m.Header.Get("From"), "mynewsletter@example.com")
	assert.Contains(t, m.Header.Get("Content-Type"), "multipart/alternative")
}

// Sending without credentials shouldn't attempt AUTH.
func TestAnonymousSend(t *testing.T) {
	testenv, err := startTestEnvironment(t, testEnvironmentConfig{})
	defer testenv.tearDown()
	require.NoError(t, err, "error starting test environment")

	config, err := testenv.config()
	require.NoError(t, err)
	require.False(t, config.Email.HasCredentials())

	c := email.NewClient(config.Email)
	defer c.Close()

	start := time.Now()
	for i := 0; i < 2; i++ {
		err = c.SendEmail(context.Background(), "you@example.com", "Hi", "Plain text", false, "")
		require.NoError(t, err)
	}

	assert.Len(t, testenv.SMTPServer.RetrieveMessages(start), 2)
}

// A rejected recipient fails the send with a SendError that describes the
// message, and the failure survives a round trip through the journal.
func TestRejectedRecipientIsJournaled(t *testing.T) {
	testenv, err := startTestEnvironment(t, testEnvironmentConfig{
		username:         "myuser123",
		password:         "mypassword123",
		useSSL:           true,
		journal:          true,
		rejectRecipients: []string{"nobody@example.com"},
	})
	defer testenv.tearDown()
	require.NoError(t, err, "error starting test environment")

	config, err := testenv.config()
	require.NoError(t, err)
	require.NotNil(t, config.Journal)

	db, err := storage.NewBadgerDB(config.Journal)
	require.NoError(t, err)
	defer db.Close()
	j := journal.New(db)

	c := email.NewClient(config.Email)
	defer c.Close()

	start := time.Now()
	err = c.SendEmail(
		context.Background(),
		"you@example.com, nobody@example.com",
		"Bounced",
		"This won't arrive",
		false,
		"Alerts <alerts@example.com>",
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, email.ErrSendFailed))

	var se *email.SendError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "alerts@example.com", se.SenderAddress)
	assert.Equal(t, []string{"you@example.com", "nobody@example.com"}, se.Recipients)
	assert.Equal(t, "Bounced", se.Subject)
	assert.Equal(t, "This won't arrive", se.Body)
	assert.False(t, se.IsHTML)
	require.NotNil(t, se.Cause)
	assert.Contains(t, se.Cause.Error(), "550")

	assert.Empty(t, testenv.SMTPServer.RetrieveMessages(start))

	e, err := j.Record(se)
	require.NoError(t, err)

	entries, err := j.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e.ID, entries[0].ID)
	got := entries[0].Failure
	assert.Equal(t, se.Error(), got.Error())
	assert.Equal(t, se.Recipients, got.Recipients)
	assert.Equal(t, se.Cause.Error(), got.Cause.Error())

	// The client is still usable after a failed send.
	err = c.SendEmail(context.Background(), "you@example.com", "Retry", "Again", false, "")
	require.NoError(t, err)
	assert.Len(t, testenv.SMTPServer.RetrieveMessages(start), 1)
}

func TestWrongCredentials(t *testing.T) {
	testenv, err := startTestEnvironment(t, testEnvironmentConfig{
		username:       "myuser123",
		password:       "mypassword123",
		clientPassword: "wrongpassword",
		useSSL:         true,
	})
	defer testenv.tearDown()
	require.NoError(t, err, "error starting test environment")

	config, err := testenv.config()
	require.NoError(t, err)

	c := email.NewClient(config.Email)
	defer c.Close()

	err = c.SendEmail(context.Background(), "you@example.com", "Hi", "Body", false, "")
	var se *email.SendError
	require.True(t, errors.As(err, &se), "expected a SendError but got %v", err)
	assert.Equal(t, []string{"you@example.com"}, se.Recipients)
}
