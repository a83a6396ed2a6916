package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ptgott/mailsend/smtptest"
	"github.com/ptgott/mailsend/userconfig"
)

// testEnvironmentConfig exposes options that should be available and
// perhaps changeable when spinning up a test environment. While they
// may not vary between tests, they shouldn't be buried inside
// functions.
type testEnvironmentConfig struct {
	// Credentials the server accepts and the client presents. Leave both
	// empty to send anonymously.
	username string
	password string
	// clientPassword overrides the password the client presents.
	clientPassword string
	// useSSL makes the client insist on STARTTLS.
	useSSL bool
	// journal gives the client a failure journal.
	journal          bool
	rejectRecipients []string
}

// testEnvironment manages all dependencies required to simulate a "real"
// environment and run the e2e tests. Callers should create this via
// startTestEnvironment.
type testEnvironment struct {
	SMTPServer  *smtptest.InProcessServer
	tempDirPath string // must be populated programmatically
	configPath  string
}

// startTestEnvironment starts an SMTP server and writes a client config
// pointing at it. Callers should defer a call to tearDown.
//
// Note that if startTestEnvironment fails, it will return an error along with
// whatever shreds of a test environment we've set up so far so you can tear
// it down (i.e., it won't just be the zero value)
func startTestEnvironment(t *testing.T, c testEnvironmentConfig) (*testEnvironment, error) {
	te := &testEnvironment{
		tempDirPath: t.TempDir(),
	}

	key, cert, err := smtptest.GenerateTLSFiles(t)
	if err != nil {
		return te, fmt.Errorf("could not generate TLS files: %w", err)
	}

	ts, err := smtptest.NewInProcessServer(smtptest.Config{
		KeyPath:          key,
		CertPath:         cert,
		Username:         c.username,
		Password:         c.password,
		AllowAnonymous:   c.username == "" && c.password == "",
		RejectRecipients: c.rejectRecipients,
	})
	if err != nil {
		return te, fmt.Errorf("could not create the SMTP server: %w", err)
	}
	if err := ts.Start(); err != nil {
		return te, fmt.Errorf("could not start the SMTP server: %w", err)
	}
	te.SMTPServer = ts

	host, port := ts.HostPort()
	opts := appConfigOptions{
		Host:     host,
		Port:     port,
		Username: c.username,
		Password: c.password,
		UseSSL:   c.useSSL,
	}
	if c.clientPassword != "" {
		opts.Password = c.clientPassword
	}
	if c.journal {
		opts.StorageDir = filepath.Join(te.tempDirPath, "journal")
	}

	te.configPath = filepath.Join(te.tempDirPath, "config.yaml")
	if err := createAppConfig(te.configPath, opts); err != nil {
		return te, err
	}

	return te, nil
}

// config parses the environment's client configuration.
func (te *testEnvironment) config() (userconfig.Meta, error) {
	f, err := os.Open(te.configPath)
	if err != nil {
		return userconfig.Meta{}, err
	}
	defer f.Close()

	m, err := userconfig.Parse(f)
	if err != nil {
		return userconfig.Meta{}, err
	}
	return m.CheckAndSetDefaults()
}

// tearDown returns the testEnvironment to its state prior to start. Designed
// to call with defer
func (te *testEnvironment) tearDown() {
	if te.SMTPServer != nil {
		te.SMTPServer.Close()
	}
}
