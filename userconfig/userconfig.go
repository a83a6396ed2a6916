package userconfig

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ptgott/mailsend/email"
	"github.com/ptgott/mailsend/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	yaml "gopkg.in/yaml.v2"
)

// Environment variables that override the SMTP credentials in the config
// file, so secrets can stay out of it.
const (
	usernameEnv = "MAILSEND_SMTP_USERNAME"
	passwordEnv = "MAILSEND_SMTP_PASSWORD"
)

const defaultLogLevel = "info"

// Meta represents all current config options that the application can use,
// i.e., after validation and parsing
type Meta struct {
	Email email.Settings `yaml:"email"`
	// Journal is nil if failures shouldn't be recorded.
	Journal  *storage.KVConfig `yaml:"journal"`
	LogLevel string            `yaml:"logLevel"`
}

// CheckAndSetDefaults validates m and either returns a copy of m with default
// settings applied or returns an error due to an invalid configuration
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := *m

	if c.Email.Host() == "" {
		return Meta{}, errors.New("must include an \"email\" section")
	}

	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return Meta{}, fmt.Errorf("unrecognized log level %q", c.LogLevel)
	}

	if c.Journal != nil {
		j := *c.Journal
		c.Journal = &j
	}

	return c, nil
}

// Parse generates usable configurations from possibly arbitrary user input.
// An error indicates a problem with parsing or validation. The Reader r
// can be either JSON or YAML.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	err := yaml.NewDecoder(r).Decode(&m)
	if err != nil {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}

	if m.Email.Host() == "" {
		return &Meta{}, errors.New("must include an \"email\" section")
	}

	u, uok := os.LookupEnv(usernameEnv)
	p, pok := os.LookupEnv(passwordEnv)
	if uok || pok {
		if !uok {
			u = m.Email.Username()
		}
		if !pok {
			p = m.Email.Password()
		}
		s, err := m.Email.WithCredentials(u, p)
		if err != nil {
			return &Meta{}, fmt.Errorf("can't apply credentials from the environment: %w", err)
		}
		m.Email = s
		log.Debug().Msg("using SMTP credentials from the environment")
	}

	if m.Journal == nil {
		log.Debug().Msg(
			"no journal configured, so failures won't be recorded",
		)
	}

	return &m, nil

}
