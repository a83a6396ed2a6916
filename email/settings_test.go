package email

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

func TestNewSettings(t *testing.T) {
	testCases := []struct {
		description   string
		host          string
		port          int
		username      string
		password      string
		senderAddress string
		senderName    string
		shouldBeError bool
	}{
		{
			description:   "valid with credentials",
			host:          "smtp.example.com",
			port:          587,
			username:      "myuser",
			password:      "mypassword",
			senderAddress: "me@example.com",
			senderName:    "Me",
		},
		{
			description:   "valid without credentials",
			host:          "smtp.example.com",
			port:          25,
			senderAddress: "me@example.com",
		},
		{
			description:   "no host",
			port:          25,
			senderAddress: "me@example.com",
			shouldBeError: true,
		},
		{
			description:   "no sender address",
			host:          "smtp.example.com",
			port:          25,
			shouldBeError: true,
		},
		{
			description:   "malformed sender address",
			host:          "smtp.example.com",
			port:          25,
			senderAddress: "me at example dot com",
			shouldBeError: true,
		},
		{
			description:   "username without password",
			host:          "smtp.example.com",
			port:          25,
			username:      "myuser",
			senderAddress: "me@example.com",
			shouldBeError: true,
		},
		{
			description:   "password without username",
			host:          "smtp.example.com",
			port:          25,
			password:      "mypassword",
			senderAddress: "me@example.com",
			shouldBeError: true,
		},
		{
			description:   "port out of range",
			host:          "smtp.example.com",
			port:          70000,
			senderAddress: "me@example.com",
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			s, err := NewSettings(
				tc.host,
				tc.port,
				tc.username,
				tc.password,
				tc.senderAddress,
				tc.senderName,
				true,
			)
			if (err != nil) != tc.shouldBeError {
				t.Fatalf(
					"unexpected error status--wanted %v but got %v with error %v",
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Errorf("expected an invalid argument error but got %v", err)
				}
				return
			}
			if s.Host() != tc.host || s.Port() != tc.port {
				t.Errorf("unexpected server %v:%v", s.Host(), s.Port())
			}
			if s.HasCredentials() != (tc.username != "") {
				t.Errorf("unexpected credential mode for %v", s)
			}
			if s.DefaultSenderAddress() != tc.senderAddress {
				t.Errorf("expected sender %v but got %v", tc.senderAddress, s.DefaultSenderAddress())
			}
		})
	}
}

func TestSettingsNameFromSenderAddress(t *testing.T) {
	s, err := NewSettings("smtp.example.com", 25, "", "", "The Team <team@example.com>", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if s.DefaultSenderAddress() != "team@example.com" {
		t.Errorf("unexpected sender address %q", s.DefaultSenderAddress())
	}
	if s.DefaultSenderName() != "The Team" {
		t.Errorf("unexpected sender name %q", s.DefaultSenderName())
	}
}

func TestSettingsWithMethodsCopy(t *testing.T) {
	s, err := NewSettings("smtp.example.com", 25, "", "", "me@example.com", "", false)
	if err != nil {
		t.Fatal(err)
	}

	s2 := s.WithTimeout(time.Minute).
		WithLocalName("client.example.com").
		WithInsecureSkipVerify(true).
		WithPlainTextAlternative(false)

	if s.Timeout() != defaultTimeout || s.LocalName() != "" || s.InsecureSkipVerify() || !s.PlainTextAlternative() {
		t.Errorf("the original settings changed: %+v", s)
	}
	if s2.Timeout() != time.Minute ||
		s2.LocalName() != "client.example.com" ||
		!s2.InsecureSkipVerify() ||
		s2.PlainTextAlternative() {
		t.Errorf("the copy didn't take the new values: %+v", s2)
	}

	if _, err := s.WithCredentials("user", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected an invalid argument error but got %v", err)
	}
	s3, err := s.WithCredentials("user", "pass")
	if err != nil {
		t.Fatal(err)
	}
	if !s3.HasCredentials() || s.HasCredentials() {
		t.Error("WithCredentials should only change the copy")
	}
}

func TestSettingsStringHidesPassword(t *testing.T) {
	s, err := NewSettings("smtp.example.com", 25, "myuser", "s3cret", "me@example.com", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(s.String(), "s3cret") {
		t.Errorf("the password leaked into %q", s.String())
	}
}

func TestUnmarshalYAML(t *testing.T) {
	testCases := []struct {
		description   string
		input         string
		shouldBeError bool
	}{
		{
			description: "valid case",
			input: `host: smtp.example.com
port: 587
username: MyUser123
password: 123456-A_BCDE
senderAddress: mynewsletter@example.com
senderName: My Newsletter
useSSL: true
timeout: 30s
`,
		},
		{
			description: "anonymous",
			input: `host: smtp.example.com
username: ""
password: ""
senderAddress: mynewsletter@example.com
`,
		},
		{
			description: "no host",
			input: `port: 587
username: MyUser123
password: 123456-A_BCDE
senderAddress: mynewsletter@example.com
`,
			shouldBeError: true,
		},
		{
			description: "no username",
			input: `host: smtp.example.com
password: 123456-A_BCDE
senderAddress: mynewsletter@example.com
`,
			shouldBeError: true,
		},
		{
			description: "no password",
			input: `host: smtp.example.com
username: MyUser123
senderAddress: mynewsletter@example.com
`,
			shouldBeError: true,
		},
		{
			description: "no sender address",
			input: `host: smtp.example.com
username: MyUser123
password: 123456-A_BCDE
`,
			shouldBeError: true,
		},
		{
			description: "port not a number",
			input: `host: smtp.example.com
port: smtp
username: ""
password: ""
senderAddress: mynewsletter@example.com
`,
			shouldBeError: true,
		},
		{
			description: "useSSL not a boolean",
			input: `host: smtp.example.com
username: ""
password: ""
senderAddress: mynewsletter@example.com
useSSL: sometimes
`,
			shouldBeError: true,
		},
		{
			description: "timeout not a duration",
			input: `host: smtp.example.com
username: ""
password: ""
senderAddress: mynewsletter@example.com
timeout: 30
`,
			shouldBeError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			var s Settings
			buf := bytes.NewBuffer([]byte(tc.input))
			dec := yaml.NewDecoder(buf)
			err := dec.Decode(&s)
			if (err != nil) != tc.shouldBeError {
				t.Fatalf(
					"%v: unexpected error status--wanted %v but got %v with error %v",
					tc.description,
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("expected an invalid argument error but got %v", err)
			}
		})
	}
}

func TestUnmarshalYAMLDefaults(t *testing.T) {
	var s Settings
	err := yaml.Unmarshal([]byte(`host: smtp.example.com
username: ""
password: ""
senderAddress: mynewsletter@example.com
`), &s)
	if err != nil {
		t.Fatal(err)
	}

	if s.Port() != defaultPort {
		t.Errorf("expected the default port but got %v", s.Port())
	}
	if s.UseSSL() {
		t.Error("expected SSL to be off by default")
	}
	if s.HasCredentials() {
		t.Error("expected no credentials")
	}
	if !s.PlainTextAlternative() {
		t.Error("expected a plain text alternative by default")
	}
	if s.Timeout() != defaultTimeout {
		t.Errorf("expected the default timeout but got %v", s.Timeout())
	}
}
