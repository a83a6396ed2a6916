package email

import (
	"fmt"
	"net/mail"
	"strconv"
	"time"
)

const (
	defaultPort    int           = 25
	implicitTLS    int           = 465 // SMTPS
	defaultTimeout time.Duration = 10 * time.Second
)

// Settings holds what a Client needs to reach an SMTP server and the
// identity it sends as by default. Create Settings with NewSettings or by
// decoding YAML. A Settings value never changes after it's created: the With*
// methods return modified copies.
type Settings struct {
	host                 string
	port                 int
	username             string
	password             string
	senderAddress        string
	senderName           string
	useSSL               bool
	timeout              time.Duration
	localName            string
	insecureSkipVerify   bool
	plainTextAlternative bool
}

// NewSettings validates its arguments and returns Settings using them. The
// username and password must be supplied together, or both left empty to
// send without authenticating. If useSSL is true, the connection uses TLS
// from the start on port 465 and requires STARTTLS on any other port.
func NewSettings(
	host string,
	port int,
	username string,
	password string,
	senderAddress string,
	senderName string,
	useSSL bool,
) (Settings, error) {
	if host == "" {
		return Settings{}, invalidArgument("must supply an SMTP server host")
	}
	if port <= 0 || port > 65535 {
		return Settings{}, invalidArgument("the SMTP server port %v is out of range", port)
	}
	if (username == "") != (password == "") {
		return Settings{}, invalidArgument("must supply both a username and a password, or neither")
	}
	if senderAddress == "" {
		return Settings{}, invalidArgument("must supply a default sender address")
	}
	a, err := mail.ParseAddress(senderAddress)
	if err != nil {
		return Settings{}, invalidArgument("can't parse the default sender address: %v", err)
	}
	if senderName == "" {
		senderName = a.Name
	}

	return Settings{
		host:                 host,
		port:                 port,
		username:             username,
		password:             password,
		senderAddress:        a.Address,
		senderName:           senderName,
		useSSL:               useSSL,
		timeout:              defaultTimeout,
		plainTextAlternative: true,
	}, nil
}

// Host is the SMTP server's host name or IP address.
func (s Settings) Host() string { return s.host }

// Port is the SMTP server's TCP port.
func (s Settings) Port() int { return s.port }

// Username is empty when the client doesn't authenticate.
func (s Settings) Username() string { return s.username }

func (s Settings) Password() string { return s.password }

// HasCredentials reports whether the client authenticates to the server.
func (s Settings) HasCredentials() bool {
	return s.username != "" && s.password != ""
}

func (s Settings) DefaultSenderAddress() string { return s.senderAddress }

func (s Settings) DefaultSenderName() string { return s.senderName }

// DefaultSender returns a new address for the default sender identity.
func (s Settings) DefaultSender() *mail.Address {
	return &mail.Address{
		Name:    s.senderName,
		Address: s.senderAddress,
	}
}

func (s Settings) UseSSL() bool { return s.useSSL }

// Timeout bounds dialing and each network operation.
func (s Settings) Timeout() time.Duration { return s.timeout }

// LocalName is the name sent with HELO/EHLO. Empty means "localhost".
func (s Settings) LocalName() string { return s.localName }

func (s Settings) InsecureSkipVerify() bool { return s.insecureSkipVerify }

// PlainTextAlternative reports whether HTML messages also carry a text/plain
// version of the body.
func (s Settings) PlainTextAlternative() bool { return s.plainTextAlternative }

// WithTimeout returns a copy of s with the given network timeout.
func (s Settings) WithTimeout(d time.Duration) Settings {
	s.timeout = d
	return s
}

// WithLocalName returns a copy of s that greets the server as name.
func (s Settings) WithLocalName(name string) Settings {
	s.localName = name
	return s
}

// WithInsecureSkipVerify returns a copy of s that does (or doesn't) verify
// the server's TLS certificate. Only meant for testing against self-signed
// certificates.
func (s Settings) WithInsecureSkipVerify(skip bool) Settings {
	s.insecureSkipVerify = skip
	return s
}

// WithPlainTextAlternative returns a copy of s that does (or doesn't) add a
// text/plain part to HTML messages.
func (s Settings) WithPlainTextAlternative(on bool) Settings {
	s.plainTextAlternative = on
	return s
}

// String implements fmt.Stringer without revealing the password.
func (s Settings) String() string {
	return fmt.Sprintf(
		"smtp://%v:%v (user %q, ssl %v, sender %q)",
		s.host,
		s.port,
		s.username,
		s.useSSL,
		s.senderAddress,
	)
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. Validation is
// performed here, so a decoded Settings is ready to use.
//
// The "username" and "password" keys are required, though they can be empty
// strings to send without authenticating. This is so a config file that
// forgets its credentials fails loudly instead of silently sending
// anonymously.
func (s *Settings) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the email config: %v", err)
	}

	for _, k := range []string{"host", "username", "password", "senderAddress"} {
		if _, ok := v[k]; !ok {
			return invalidArgument("the email config must include %q", k)
		}
	}

	port := defaultPort
	if p, ok := v["port"]; ok && p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return invalidArgument("can't parse the port as an integer: %v", err)
		}
	}

	useSSL, err := parseBool(v, "useSSL", false)
	if err != nil {
		return err
	}

	ns, err := NewSettings(
		v["host"],
		port,
		v["username"],
		v["password"],
		v["senderAddress"],
		v["senderName"],
		useSSL,
	)
	if err != nil {
		return err
	}

	if t, ok := v["timeout"]; ok && t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return invalidArgument("can't parse the timeout as a duration: %v", err)
		}
		ns = ns.WithTimeout(d)
	}

	skip, err := parseBool(v, "skipCertVerification", false)
	if err != nil {
		return err
	}
	alt, err := parseBool(v, "plainTextAlternative", true)
	if err != nil {
		return err
	}

	*s = ns.
		WithLocalName(v["localName"]).
		WithInsecureSkipVerify(skip).
		WithPlainTextAlternative(alt)
	return nil
}

// WithCredentials returns a copy of s that authenticates with username and
// password. Used to apply credentials from outside the config file.
func (s Settings) WithCredentials(username, password string) (Settings, error) {
	if (username == "") != (password == "") {
		return Settings{}, invalidArgument("must supply both a username and a password, or neither")
	}
	s.username = username
	s.password = password
	return s, nil
}

func parseBool(v map[string]string, key string, def bool) (bool, error) {
	b, ok := v[key]
	if !ok || b == "" {
		return def, nil
	}
	r, err := strconv.ParseBool(b)
	if err != nil {
		return false, invalidArgument("can't parse %q as a boolean: %v", key, err)
	}
	return r, nil
}
