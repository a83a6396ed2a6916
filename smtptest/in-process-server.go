package smtptest

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/emersion/go-smtp"
)

// doubtful we'll get an email this big, but we need a limit
const maxMessageBytes = 10 * units.MiB

// Config determines how an InProcessServer authenticates clients and which
// recipients it accepts.
type Config struct {
	// KeyPath and CertPath locate the key and certificate offered to
	// clients that issue STARTTLS. Leave both empty to disable TLS.
	KeyPath  string
	CertPath string

	// Username and Password are the only credentials the server accepts.
	// If both are empty, any non-empty credentials are fine.
	Username string
	Password string

	// AllowAnonymous lets clients send mail without authenticating.
	AllowAnonymous bool

	// AllowInsecureAuth advertises AUTH on connections that haven't been
	// upgraded to TLS.
	AllowInsecureAuth bool

	// RejectRecipients lists addresses the server refuses with a 550.
	RejectRecipients []string
}

// Backend implements smtp.Backend. It's a thin authentication wrapper
// for an InMemoryEmailStore.
type Backend struct {
	cfg   Config
	store *InMemoryEmailStore
}

// Login implements smtp.Backend.
func (be *Backend) Login(_ *smtp.ConnectionState, username string, password string) (smtp.Session, error) {
	if username == "" || password == "" {
		return nil, errors.New("no username or password provided")
	}
	if be.cfg.Username != "" || be.cfg.Password != "" {
		if username != be.cfg.Username || password != be.cfg.Password {
			return nil, &smtp.SMTPError{
				Code:         535,
				EnhancedCode: smtp.EnhancedCode{5, 7, 8},
				Message:      "Authentication credentials invalid",
			}
		}
	}
	return be.newSession(), nil
}

// AnonymousLogin implements smtp.Backend.
func (be *Backend) AnonymousLogin(_ *smtp.ConnectionState) (smtp.Session, error) {
	if !be.cfg.AllowAnonymous {
		return nil, smtp.ErrAuthUnsupported
	}
	return be.newSession(), nil
}

func (be *Backend) newSession() *session {
	reject := make(map[string]struct{}, len(be.cfg.RejectRecipients))
	for _, r := range be.cfg.RejectRecipients {
		reject[strings.ToLower(r)] = struct{}{}
	}
	return &session{
		store:  be.store,
		reject: reject,
	}
}

// session implements smtp.Session for a single client connection, collecting
// the envelope until the message data arrives.
type session struct {
	store  *InMemoryEmailStore
	reject map[string]struct{}
	from   string
	to     []string
}

// Reset implements smtp.Session.
func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

// Logout implements smtp.Session. No-op here.
func (s *session) Logout() error { return nil }

// Mail implements smtp.Session.
func (s *session) Mail(from string, _ smtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt implements smtp.Session.
func (s *session) Rcpt(to string) error {
	if _, ok := s.reject[strings.ToLower(to)]; ok {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Mailbox unavailable",
		}
	}
	s.to = append(s.to, to)
	return nil
}

// Data implements smtp.Session. Stores the message in memory for retrieval
// at the end of the test.
func (s *session) Data(r io.Reader) error {
	buf, err := io.ReadAll(io.LimitReader(r, maxMessageBytes))
	if err != nil {
		return err
	}

	s.store.save(Message{
		From:     s.from,
		To:       append([]string(nil), s.to...),
		Data:     buf,
		Received: time.Now(),
	})
	return nil
}

// InMemoryEmailStore retains messages in memory for comparison against
// a test's expected output. It's goroutine safe since we don't know how many
// connections will be hitting the server at once.
type InMemoryEmailStore struct {
	mu       sync.Mutex
	messages []Message
}

func (es *InMemoryEmailStore) save(m Message) {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.messages = append(es.messages, m)
}

// RetrieveMessages returns every stored message received at or after since.
func (es *InMemoryEmailStore) RetrieveMessages(since time.Time) []Message {
	es.mu.Lock()
	defer es.mu.Unlock()

	r := make([]Message, 0, len(es.messages))
	for _, m := range es.messages {
		if !m.Received.Before(since) {
			r = append(r, m)
		}
	}
	return r
}

// InProcessServer is an SMTP server that runs in the same process as the
// test suite, letting us inspect sent emails. You must initialize this
// via NewInProcessServer.
type InProcessServer struct {
	*smtp.Server
	*InMemoryEmailStore

	mu sync.Mutex
	l  net.Listener
}

// NewInProcessServer creates an InProcessServer, including configuring
// its SMTP server to store incoming messages in memory. If cfg names a key
// and certificate, the server offers STARTTLS with them.
func NewInProcessServer(cfg Config) (*InProcessServer, error) {
	is := &InMemoryEmailStore{}

	srv := smtp.NewServer(&Backend{
		cfg:   cfg,
		store: is,
	})

	srv.Domain = "localhost"
	srv.AllowInsecureAuth = cfg.AllowInsecureAuth
	srv.MaxMessageBytes = maxMessageBytes
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	// Strict enforces <address> syntax in MAIL and RCPT commands.
	srv.Strict = true

	if cfg.KeyPath != "" || cfg.CertPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
		if err != nil {
			return nil, err
		}
		srv.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
		}
	}

	return &InProcessServer{
		Server:             srv,
		InMemoryEmailStore: is,
	}, nil
}

// Start listens on a free loopback port and serves connections in the
// background.
func (is *InProcessServer) Start() error {
	// Not using ListenAndServeTLS--the client should upgrade the connection
	// to TLS
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}

	is.mu.Lock()
	is.l = l
	is.mu.Unlock()

	go is.Server.Serve(l)
	return nil
}

// Close shuts down the server. You must initialize a new InProcessServer
// instead of restarting this one.
func (is *InProcessServer) Close() {
	is.Server.Close()
}

// Address returns the host:port of the server, or an empty string if it
// hasn't started.
func (is *InProcessServer) Address() string {
	is.mu.Lock()
	defer is.mu.Unlock()

	if is.l == nil {
		return ""
	}
	return is.l.Addr().String()
}

// HostPort splits Address into a host and a port number.
func (is *InProcessServer) HostPort() (string, int) {
	is.mu.Lock()
	defer is.mu.Unlock()

	if is.l == nil {
		return "", 0
	}
	a, ok := is.l.Addr().(*net.TCPAddr)
	if !ok {
		return "", 0
	}
	return a.IP.String(), a.Port
}
