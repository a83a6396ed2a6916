package smtptest

import (
	"bytes"
	"net/mail"
	"time"
)

// Server contains state information for an SMTP server that tests can send
// messages to. The server should be able to return the messages it accepted
// during the test. It's meant to start during a test (or test suite) and stop
// right after.
type Server interface {
	// Start begins accepting connections and returns once the server is
	// listening, or with an error if it can't listen.
	Start() error

	// Close stops the server. It doesn't return an error so it's easier to
	// use with defer.
	Close()

	// RetrieveMessages returns every message the server accepted at or
	// after since.
	RetrieveMessages(since time.Time) []Message

	// Address returns the host:port the server listens on.
	Address() string
}

// Message is a message accepted by a test server, along with its SMTP
// envelope.
type Message struct {
	From     string
	To       []string
	Data     []byte
	Received time.Time
}

// Parse reads the message data as an RFC 5322 message so tests can inspect
// its headers and body.
func (m Message) Parse() (*mail.Message, error) {
	return mail.ReadMessage(bytes.NewReader(m.Data))
}
