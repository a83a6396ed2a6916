package email

import (
	"context"
	"crypto/tls"
	"io"
	"net/mail"
	"sync"

	"github.com/ptgott/mailsend/html"
	"github.com/rs/zerolog/log"
	gomail "gopkg.in/mail.v2"
)

// dialer opens a connection to an SMTP server. Every call returns a new
// connection that the caller must close.
type dialer interface {
	Dial() (gomail.SendCloser, error)
}

// settingsDialer dials the server described by a Settings value. A
// gomail.Dialer picks an auth mechanism during Dial and stores it on itself,
// so we build a fresh one for each connection rather than sharing one
// between concurrent sends.
type settingsDialer struct {
	settings Settings
}

func (sd settingsDialer) Dial() (gomail.SendCloser, error) {
	return newTransportDialer(sd.settings).Dial()
}

// newTransportDialer maps Settings onto the transport library's dialer.
func newTransportDialer(s Settings) *gomail.Dialer {
	d := gomail.NewDialer(s.Host(), s.Port(), "", "")
	if s.HasCredentials() {
		d.Username = s.Username()
		d.Password = s.Password()
	}
	d.Timeout = s.Timeout()
	d.LocalName = s.LocalName()
	// We never retry a failed send.
	d.RetryFailure = false
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host(),
		InsecureSkipVerify: s.InsecureSkipVerify(),
	}

	switch {
	case !s.UseSSL():
		d.SSL = false
		d.StartTLSPolicy = gomail.NoStartTLS
	case s.Port() == implicitTLS:
		d.SSL = true
	default:
		d.SSL = false
		d.StartTLSPolicy = gomail.MandatoryStartTLS
	}
	return d
}

// Client sends email through the SMTP server named in its Settings. Each
// send uses its own connection, which is closed before the send returns, so
// a Client can be shared between goroutines. Call Close when you're done
// with it.
type Client struct {
	settings Settings
	dialer   dialer

	mu     sync.Mutex
	closed bool
}

// NewClient returns a Client for the given settings. It doesn't connect to
// the server until the first send.
func NewClient(s Settings) *Client {
	return &Client{
		settings: s,
		dialer:   settingsDialer{settings: s},
	}
}

// Settings returns the settings c was created with.
func (c *Client) Settings() Settings {
	return c.settings
}

// SendEmail sends a message built from its arguments. recipients is a list
// of addresses separated by commas or semicolons (see ParseRecipients). If
// sender is empty, the configured default sender is used, otherwise sender
// becomes both the Sender and the From address.
func (c *Client) SendEmail(
	ctx context.Context,
	recipients string,
	subject string,
	body string,
	isHTML bool,
	sender string,
) error {
	to, err := ParseRecipients(recipients)
	if err != nil {
		return err
	}

	msg := &Message{
		To:      to,
		Subject: subject,
		Body:    body,
		IsHTML:  isHTML,
	}

	if sender != "" {
		s, err := parseAddress(sender)
		if err != nil {
			return invalidArgument("can't parse the sender %q: %v", sender, err)
		}
		msg.Sender = s
		f := *s
		msg.From = &f
	}

	return c.Send(ctx, msg)
}

// Send delivers msg. If msg has no Sender or From, Send sets them to the
// configured default sender before sending, so the caller sees the
// addresses that were used.
//
// Errors that come from the transport, including failing to connect, are
// returned as a *SendError. Problems with msg itself are returned as errors
// wrapping ErrInvalidArgument and nothing is sent.
func (c *Client) Send(ctx context.Context, msg *Message) error {
	if msg == nil {
		return invalidArgument("must supply a message")
	}
	if len(addressStrings(msg.To)) == 0 {
		return invalidArgument("the message must have at least one recipient")
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClientClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if msg.Sender == nil {
		msg.Sender = c.settings.DefaultSender()
	}
	if msg.From == nil {
		msg.From = c.settings.DefaultSender()
	}

	m := c.newTransportMessage(msg)
	to := msg.recipients()

	log.Debug().
		Str("from", msg.Sender.Address).
		Strs("to", to).
		Str("subject", msg.Subject).
		Msg("sending an email")

	if err := c.deliver(msg.Sender.Address, to, m); err != nil {
		log.Error().
			Err(err).
			Strs("to", to).
			Str("subject", msg.Subject).
			Msg("error sending an email")
		return NewSendError(msg, err)
	}

	return nil
}

// deliver opens a connection, sends one message and closes the connection,
// whatever the outcome of the send.
func (c *Client) deliver(from string, to []string, m io.WriterTo) error {
	conn, err := c.dialer.Dial()
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing the SMTP connection")
		}
	}()

	return conn.Send(from, to, m)
}

// Close stops c from sending any more messages. Connections are released
// at the end of each send, so nothing is left open afterward. Calling Close
// more than once is fine.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// newTransportMessage builds the MIME message for msg. Sender and From must
// already be set.
func (c *Client) newTransportMessage(msg *Message) *gomail.Message {
	m := gomail.NewMessage(
		gomail.SetCharset("UTF-8"),
		gomail.SetEncoding(gomail.QuotedPrintable),
	)

	m.SetAddressHeader("From", msg.From.Address, msg.From.Name)
	if msg.Sender.Address != msg.From.Address {
		m.SetAddressHeader("Sender", msg.Sender.Address, msg.Sender.Name)
	}
	if msg.ReplyTo != nil {
		m.SetAddressHeader("Reply-To", msg.ReplyTo.Address, msg.ReplyTo.Name)
	}
	m.SetHeader("To", formatAddresses(m, msg.To)...)
	if cc := formatAddresses(m, msg.CC); len(cc) > 0 {
		m.SetHeader("Cc", cc...)
	}
	// BCC recipients only go in the envelope. See Message.recipients.
	m.SetHeader("Subject", msg.Subject)

	c.setBody(m, msg)

	for _, a := range msg.Attachments {
		m.Attach(a.Filename, attachmentSettings(a)...)
	}

	return m
}

// setBody writes msg's body, adding a text/plain alternative to HTML bodies
// if the settings ask for one.
func (c *Client) setBody(m *gomail.Message, msg *Message) {
	if !msg.IsHTML {
		m.SetBody("text/plain", msg.Body)
		return
	}

	if !c.settings.PlainTextAlternative() {
		m.SetBody("text/html", msg.Body)
		return
	}

	txt, err := html.ToText(msg.Body)
	if err != nil {
		log.Warn().
			Err(err).
			Str("subject", msg.Subject).
			Msg("can't derive a plain text body, sending HTML only")
		m.SetBody("text/html", msg.Body)
		return
	}

	// Clients prefer the last alternative, so HTML goes last.
	m.SetBody("text/plain", txt)
	m.AddAlternative("text/html", msg.Body)
}

func attachmentSettings(a Attachment) []gomail.FileSetting {
	content := a.Content
	s := []gomail.FileSetting{
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}),
	}
	if a.ContentType != "" {
		s = append(s, gomail.SetHeader(map[string][]string{
			"Content-Type": {a.ContentType},
		}))
	}
	return s
}

func formatAddresses(m *gomail.Message, addrs []*mail.Address) []string {
	f := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a != nil {
			f = append(f, m.FormatAddress(a.Address, a.Name))
		}
	}
	return f
}
