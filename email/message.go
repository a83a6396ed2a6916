package email

import (
	"net/mail"
	"strings"
)

// Message is an outgoing email. Sender and From are optional: the Client
// fills them in with the configured default sender before sending.
type Message struct {
	// Sender is the address the server sees in MAIL FROM. It is also written
	// as a Sender header when it differs from From.
	Sender  *mail.Address
	From    *mail.Address
	ReplyTo *mail.Address
	To      []*mail.Address
	CC      []*mail.Address
	// BCC recipients receive the message but never appear in its headers
	BCC     []*mail.Address
	Subject string
	Body    string
	// IsHTML marks Body as text/html rather than text/plain
	IsHTML      bool
	Attachments []Attachment
}

// Attachment is a file attached to a Message. An empty ContentType lets the
// transport library guess it from Filename.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// recipients returns the envelope recipients of m in To, CC, BCC order.
func (m *Message) recipients() []string {
	r := make([]string, 0, len(m.To)+len(m.CC)+len(m.BCC))
	r = append(r, addressStrings(m.To)...)
	r = append(r, addressStrings(m.CC)...)
	r = append(r, addressStrings(m.BCC)...)
	return r
}

// ParseRecipients splits a list of addresses separated by commas or
// semicolons, trims each entry and parses it as an RFC 5322 address, e.g.
// "a@example.com; Bob <b@example.com>,c@example.com". Empty entries are
// skipped. It's an error if no address remains or any entry is malformed.
func ParseRecipients(list string) ([]*mail.Address, error) {
	parts := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ';'
	})

	addrs := make([]*mail.Address, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		a, err := parseAddress(p)
		if err != nil {
			return nil, invalidArgument("can't parse the recipient %q: %v", p, err)
		}
		addrs = append(addrs, a)
	}

	if len(addrs) == 0 {
		return nil, invalidArgument("must supply at least one recipient")
	}
	return addrs, nil
}

func parseAddress(s string) (*mail.Address, error) {
	return mail.ParseAddress(strings.TrimSpace(s))
}

func addressStrings(addrs []*mail.Address) []string {
	s := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a != nil {
			s = append(s, a.Address)
		}
	}
	return s
}
