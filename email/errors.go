package email

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument is wrapped by every error caused by a missing or
	// malformed setting or call parameter. These are returned right away and
	// never wrapped in a *SendError.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSendFailed matches any *SendError via errors.Is.
	ErrSendFailed = errors.New("failed to send email")

	// ErrClientClosed is returned when sending through a closed Client.
	ErrClientClosed = errors.New("the email client is closed")
)

// invalidArgument returns an error wrapping ErrInvalidArgument.
func invalidArgument(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %v", ErrInvalidArgument, fmt.Sprintf(format, a...))
}

// SendError records a message the transport failed to deliver, along with
// the transport's error. It is a snapshot: changing the Message after the
// failure does not change the SendError.
type SendError struct {
	// Explanation is a human-readable summary of the failed message
	Explanation   string
	SenderAddress string
	Recipients    []string
	CC            []string
	BCC           []string
	Subject       string
	Body          string
	IsHTML        bool
	// Cause is the error returned by the transport
	Cause error
}

// NewSendError captures msg and cause, using the default explanation.
func NewSendError(msg *Message, cause error) *SendError {
	return NewSendErrorWithMessage(msg, defaultExplanation(msg), cause)
}

// NewSendErrorWithMessage captures msg and cause with a caller-provided
// explanation.
func NewSendErrorWithMessage(msg *Message, explanation string, cause error) *SendError {
	se := &SendError{
		Explanation: explanation,
		Cause:       cause,
	}
	if msg == nil {
		return se
	}
	if msg.Sender != nil {
		se.SenderAddress = msg.Sender.Address
	}
	se.Recipients = addressStrings(msg.To)
	se.CC = addressStrings(msg.CC)
	se.BCC = addressStrings(msg.BCC)
	se.Subject = msg.Subject
	se.Body = msg.Body
	se.IsHTML = msg.IsHTML
	return se
}

// Error implements error.
func (e *SendError) Error() string {
	if e.Cause == nil {
		return e.Explanation
	}
	return fmt.Sprintf("%v: %v", e.Explanation, e.Cause)
}

// Unwrap returns the transport error.
func (e *SendError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrSendFailed.
func (e *SendError) Is(target error) bool {
	return target == ErrSendFailed
}

// sendErrorJSON is the wire form of a SendError. The cause only survives as
// text.
type sendErrorJSON struct {
	Explanation   string   `json:"explanation"`
	SenderAddress string   `json:"senderAddress,omitempty"`
	Recipients    []string `json:"recipients"`
	CC            []string `json:"cc,omitempty"`
	BCC           []string `json:"bcc,omitempty"`
	Subject       string   `json:"subject"`
	Body          string   `json:"body"`
	IsHTML        bool     `json:"isHTML"`
	Cause         string   `json:"cause,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *SendError) MarshalJSON() ([]byte, error) {
	j := sendErrorJSON{
		Explanation:   e.Explanation,
		SenderAddress: e.SenderAddress,
		Recipients:    e.Recipients,
		CC:            e.CC,
		BCC:           e.BCC,
		Subject:       e.Subject,
		Body:          e.Body,
		IsHTML:        e.IsHTML,
	}
	if e.Cause != nil {
		j.Cause = e.Cause.Error()
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded Cause is an opaque
// error carrying the original cause's text.
func (e *SendError) UnmarshalJSON(b []byte) error {
	var j sendErrorJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return fmt.Errorf("can't decode the send error: %w", err)
	}
	*e = SendError{
		Explanation:   j.Explanation,
		SenderAddress: j.SenderAddress,
		Recipients:    j.Recipients,
		CC:            j.CC,
		BCC:           j.BCC,
		Subject:       j.Subject,
		Body:          j.Body,
		IsHTML:        j.IsHTML,
	}
	if j.Cause != "" {
		e.Cause = errors.New(j.Cause)
	}
	return nil
}

// defaultExplanation lists the sender, every recipient and the subject of
// msg.
func defaultExplanation(msg *Message) string {
	if msg == nil {
		return "failed to send message"
	}

	var b strings.Builder
	b.WriteString("failed to send message from ")
	if msg.Sender != nil {
		b.WriteString(msg.Sender.Address)
	} else {
		b.WriteString("<unknown>")
	}
	b.WriteString(" to ")
	b.WriteString(strings.Join(addressStrings(msg.To), ", "))
	if len(msg.CC) > 0 {
		b.WriteString(", CC ")
		b.WriteString(strings.Join(addressStrings(msg.CC), ", "))
	}
	if len(msg.BCC) > 0 {
		b.WriteString(", BCC ")
		b.WriteString(strings.Join(addressStrings(msg.BCC), ", "))
	}
	fmt.Fprintf(&b, ", subject '%v'", msg.Subject)
	return b.String()
}
