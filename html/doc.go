package html

// html turns the HTML body of an email into readable plain text, so HTML
// messages can also carry a text/plain alternative for clients that don't
// render HTML. It is not concerned with sending the email.
