package e2e

// e2e contains integration tests and utility code required to set up
// dependencies. The tests send real SMTP traffic from the email client to an
// in-process server, so they exercise the transport library as well as our
// own code. (These are integration tests rather than end-to-end tests, but
// the name stuck.)
