package email

// email is responsible for sending email to an SMTP relay: holding the
// connection settings and default sender identity, building a UTF-8 MIME
// message from a Message, and handing it to the transport library, which
// connects to the server and negotiates TLS and authentication. It does not
// speak SMTP itself. Any failure reported by the transport comes back to the
// caller as a *SendError that records what we tried to send.
