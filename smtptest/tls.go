package smtptest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/flashmob/go-guerrilla/tests/testcert"
)

// tlsHost is the host the generated certificate is issued for.
const tlsHost = "127.0.0.1"

// GenerateTLSFiles writes a TLS key and certificate to a temporary test
// directory that is removed after the test runs. It returns the file
// paths of the key and certificate. The certificate is a root cert.
func GenerateTLSFiles(t *testing.T) (keyPath string, certPath string, err error) {
	d := t.TempDir()
	err = testcert.GenerateCert(
		tlsHost,
		"",                         // defaults to now
		time.Duration(1)*time.Hour, // the test won't run for this long
		true,                       // is a CA cert
		2048,
		"", // using the default ecdsa curve
		d+string(filepath.Separator),
	)

	if err != nil {
		return
	}

	// These file names are hardcoded into testcert.GenerateCert
	keyPath = filepath.Join(d, tlsHost+".key.pem")
	certPath = filepath.Join(d, tlsHost+".cert.pem")

	return
}
