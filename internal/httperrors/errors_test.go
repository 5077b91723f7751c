package httperrors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"deadline", context.DeadlineExceeded, Timeout},
		{"dns", &url.Error{Op: "Get", URL: "https://x", Err: &net.DNSError{Err: "no such host", Name: "x"}}, DNS},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ConnectionRefused},
		{"tls", errors.New("x509: certificate signed by unknown authority"), TLS},
		{"server", fmt.Errorf("management API returned 503: service unavailable"), Server},
		{"other", errors.New("unexpected EOF"), Generic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExplain(t *testing.T) {
	var buf bytes.Buffer
	Explain(&buf, errors.New("connection refused"), "deleting account prod", "management.azure.com")
	if !bytes.Contains(buf.Bytes(), []byte("Connection refused while deleting account prod")) {
		t.Fatalf("unexpected message: %q", buf.String())
	}
}

func TestIsNetworkError(t *testing.T) {
	if !IsNetworkError(&url.Error{Op: "Get", URL: "https://x", Err: errors.New("boom")}) {
		t.Fatal("url.Error should be a network error")
	}
	if IsNetworkError(errors.New("management API returned 403: no access")) {
		t.Fatal("API errors are not network errors")
	}
}

func TestExtractHostFromURL(t *testing.T) {
	if got := ExtractHostFromURL("https://management.azure.com/subscriptions"); got != "management.azure.com" {
		t.Fatalf("got %q", got)
	}
	if got := ExtractHostFromURL("::"); got != "server" {
		t.Fatalf("got %q", got)
	}
}
