// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns network failures of the management API into messages a user
// can act on.
package httperrors

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
)

// Category classifies a network failure.
type Category int

const (
	Generic Category = iota
	Timeout
	DNS
	ConnectionRefused
	TLS
	Server
)

// Classify inspects err and returns its category.
func Classify(err error) Category {
	switch {
	case err == nil:
		return Generic
	case isTimeoutError(err):
		return Timeout
	case isDNSError(err):
		return DNS
	case isConnectionRefusedError(err):
		return ConnectionRefused
	case isSSLError(err):
		return TLS
	case isServerError(err.Error()):
		return Server
	}
	return Generic
}

// FormatNetworkError prints a troubleshooting message for err and returns
// err wrapped. action describes what was attempted, e.g. "deleting account prod".
func FormatNetworkError(err error, action, host string) error {
	if err == nil {
		return nil
	}
	var buf bytes.Buffer
	Explain(&buf, err, action, host)
	pterm.Warning.Print(buf.String())
	return fmt.Errorf("network error: %w", err)
}

// Explain writes the troubleshooting message for err to w.
func Explain(w io.Writer, err error, action, host string) {
	if w == nil {
		w = io.Discard
	}
	p := func(format string, args ...any) { fmt.Fprintf(w, format+"\n", args...) }

	switch Classify(err) {
	case Timeout:
		p("Connection timeout while %s", action)
		p("%s took too long to respond. Check your connection and try again.", host)
	case DNS:
		p("Cannot resolve %s while %s", host, action)
		p("Check your internet connection, DNS settings and the management.endpoint setting.")
	case ConnectionRefused:
		p("Connection refused while %s", action)
		p("%s is not accepting connections. Check the endpoint address and any proxy or firewall.", host)
	case TLS:
		p("Secure connection failed while %s", action)
		p("Check your system clock and whether a proxy intercepts HTTPS traffic.")
	case Server:
		p("Server error while %s", action)
		p("%s reported an internal error. Try again in a few minutes.", host)
	default:
		p("Cannot reach %s while %s", host, action)
		details := err.Error()
		if len(details) > 100 {
			details = details[:100] + "..."
		}
		p("Technical details: %s", details)
	}
}

func isTimeoutError(err error) bool {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "x509") ||
		strings.Contains(errStr, "certificate")
}

// isServerError checks if the error indicates a server-side problem (5xx errors).
func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	for _, marker := range []string{" 500", " 502", " 503", " 504", "internal server error", "bad gateway", "service unavailable", "gateway timeout"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsNetworkError reports whether err comes from the transport rather than from an API
// response.
func IsNetworkError(err error) bool {
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) || errors.As(err, &netErr)
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "server"
	}
	return u.Host
}
