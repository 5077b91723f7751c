// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var rePort = regexp.MustCompile(`^\d+$`)

// uriParts is the scheme-independent split of
// scheme://[user[:password]@]host[:port][,host[:port]...][/database][?params].
type uriParts struct {
	scheme   string
	user     string
	password string
	hosts    []string
	database string
	params   map[string]string
}

// splitURI splits a connection URI without relying on net/url, so passwords with
// unencoded special characters ('@', ':', '/', '^', ...) survive.
func splitURI(dsn string, schemes []string) (*uriParts, error) {
	p := &uriParts{params: make(map[string]string)}

	lower := strings.ToLower(dsn)
	remainder := ""
	for _, s := range schemes {
		if strings.HasPrefix(lower, s+"://") {
			p.scheme = s
			remainder = dsn[len(s)+3:]
			break
		}
	}
	if p.scheme == "" {
		return nil, NewParseError(dsn, "missing or invalid scheme", "use "+strings.Join(schemes, ":// or ")+"://")
	}

	// Query parameters never contain '@', so the last '@' before '?' ends the credentials.
	query := ""
	if q := strings.Index(remainder, "?"); q >= 0 {
		query = remainder[q+1:]
		remainder = remainder[:q]
	}
	if at := strings.LastIndex(remainder, "@"); at >= 0 {
		auth := remainder[:at]
		remainder = remainder[at+1:]
		if colon := strings.Index(auth, ":"); colon >= 0 {
			p.user = unescape(auth[:colon])
			p.password = unescape(auth[colon+1:])
		} else {
			p.user = unescape(auth)
		}
	}

	hostPart := remainder
	if slash := strings.Index(remainder, "/"); slash >= 0 {
		hostPart = remainder[:slash]
		p.database = strings.TrimSpace(unescape(remainder[slash+1:]))
	}
	for _, h := range strings.Split(hostPart, ",") {
		if h = strings.TrimSpace(h); h != "" {
			p.hosts = append(p.hosts, h)
		}
	}

	if query != "" {
		for _, param := range strings.Split(query, "&") {
			if kv := strings.SplitN(param, "=", 2); len(kv) == 2 {
				p.params[unescape(kv[0])] = unescape(kv[1])
			}
		}
	}
	return p, nil
}

// splitHostPort splits "host:port"; IPv6 literals keep their brackets.
func splitHostPort(h string) (string, string) {
	if strings.HasPrefix(h, "[") {
		if end := strings.Index(h, "]"); end >= 0 {
			host := h[:end+1]
			if rest := h[end+1:]; strings.HasPrefix(rest, ":") {
				return host, rest[1:]
			}
			return host, ""
		}
	}
	if colon := strings.LastIndex(h, ":"); colon >= 0 {
		return h[:colon], h[colon+1:]
	}
	return h, ""
}

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}

// buildURI renders parts with proper escaping and a deterministic parameter order.
func buildURI(scheme, user, password string, hosts []string, database string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	if user != "" {
		if password != "" {
			b.WriteString(url.UserPassword(user, password).String())
		} else {
			b.WriteString(url.User(user).String())
		}
		b.WriteString("@")
	}
	b.WriteString(strings.Join(hosts, ","))
	b.WriteString("/")
	b.WriteString(url.PathEscape(database))

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("?")
		for i, k := range keys {
			if i > 0 {
				b.WriteString("&")
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteString("=")
			b.WriteString(url.QueryEscape(params[k]))
		}
	}
	return b.String()
}
