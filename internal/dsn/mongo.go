// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"fmt"
)

const defaultMongoPort = "27017"

// MongoDBResolver handles mongodb:// and mongodb+srv:// connection strings.
// Unlike PostgreSQL, credentials and the default database are optional.
type MongoDBResolver struct{}

// NewMongoDBResolver creates a new MongoDB resolver
func NewMongoDBResolver() *MongoDBResolver {
	return &MongoDBResolver{}
}

// Parse parses a MongoDB connection string. Seed lists (h1:27017,h2:27017) are kept in Hosts.
func (r *MongoDBResolver) Parse(dsn string) (*DSNInfo, error) {
	if dsn == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a valid MongoDB connection string")
	}

	parts, err := splitURI(dsn, []string{"mongodb+srv", "mongodb"})
	if err != nil {
		return nil, err
	}
	if len(parts.hosts) == 0 {
		return nil, NewParseError(dsn, "missing host", "format should be mongodb://[user:password@]host[:port][/database]")
	}

	info := &DSNInfo{
		Type:     DBTypeMongoDB,
		Scheme:   parts.scheme,
		Hosts:    parts.hosts,
		User:     parts.user,
		Password: parts.password,
		Database: parts.database,
		Params:   parts.params,
		Original: dsn,
	}
	info.Host, info.Port = splitHostPort(parts.hosts[0])
	if info.Host == "" {
		return nil, NewParseError(dsn, "missing host", "")
	}

	if parts.scheme == "mongodb+srv" {
		if len(parts.hosts) > 1 || info.Port != "" {
			return nil, NewParseError(dsn, "mongodb+srv takes a single host name without port", "remove the port or use mongodb://")
		}
		return info, nil
	}
	if info.Port == "" {
		info.Port = defaultMongoPort
	}
	return info, nil
}

// Normalize renders info as an encoded connection string, keeping the original scheme.
func (r *MongoDBResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil {
		return "", NewParseError("", "nil DSN info", "")
	}
	scheme := info.Scheme
	if scheme == "" {
		scheme = "mongodb"
	}
	return buildURI(scheme, info.User, info.Password, info.Hosts, info.Database, info.Params), nil
}

// Validate checks every host of the seed list for a numeric port.
func (r *MongoDBResolver) Validate(dsn string) error {
	info, err := r.Parse(dsn)
	if err != nil {
		return err
	}
	for _, h := range info.Hosts {
		host, port := splitHostPort(h)
		if host == "" {
			return NewParseError(dsn, fmt.Sprintf("empty host in seed list: %q", h), "")
		}
		if port != "" && !rePort.MatchString(port) {
			return NewParseError(dsn, fmt.Sprintf("invalid port number: %s", port), "port must be numeric")
		}
	}
	return nil
}
