// Copyright (c) 2025 Scrapbook
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"strings"
)

// DetectDBType detects the database type from a DSN string
func DetectDBType(dsn string) DBType {
	lower := strings.ToLower(strings.TrimSpace(dsn))

	switch {
	case strings.HasPrefix(lower, "mongodb://"), strings.HasPrefix(lower, "mongodb+srv://"):
		return DBTypeMongoDB
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DBTypePostgreSQL
	case strings.HasPrefix(lower, "mysql://"):
		return DBTypeMySQL
	}
	return DBTypeUnknown
}

// resolverFor picks the resolver for dsn or explains why none applies.
func resolverFor(dsn string) (Resolver, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a valid database connection string")
	}

	switch DetectDBType(dsn) {
	case DBTypeMongoDB:
		return NewMongoDBResolver(), nil
	case DBTypePostgreSQL:
		return NewPostgreSQLResolver(), nil
	case DBTypeMySQL:
		return nil, NewParseError(dsn, "MySQL has no document API", "use a mongodb:// or postgres:// account")
	default:
		return nil, NewParseError(dsn, "unknown database type", "use mongodb://, mongodb+srv:// or postgres://")
	}
}

// Parse parses a DSN string and returns normalized connection string
// This is the main entry point for DSN parsing
func Parse(dsn string) (string, error) {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return "", err
	}

	info, err := resolver.Parse(strings.TrimSpace(dsn))
	if err != nil {
		return "", err
	}

	return resolver.Normalize(info)
}

// Validate validates a DSN string without normalizing it
func Validate(dsn string) error {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return err
	}
	return resolver.Validate(strings.TrimSpace(dsn))
}

// ParseInfo parses a DSN string and returns detailed DSN info
// Useful for inspecting connection details
func ParseInfo(dsn string) (*DSNInfo, error) {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return nil, err
	}
	return resolver.Parse(strings.TrimSpace(dsn))
}

// WithDatabase returns a copy of info pointing at database. MongoDB credentials keep
// authenticating against the database they were given for.
func WithDatabase(info *DSNInfo, database string) *DSNInfo {
	c := *info
	c.Params = make(map[string]string, len(info.Params)+1)
	for k, v := range info.Params {
		c.Params[k] = v
	}
	if c.Type == DBTypeMongoDB && c.User != "" {
		if _, ok := c.Params["authSource"]; !ok {
			source := info.Database
			if source == "" {
				source = "admin"
			}
			c.Params["authSource"] = source
		}
	}
	c.Database = database
	return &c
}

// Render encodes info as a connection string. Without the password it is safe to put
// on a command line.
func Render(info *DSNInfo, withPassword bool) (string, error) {
	c := *info
	if !withPassword {
		c.Password = ""
	}
	switch c.Type {
	case DBTypeMongoDB:
		return NewMongoDBResolver().Normalize(&c)
	case DBTypePostgreSQL:
		return NewPostgreSQLResolver().Normalize(&c)
	default:
		return "", NewParseError(info.Original, "unknown database type", "use mongodb://, mongodb+srv:// or postgres://")
	}
}
