package database

import (
	"errors"
	"fmt"
	"strings"
)

// AuthMethod selects how a session signs in.
type AuthMethod string

const (
	// AuthNone skips sign-in. Only valid when configured explicitly.
	AuthNone AuthMethod = "none"
	// AuthRoot signs in as a root user.
	AuthRoot AuthMethod = "root"
	// AuthNamespace signs in as a namespace user of the session namespace.
	AuthNamespace AuthMethod = "namespace"
	// AuthDatabase signs in as a database user of the session database.
	AuthDatabase AuthMethod = "database"
	// AuthRecord signs in through a record access method.
	AuthRecord AuthMethod = "record"
	// AuthToken authenticates with a pre-issued token.
	AuthToken AuthMethod = "token"
)

// ParseAuthMethod parses a configured method name.
func ParseAuthMethod(s string) (AuthMethod, error) {
	m := AuthMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case AuthNone, AuthRoot, AuthNamespace, AuthDatabase, AuthRecord, AuthToken:
		return m, nil
	default:
		return "", fmt.Errorf("unknown auth method %q", s)
	}
}

// Credentials is the single sign-in strategy for a Manager.
type Credentials struct {
	Method   AuthMethod
	Username string
	Password string
	// Access names the record access method for AuthRecord.
	Access string
	Token  string
}

// Validate checks that the fields the method needs are present.
func (c Credentials) Validate() error {
	var errs []error
	switch c.Method {
	case AuthNone:
	case AuthRoot, AuthNamespace, AuthDatabase:
		if c.Username == "" {
			errs = append(errs, fmt.Errorf("%s auth requires a username", c.Method))
		}
		if c.Password == "" {
			errs = append(errs, fmt.Errorf("%s auth requires a password", c.Method))
		}
	case AuthRecord:
		if c.Access == "" {
			errs = append(errs, errors.New("record auth requires an access method"))
		}
	case AuthToken:
		if c.Token == "" {
			errs = append(errs, errors.New("token auth requires a token"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth method %q", c.Method))
	}
	return errors.Join(errs...)
}

// String hides secrets.
func (c Credentials) String() string {
	if c.Username != "" {
		return fmt.Sprintf("%s(%s)", c.Method, c.Username)
	}
	return string(c.Method)
}
