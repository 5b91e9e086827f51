// Package redact masks a credential in text and error messages. The credential
// is matched verbatim and in its URL-escaped forms, since transport errors
// quote the request URL with its query string encoded.
package redact

import (
	"bytes"
	"net/url"
	"sort"
	"strings"
)

const Marker = "[REDACTED]"

// Secret holds every spelling of a credential that may show up in output.
// The zero value redacts nothing.
type Secret struct {
	forms []string
}

func NewSecret(secret string) Secret {
	if secret == "" {
		return Secret{}
	}
	seen := map[string]bool{}
	var forms []string
	for _, f := range []string{secret, url.QueryEscape(secret), url.PathEscape(secret)} {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		forms = append(forms, f)
	}
	// Longest first so a shorter spelling never splits a longer match.
	sort.SliceStable(forms, func(i, j int) bool { return len(forms[i]) > len(forms[j]) })
	return Secret{forms: forms}
}

// Contains reports whether s holds any spelling of the credential.
func (r Secret) Contains(s string) bool {
	for _, f := range r.forms {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func (r Secret) String(s string) string {
	for _, f := range r.forms {
		s = strings.ReplaceAll(s, f, Marker)
	}
	return s
}

func (r Secret) Bytes(b []byte) []byte {
	for _, f := range r.forms {
		if bytes.Contains(b, []byte(f)) {
			b = bytes.ReplaceAll(b, []byte(f), []byte(Marker))
		}
	}
	return b
}

// Error returns err with the credential masked in its message. The wrapped
// error stays reachable through errors.Is/As.
func (r Secret) Error(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if !r.Contains(msg) {
		return err
	}
	return &redactedError{msg: r.String(msg), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
