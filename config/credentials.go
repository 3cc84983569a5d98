package config

import (
	"fmt"
	"strings"
)

// Credential is a user/password pair accepted by the Basic auth gate.
type Credential struct {
	User string
	Pass string
}

// ParseCredentials parses a comma-separated "user:pass,user:pass" list.
// An empty input yields no credentials. Everything after the first colon
// of a pair is the password, so passwords may contain colons; users may
// not. Empty users or passwords are rejected.
func ParseCredentials(raw string) ([]Credential, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var creds []Credential
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		user, pass, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("credential %q: missing colon", pair)
		}
		if user == "" || pass == "" {
			return nil, fmt.Errorf("credential %q: empty user or password", pair)
		}
		creds = append(creds, Credential{User: user, Pass: pass})
	}
	return creds, nil
}
