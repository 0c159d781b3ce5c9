package credentials

import (
	"fmt"
	"net/url"
	"strings"
)

// ConnectionString is a parsed Event Hubs shared access connection string.
type ConnectionString struct {
	Endpoint            string
	SharedAccessKeyName string
	SharedAccessKey     string
	EntityPath          string
}

// ParseConnectionString splits a string of the form
// Endpoint=sb://<namespace>/;SharedAccessKeyName=<name>;SharedAccessKey=<key>[;EntityPath=<hub>].
func ParseConnectionString(s string) (ConnectionString, error) {
	var cs ConnectionString
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// keys may contain '=' padding, split on the first one only
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return ConnectionString{}, fmt.Errorf("%w: malformed connection string segment %q", ErrInvalidCredentials, key)
		}

		switch strings.ToLower(key) {
		case "endpoint":
			cs.Endpoint = value
		case "sharedaccesskeyname":
			cs.SharedAccessKeyName = value
		case "sharedaccesskey":
			cs.SharedAccessKey = value
		case "entitypath":
			cs.EntityPath = value
		}
	}

	if cs.Endpoint == "" {
		return ConnectionString{}, fmt.Errorf("%w: connection string has no Endpoint", ErrInvalidCredentials)
	}

	return cs, nil
}

// Namespace returns the fully qualified namespace host, e.g. ns.servicebus.windows.net.
func (cs ConnectionString) Namespace() (string, error) {
	u, err := url.Parse(cs.Endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: invalid endpoint %q: %v", ErrInvalidCredentials, cs.Endpoint, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: endpoint %q has no host", ErrInvalidCredentials, cs.Endpoint)
	}

	return u.Hostname(), nil
}
