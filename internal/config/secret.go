package config

// Secret is a string type that redacts itself whenever it is printed,
// logged, or serialized, so API keys never land in a log line or a
// dumped config.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// GoString makes %#v formatting redact too, not just %v/%s.
func (s Secret) GoString() string {
	return redacted
}

// MarshalJSON ensures secrets are redacted when marshaled to JSON.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// MarshalYAML ensures secrets are redacted when the config is dumped back
// to YAML (e.g. Config.String() for startup logging).
func (s Secret) MarshalYAML() (interface{}, error) {
	return redacted, nil
}

// Value returns the underlying plaintext for use by the exchange adapter.
// Never log or print the result.
func (s Secret) Value() string {
	return string(s)
}
