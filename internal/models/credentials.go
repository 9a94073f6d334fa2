package models

// Credentials holds the secrets used for authenticated upstream calls.
type Credentials struct {
	AccountID    string `json:"accountId" yaml:"account_id"`
	APIToken     string `json:"apiToken" yaml:"api_token"`
	SecondaryKey string `json:"secondaryKey,omitempty" yaml:"secondary_key,omitempty"`
}

// Configured reports whether the primary service credentials are present.
func (c Credentials) Configured() bool {
	return c.AccountID != "" && c.APIToken != ""
}

// HasSecondaryKey reports whether the secondary service can be used.
func (c Credentials) HasSecondaryKey() bool {
	return c.SecondaryKey != ""
}

// Masked returns a copy safe to send back to the browser.
func (c Credentials) Masked() Credentials {
	return Credentials{
		AccountID:    c.AccountID,
		APIToken:     mask(c.APIToken),
		SecondaryKey: mask(c.SecondaryKey),
	}
}

func mask(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return "****" + s[len(s)-4:]
}
