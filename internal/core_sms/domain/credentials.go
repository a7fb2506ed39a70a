package domain

import "strings"

// GatewayCredentials are the effective values used to authenticate against
// the SMS gateway for one request.
type GatewayCredentials struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
	CallerID  string `json:"caller_id"`
	ClientID  string `json:"client_id"`
}

// Trimmed returns the credentials with surrounding whitespace removed.
func (c GatewayCredentials) Trimmed() GatewayCredentials {
	return GatewayCredentials{
		APIKey:    strings.TrimSpace(c.APIKey),
		SecretKey: strings.TrimSpace(c.SecretKey),
		CallerID:  strings.TrimSpace(c.CallerID),
		ClientID:  strings.TrimSpace(c.ClientID),
	}
}

// CredentialOverride holds a tenant's optional gateway values. Nil or blank
// fields fall back to the global settings.
type CredentialOverride struct {
	APIKey    *string
	SecretKey *string
	CallerID  *string
	ClientID  *string
}

// ResolveCredentials picks, field by field, the tenant override when it is
// non-blank after trimming and the global default otherwise.
func ResolveCredentials(override CredentialOverride, global GatewayCredentials) GatewayCredentials {
	return GatewayCredentials{
		APIKey:    pick(override.APIKey, global.APIKey),
		SecretKey: pick(override.SecretKey, global.SecretKey),
		CallerID:  pick(override.CallerID, global.CallerID),
		ClientID:  pick(override.ClientID, global.ClientID),
	}
}

func pick(v *string, fallback string) string {
	if v != nil && strings.TrimSpace(*v) != "" {
		return *v
	}
	return fallback
}
