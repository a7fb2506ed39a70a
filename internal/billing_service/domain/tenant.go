package domain

import (
	"strings"
	"time"

	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
)

// Tenant is one madrasah: the unit of balance and credential isolation.
type Tenant struct {
	ID         string
	Name       string
	Phone      string
	SMSBalance int64
	IsActive   bool
	Gateway    coreSmsDomain.CredentialOverride
	CreatedAt  time.Time
}

// TenantProfile is an administrator's edit of one madrasah. A blank gateway
// field removes the override so the global credentials apply again.
type TenantProfile struct {
	Name     string
	Phone    string
	IsActive bool
	Gateway  coreSmsDomain.GatewayCredentials
}

// Normalized trims every text field.
func (p TenantProfile) Normalized() TenantProfile {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Gateway = p.Gateway.Trimmed()
	return p
}

// Override maps the profile's gateway fields to stored overrides, with blank
// values stored as NULL.
func (p TenantProfile) Override() coreSmsDomain.CredentialOverride {
	g := p.Gateway.Trimmed()
	return coreSmsDomain.CredentialOverride{
		APIKey:    nullIfBlank(g.APIKey),
		SecretKey: nullIfBlank(g.SecretKey),
		CallerID:  nullIfBlank(g.CallerID),
		ClientID:  nullIfBlank(g.ClientID),
	}
}

func nullIfBlank(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// GlobalSettings is the system-wide singleton used when a tenant has no
// gateway override.
type GlobalSettings struct {
	Gateway coreSmsDomain.GatewayCredentials
	// SupportNumber is the bKash number tenants pay recharges to.
	SupportNumber string
}

// Trimmed returns the settings with surrounding whitespace removed.
func (g GlobalSettings) Trimmed() GlobalSettings {
	g.Gateway = g.Gateway.Trimmed()
	g.SupportNumber = strings.TrimSpace(g.SupportNumber)
	return g
}

// WithDefaults fills blank fields from defaults.
func (g GlobalSettings) WithDefaults(defaults GlobalSettings) GlobalSettings {
	out := g
	if out.Gateway.APIKey == "" {
		out.Gateway.APIKey = defaults.Gateway.APIKey
	}
	if out.Gateway.SecretKey == "" {
		out.Gateway.SecretKey = defaults.Gateway.SecretKey
	}
	if out.Gateway.CallerID == "" {
		out.Gateway.CallerID = defaults.Gateway.CallerID
	}
	if out.Gateway.ClientID == "" {
		out.Gateway.ClientID = defaults.Gateway.ClientID
	}
	if out.SupportNumber == "" {
		out.SupportNumber = defaults.SupportNumber
	}
	return out
}
