package provider

import (
	"context"
	"errors"

	coreSmsDomain "github.com/madrasahportal/golang_services/internal/core_sms/domain"
)

// ErrGatewayDispatch marks a failed gateway request. It is logged and counted
// by callers, never surfaced to the user who triggered the send.
var ErrGatewayDispatch = errors.New("gateway dispatch failed")

// BulkRequest is one gateway call covering a batch of recipients.
type BulkRequest struct {
	TenantID    string                           `json:"tenant_id,omitempty"`
	BatchIndex  int                              `json:"batch_index"`
	Credentials coreSmsDomain.GatewayCredentials `json:"credentials"`
	// Phones are already normalized.
	Phones  []string `json:"phones"`
	Message string   `json:"message"`
}

// DirectRequest is a single-recipient send outside the ledger.
type DirectRequest struct {
	Credentials coreSmsDomain.GatewayCredentials `json:"credentials"`
	Phone       string                           `json:"phone"`
	Message     string                           `json:"message"`
}

// SMSGateway sends requests to an external SMS gateway.
type SMSGateway interface {
	SendBulk(ctx context.Context, req BulkRequest) error
	SendDirect(ctx context.Context, req DirectRequest) error
	GetName() string
}
