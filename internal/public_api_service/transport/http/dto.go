package http

import (
	"encoding/json"
	"time"

	billingDomain "github.com/madrasahportal/golang_services/internal/billing_service/domain"
	offlineDomain "github.com/madrasahportal/golang_services/internal/offline_queue/domain"
)

type GenericErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type RechargeInfoResponse struct {
	SupportNumber string `json:"support_number"`
}

type BalanceResponse struct {
	TenantID string `json:"madrasah_id"`
	Balance  int64  `json:"sms_balance"`
}

type RecipientDTO struct {
	StudentID string `json:"student_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Phone     string `json:"phone" validate:"required"`
}

// BulkSendRequest picks recipients from exactly one of Recipients,
// StudentIDs or ClassID, in that order of preference.
type BulkSendRequest struct {
	Message    string         `json:"message" validate:"required"`
	Recipients []RecipientDTO `json:"recipients,omitempty" validate:"omitempty,dive"`
	StudentIDs []string       `json:"student_ids,omitempty" validate:"omitempty,dive,required"`
	ClassID    string         `json:"class_id,omitempty"`
}

type DirectSendRequest struct {
	Phone   string `json:"phone" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type DirectSendResponse struct {
	Status string `json:"status"`
}

type MessageStatsRequest struct {
	Message string `json:"message"`
}

type LedgerResponse struct {
	Entries []billingDomain.LedgerEntry `json:"entries"`
}

type SubmitPaymentRequest struct {
	Amount         float64 `json:"amount" validate:"gt=0"`
	SenderPhone    string  `json:"sender_phone" validate:"required"`
	TransactionRef string  `json:"transaction_id" validate:"required"`
}

type PaymentListResponse struct {
	Claims []billingDomain.PaymentClaim `json:"claims"`
}

type ApprovePaymentRequest struct {
	TenantID  string `json:"madrasah_id" validate:"required"`
	SMSAmount int64  `json:"sms_amount" validate:"gt=0"`
}

type AdminStatsResponse struct {
	TotalDistributedSMS int64 `json:"total_distributed_sms"`
}

// GlobalSettingsDTO is both the body of PUT /admin/settings and its reply.
type GlobalSettingsDTO struct {
	APIKey      string `json:"reve_api_key" validate:"max=256"`
	SecretKey   string `json:"reve_secret_key" validate:"max=256"`
	CallerID    string `json:"reve_caller_id" validate:"max=32"`
	ClientID    string `json:"reve_client_id" validate:"max=64"`
	BkashNumber string `json:"bkash_number" validate:"max=20"`
}

type MadrasahDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	SMSBalance    int64     `json:"sms_balance"`
	IsActive      bool      `json:"is_active"`
	ReveAPIKey    *string   `json:"reve_api_key"`
	ReveSecretKey *string   `json:"reve_secret_key"`
	ReveCallerID  *string   `json:"reve_caller_id"`
	ReveClientID  *string   `json:"reve_client_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type MadrasahListResponse struct {
	Madrasahs []MadrasahDTO `json:"madrasahs"`
}

// UpdateMadrasahRequest replaces every editable field. Blank reve_* values
// clear the override.
type UpdateMadrasahRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	Phone         string `json:"phone" validate:"max=20"`
	IsActive      *bool  `json:"is_active" validate:"required"`
	ReveAPIKey    string `json:"reve_api_key" validate:"max=256"`
	ReveSecretKey string `json:"reve_secret_key" validate:"max=256"`
	ReveCallerID  string `json:"reve_caller_id" validate:"max=32"`
	ReveClientID  string `json:"reve_client_id" validate:"max=64"`
}

type EnqueueRequest struct {
	Table     string          `json:"table" validate:"required"`
	Operation string          `json:"type" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

type QueueListResponse struct {
	Entries []offlineDomain.Entry `json:"entries"`
	Count   int                   `json:"count"`
}
