package dispatch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tiagowl/ImgMigrator/internal/shared"
)

// SignatureHeader carries the hex HMAC-SHA256 of the webhook body.
const SignatureHeader = "Upstash-Signature"

// WebhookPayload asks for a run of one migration.
type WebhookPayload struct {
	MigrationID string `json:"migration_id"`
	UserID      string `json:"user_id"`
}

// Sign returns the hex HMAC-SHA256 of body under key.
func Sign(body []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against body. An empty key rejects every request.
func VerifySignature(body []byte, signature, key string) error {
	if key == "" {
		return fmt.Errorf("%w: no signing key configured", shared.ErrInvalidSignature)
	}

	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return fmt.Errorf("%w: malformed signature", shared.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return shared.ErrInvalidSignature
	}
	return nil
}

// ParseWebhook verifies and decodes a webhook body.
func ParseWebhook(body []byte, signature, key string) (*WebhookPayload, error) {
	if err := VerifySignature(body, signature, key); err != nil {
		return nil, err
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if payload.MigrationID == "" || payload.UserID == "" {
		return nil, fmt.Errorf("%w: migration_id and user_id are required", shared.ErrMissingArgument)
	}
	return &payload, nil
}
