package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "luxeplan-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Environment != "local" || cfg.Server.IsProduction() {
		t.Errorf("expected local environment, got %s", cfg.Server.Environment)
	}
	if cfg.Firestore.ProjectID != "luxeplan-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Notifications.ProjectID != "luxeplan-dev" || cfg.Notifications.Topic != "" {
		t.Errorf("unexpected notifications config %+v", cfg.Notifications)
	}
	if cfg.Payments.Currency != "usd" || cfg.Payments.Timeout != 10*time.Second {
		t.Errorf("unexpected payments config %+v", cfg.Payments)
	}
	if cfg.Pagination.DefaultSize != 9 || cfg.Pagination.MaxSize != 100 {
		t.Errorf("unexpected pagination defaults %+v", cfg.Pagination)
	}
	if cfg.Booking.Location == nil || cfg.Booking.Location.String() != "UTC" {
		t.Errorf("expected UTC booking location, got %v", cfg.Booking.Location)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":               "9090",
		"API_SERVER_ENVIRONMENT":        "Production",
		"API_FIREBASE_PROJECT_ID":       "luxeplan-prod",
		"API_FIRESTORE_PROJECT_ID":      "luxeplan-data",
		"API_PSP_STRIPE_API_KEY":        "sm://stripe-api-key",
		"API_PSP_STRIPE_WEBHOOK_SECRET": "secret://stripe-webhook",
		"API_PAYMENTS_CURRENCY":         "BDT",
		"API_BOOKING_TIMEZONE":          "Asia/Dhaka",
		"API_PAGINATION_DEFAULT_SIZE":   "12",
		"API_NOTIFICATIONS_TOPIC":       "booking-events",
	}
	secrets := map[string]string{
		"secret://stripe-api-key": "sk_test_123",
		"secret://stripe-webhook": "whsec_123",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("unknown secret")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithSecretResolver(resolver), WithRequiredSecrets("PSP.StripeAPIKey"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" || !cfg.Server.IsProduction() {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Firestore.ProjectID != "luxeplan-data" {
		t.Errorf("expected explicit firestore project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PSP.StripeAPIKey != "sk_test_123" || cfg.PSP.StripeWebhookSecret != "whsec_123" {
		t.Errorf("expected secrets to resolve, got %+v", cfg.PSP)
	}
	if cfg.Payments.Currency != "bdt" {
		t.Errorf("expected lower-cased currency, got %s", cfg.Payments.Currency)
	}
	if cfg.Booking.Location.String() != "Asia/Dhaka" {
		t.Errorf("unexpected booking location %v", cfg.Booking.Location)
	}
	if cfg.Pagination.DefaultSize != 12 {
		t.Errorf("expected page size override, got %d", cfg.Pagination.DefaultSize)
	}
}

func TestLoadReportsInvalidFields(t *testing.T) {
	env := map[string]string{
		"API_SERVER_ENVIRONMENT": "moon",
		"API_PAYMENTS_CURRENCY":  "dollars",
		"API_BOOKING_TIMEZONE":   "Mars/Olympus",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := map[string]bool{
		"Server.Environment": true,
		"Firebase.ProjectID": true,
		"Payments.Currency":  true,
		"Booking.Timezone":   true,
	}
	for _, field := range validation.Fields() {
		delete(want, field)
	}
	if len(want) != 0 {
		t.Fatalf("missing expected invalid fields %v in %v", want, validation.Fields())
	}
}

func TestLoadSecretResolutionFailure(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID": "luxeplan-dev",
		"API_PSP_STRIPE_API_KEY":  "secret://stripe-api-key",
	}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	var secretErr *SecretError
	if !errors.As(err, &secretErr) || secretErr.Ref != "secret://stripe-api-key" {
		t.Fatalf("expected secret error, got %v", err)
	}
}

func TestLoadMissingRequiredSecret(t *testing.T) {
	env := map[string]string{"API_FIREBASE_PROJECT_ID": "luxeplan-dev"}
	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""),
		WithRequiredSecrets("PSP.StripeAPIKey"))
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected missing secrets error, got %v", err)
	}
	if names := missing.Names(); len(names) != 1 || names[0] != "PSP.StripeAPIKey" {
		t.Fatalf("unexpected names %v", names)
	}
	if redacted := missing.RedactedNames(); len(redacted) != 1 || redacted[0] == "PSP.StripeAPIKey" {
		t.Fatalf("expected redacted names, got %v", redacted)
	}
}

func TestLoadReadsDotEnvWithLowestPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "API_FIREBASE_PROJECT_ID=from-dotenv\nAPI_SERVER_PORT=7000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(path), WithoutSystemEnv(),
		WithEnvMap(map[string]string{"API_SERVER_PORT": "7100"}))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Firebase.ProjectID != "from-dotenv" {
		t.Errorf("expected dotenv project, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.Server.Port != "7100" {
		t.Errorf("expected env map to override dotenv, got %s", cfg.Server.Port)
	}

	lookup, err := Lookup(WithEnvFile(path), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if value, ok := lookup("API_SERVER_PORT"); !ok || value != "7000" {
		t.Errorf("expected dotenv value from Lookup, got %q", value)
	}
}

func TestLoadIgnoresMissingDotEnv(t *testing.T) {
	env := map[string]string{"API_FIREBASE_PROJECT_ID": "luxeplan-dev"}
	if _, err := Load(context.Background(), WithEnvFile(filepath.Join(t.TempDir(), "absent.env")), WithoutSystemEnv(), WithEnvMap(env)); err != nil {
		t.Fatalf("expected missing dotenv to be ignored, got %v", err)
	}
}
