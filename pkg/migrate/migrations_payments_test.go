package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPaymentsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_payments.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payments",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"CHECK (amount_minor > 0)",
		"CHECK (amount_inr_paise > 0)",
		"ux_payments_order_active",
		"WHERE status NOT IN ('released', 'refunded')",
		"DROP TABLE IF EXISTS payments",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPayoutsMigrationEnforcesSingleActivePayout(t *testing.T) {
	content := readMigration(t, "*_create_payment_payouts.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payment_payouts",
		"FOREIGN KEY (payment_id) REFERENCES payments(id) ON DELETE CASCADE",
		"ux_payouts_payment_active",
		"WHERE status <> 'failed'",
		"CHECK (net_amount_paise > 0)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestWebhookEventsMigrationHasDedupIndex(t *testing.T) {
	content := readMigration(t, "*_create_payment_webhook_events.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payment_webhook_events",
		"ux_webhook_events_provider_event",
		"(provider, event_id)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSnapshotMigrationUniquePerOrder(t *testing.T) {
	content := readMigration(t, "*_create_order_currency_snapshots.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS order_currency_snapshots",
		"ux_currency_snapshots_order",
		"CHECK (rate_micros > 0)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q", pattern)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
