package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shoplinkhq/shoplink-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestWalletMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_wallets.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS wallets",
		"CHECK (balance >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_wallets_user ON wallets (user_id)",
		"CREATE TABLE IF NOT EXISTS transactions",
		"reference text NOT NULL UNIQUE",
		"FOREIGN KEY (wallet_id) REFERENCES wallets(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS wallets",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPaymentMigrationEnforcesOnePaymentPerOrder(t *testing.T) {
	content := readMigration(t, "*_create_payments.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payments",
		"transaction_id text NOT NULL UNIQUE",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_order ON payments (order_id)",
		"DROP TABLE IF EXISTS payments",
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
		t.Fatalf("no migration matching %q found", pattern)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
