package testdb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CreateUser inserts a user with the given wallet balance.
func CreateUser(t testing.TB, db *sqlx.DB, balance decimal.Decimal) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO users (id, full_name, email, wallet_balance)
		VALUES ($1, $2, $3, $4)
	`, id, "Test User", "user_"+id.String()[:8]+"@test.local", balance)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

// CreateDriver inserts a driver profile for userID.
func CreateDriver(t testing.TB, db *sqlx.DB, userID uuid.UUID, balance decimal.Decimal) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`INSERT INTO drivers (id, user_id, balance) VALUES ($1, $2, $3)`, id, userID, balance)
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	return id
}

// PlatformWalletID returns a wallet id private to the calling test.
func PlatformWalletID() string {
	return "platform-test-" + uuid.NewString()[:8]
}
