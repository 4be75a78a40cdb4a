package issuance_test

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/nimblebank/cardissuer/issuance"
	"github.com/nimblebank/cardissuer/issuance/models"
)

// TestIssueCard_PostgresRoundTrip exercises the pg repository end to end.
// Skips unless DB_DSN points at a reachable database.
func TestIssueCard_PostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		t.Skip("DB_DSN not set; skipping DB integration test")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Ping())

	ctx := context.Background()
	repo := issuance.NewPGRepository(db)
	require.NoError(t, repo.Migrate(ctx))

	provider := &fakeProvider{card: issuedCard("2100-01-01T12:00:00+00:00")}
	service := issuance.NewService(repo, provider, testLogger())

	user, err := service.RegisterUser(ctx, models.RegisterUser{
		Username:   "it-" + t.Name(),
		ExternalID: "ext-it",
	})
	require.NoError(t, err)

	card, err := service.IssueCard(ctx, user, models.ColorBlack)
	require.NoError(t, err)

	// stored row matches what the service returned
	var status, providerCardID string
	row := db.QueryRow(`SELECT status, provider_card_id FROM cards WHERE card_id=$1 AND user_id=$2`, card.ID, user.ID)
	require.NoError(t, row.Scan(&status, &providerCardID))
	require.Equal(t, "ORDERED", status)
	require.Equal(t, "prov_card_1", providerCardID)

	got, err := service.GetCard(ctx, user, card.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExpirationDate)
	require.True(t, got.ExpirationDate.Equal(*card.ExpirationDate))
}
