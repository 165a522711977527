package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"document-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestReportStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	defer client.Disconnect(context.Background())

	db := client.Database(fmt.Sprintf("document_portal_test_%d", time.Now().UnixNano()))
	defer db.Drop(context.Background())
	store := NewReportStore(db)

	analysis := &models.Report{
		Kind:      models.ReportKindAnalysis,
		SessionID: "session_a",
		Files:     []string{"a.pdf"},
		Metadata:  &models.DocumentMetadata{Title: "Q3", Summary: []string{"grew"}},
	}
	require.NoError(t, store.Save(ctx, analysis))
	assert.False(t, analysis.ID.IsZero())
	assert.False(t, analysis.CreatedAt.IsZero())

	comparison := &models.Report{
		Kind:      models.ReportKindComparison,
		SessionID: "session_b",
		Changes:   []models.PageChange{{Page: "1", Changes: "Title changed"}},
		CreatedAt: time.Now().UTC().Add(time.Second),
	}
	require.NoError(t, store.Save(ctx, comparison))

	all, err := store.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.ReportKindComparison, all[0].Kind)

	only, err := store.Recent(ctx, models.ReportKindAnalysis, 0)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "Q3", only[0].Metadata.Title)
}
