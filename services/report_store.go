package services

import (
	"context"
	"fmt"
	"time"

	"document-portal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ReportsCollection  = "reports"
	defaultReportLimit = 20
	maxReportLimit     = 100
)

// ReportStore persists analysis and comparison results in MongoDB.
type ReportStore struct {
	collection *mongo.Collection
}

func NewReportStore(db *mongo.Database) *ReportStore {
	return &ReportStore{collection: db.Collection(ReportsCollection)}
}

func (s *ReportStore) Save(ctx context.Context, report *models.Report) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	res, err := s.collection.InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("save %s report for session %s: %w", report.Kind, report.SessionID, err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		report.ID = id
	}
	return nil
}

// Recent returns the newest reports, optionally of one kind.
func (s *ReportStore) Recent(ctx context.Context, kind string, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = defaultReportLimit
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}

	filter := bson.M{}
	if kind != "" {
		filter["kind"] = kind
	}
	cursor, err := s.collection.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer cursor.Close(ctx)

	reports := []models.Report{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	return reports, nil
}
