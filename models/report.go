package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentMetadata is what the analysis prompt asks the model to return.
type DocumentMetadata struct {
	Summary          []string `json:"Summary" bson:"summary"`
	Title            string   `json:"Title" bson:"title"`
	Author           string   `json:"Author" bson:"author"`
	DateCreated      string   `json:"DateCreated" bson:"date_created"`
	LastModifiedDate string   `json:"LastModifiedDate" bson:"last_modified_date"`
	Publisher        string   `json:"Publisher" bson:"publisher"`
	Language         string   `json:"Language" bson:"language"`
	PageCount        any      `json:"PageCount" bson:"page_count"`
	SentimentTone    string   `json:"SentimentTone" bson:"sentiment_tone"`
}

// PageChange is one row of a comparison result.
type PageChange struct {
	Page    string `json:"page" bson:"page"`
	Changes string `json:"changes" bson:"changes"`
}

const (
	ReportKindAnalysis   = "analysis"
	ReportKindComparison = "comparison"
)

type Report struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Kind      string             `bson:"kind" json:"kind"`
	SessionID string             `bson:"session_id" json:"session_id"`
	Files     []string           `bson:"files" json:"files"`
	Metadata  *DocumentMetadata  `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Changes   []PageChange       `bson:"changes,omitempty" json:"changes,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
