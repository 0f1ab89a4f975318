package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/fitadvisor/backend/internal/models"
)

// ErrDocumentNotFound reports that no document row exists for the
// requested name. Connectivity failures surface as ordinary errors.
var ErrDocumentNotFound = errors.New("document not found")

// Documents looks up resume/job-description pairs by name. Documents are
// read-only, so lookups are cached in Redis when a client is available.
type Documents struct {
	db          *gorm.DB
	redisClient *redis.Client
}

func NewDocuments(db *gorm.DB, redisClient *redis.Client) *Documents {
	return &Documents{db: db, redisClient: redisClient}
}

// GetByName fetches the document for name, trying the cache first.
// Cache errors are logged and ignored; the database remains authoritative.
func (s *Documents) GetByName(ctx context.Context, name string) (*models.Document, error) {
	cacheKey := fmt.Sprintf("document:%s", name)

	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var document models.Document
			if err := json.Unmarshal(cached, &document); err == nil {
				return &document, nil
			}
		}
	}

	var document models.Document
	if err := s.db.WithContext(ctx).First(&document, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to fetch document %q: %w", name, err)
	}

	if s.redisClient != nil {
		documentJSON, err := json.Marshal(document)
		if err == nil {
			if err := s.redisClient.Set(ctx, cacheKey, documentJSON, time.Hour*24).Err(); err != nil {
				log.Printf("Failed to cache document data: %v", err)
			}
		}
	}

	return &document, nil
}
