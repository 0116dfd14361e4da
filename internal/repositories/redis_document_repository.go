package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/redis/go-redis/v9"

	"docqa/internal/db"
	"docqa/internal/models"
)

// Redis key layout:
//   doc:{id}          -> JSON document record
//   doc:{id}:pages    -> JSON array of page texts
//   doc:{id}:figures  -> JSON array of figure records
//   documents         -> set of document IDs
const (
	documentKeyPrefix = "doc:"
	documentSetKey    = "documents"
)

// RedisDocumentRepository implements DocumentRepository backed by Redis
type RedisDocumentRepository struct {
	client *db.RedisClient
	logger *log.Logger
}

// NewRedisDocumentRepository creates a new Redis-backed document repository
func NewRedisDocumentRepository(client *db.RedisClient, logger *log.Logger) DocumentRepository {
	return &RedisDocumentRepository{
		client: client,
		logger: logger,
	}
}

func documentKey(documentID string) string {
	return documentKeyPrefix + documentID
}

func pagesKey(documentID string) string {
	return documentKeyPrefix + documentID + ":pages"
}

func figuresKey(documentID string) string {
	return documentKeyPrefix + documentID + ":figures"
}

// CreateDocument stores a document record and registers its ID
func (r *RedisDocumentRepository) CreateDocument(ctx context.Context, doc *models.Document) error {
	if err := doc.Validate(); err != nil {
		return NewDocumentRepositoryError("create", doc.ID.String(), err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return NewDocumentRepositoryError("create", doc.ID.String(), fmt.Errorf("failed to marshal document: %w", err))
	}

	rdb := r.client.GetClient()
	pipe := rdb.TxPipeline()
	pipe.Set(ctx, documentKey(doc.ID.String()), data, 0)
	pipe.SAdd(ctx, documentSetKey, doc.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return NewDocumentRepositoryError("create", doc.ID.String(), err)
	}

	r.logger.Printf("Created document %s (%s)", doc.ID, doc.Filename)
	return nil
}

// GetDocument retrieves a document record by ID
func (r *RedisDocumentRepository) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	data, err := r.client.GetClient().Get(ctx, documentKey(documentID)).Bytes()
	if err == redis.Nil {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, NewDocumentRepositoryError("get", documentID, err)
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewDocumentRepositoryError("get", documentID, fmt.Errorf("failed to unmarshal document: %w", err))
	}
	return &doc, nil
}

// GetDocuments retrieves multiple documents, failing if any ID is unknown
func (r *RedisDocumentRepository) GetDocuments(ctx context.Context, documentIDs []string) ([]*models.Document, error) {
	docs := make([]*models.Document, 0, len(documentIDs))
	for _, id := range documentIDs {
		doc, err := r.GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ListDocuments returns all stored documents sorted by creation time
func (r *RedisDocumentRepository) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	ids, err := r.client.GetClient().SMembers(ctx, documentSetKey).Result()
	if err != nil {
		return nil, NewDocumentRepositoryError("list", "", err)
	}

	docs := make([]*models.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := r.GetDocument(ctx, id)
		if err == ErrDocumentNotFound {
			// stale set member, skip
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// SetIndexed flips the indexed flag on a stored document
func (r *RedisDocumentRepository) SetIndexed(ctx context.Context, documentID string, indexed bool) error {
	doc, err := r.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	doc.Indexed = indexed
	data, err := json.Marshal(doc)
	if err != nil {
		return NewDocumentRepositoryError("set_indexed", documentID, err)
	}

	if err := r.client.GetClient().Set(ctx, documentKey(documentID), data, 0).Err(); err != nil {
		return NewDocumentRepositoryError("set_indexed", documentID, err)
	}
	return nil
}

// StorePages stores the extracted page texts for a document
func (r *RedisDocumentRepository) StorePages(ctx context.Context, documentID string, pages []*models.PageText) error {
	data, err := json.Marshal(pages)
	if err != nil {
		return NewDocumentRepositoryError("store_pages", documentID, err)
	}

	if err := r.client.GetClient().Set(ctx, pagesKey(documentID), data, 0).Err(); err != nil {
		return NewDocumentRepositoryError("store_pages", documentID, err)
	}
	return nil
}

// GetPages retrieves page texts for a document, ordered by page number
func (r *RedisDocumentRepository) GetPages(ctx context.Context, documentID string) ([]*models.PageText, error) {
	data, err := r.client.GetClient().Get(ctx, pagesKey(documentID)).Bytes()
	if err == redis.Nil {
		return []*models.PageText{}, nil
	}
	if err != nil {
		return nil, NewDocumentRepositoryError("get_pages", documentID, err)
	}

	var pages []*models.PageText
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, NewDocumentRepositoryError("get_pages", documentID, err)
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})
	return pages, nil
}

// StoreFigures stores extracted figure records for a document
func (r *RedisDocumentRepository) StoreFigures(ctx context.Context, documentID string, figures []*models.FigureRecord) error {
	data, err := json.Marshal(figures)
	if err != nil {
		return NewDocumentRepositoryError("store_figures", documentID, err)
	}

	if err := r.client.GetClient().Set(ctx, figuresKey(documentID), data, 0).Err(); err != nil {
		return NewDocumentRepositoryError("store_figures", documentID, err)
	}
	return nil
}

// GetFigures retrieves figure records for a single document
func (r *RedisDocumentRepository) GetFigures(ctx context.Context, documentID string) ([]*models.FigureRecord, error) {
	data, err := r.client.GetClient().Get(ctx, figuresKey(documentID)).Bytes()
	if err == redis.Nil {
		return []*models.FigureRecord{}, nil
	}
	if err != nil {
		return nil, NewDocumentRepositoryError("get_figures", documentID, err)
	}

	var figures []*models.FigureRecord
	if err := json.Unmarshal(data, &figures); err != nil {
		return nil, NewDocumentRepositoryError("get_figures", documentID, err)
	}
	return figures, nil
}

// GetFiguresForDocuments collects figure records across multiple documents
func (r *RedisDocumentRepository) GetFiguresForDocuments(ctx context.Context, documentIDs []string) ([]*models.FigureRecord, error) {
	all := make([]*models.FigureRecord, 0)
	for _, id := range documentIDs {
		figures, err := r.GetFigures(ctx, id)
		if err != nil {
			return nil, err
		}
		all = append(all, figures...)
	}
	return all, nil
}

// Ping checks Redis connectivity
func (r *RedisDocumentRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

// Close closes the underlying Redis client
func (r *RedisDocumentRepository) Close() error {
	return r.client.Close()
}
