// Package search finds regulatory documents by free text.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cntrlcomply/backend/models"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kinds of searchable records.
const (
	KindRegulation = "regulation"
	KindIngested   = "ingested_document"
	KindAnalysis   = "analysis_document"
)

// Document is one searchable record.
type Document struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Index stores and queries searchable documents.
type Index interface {
	Index(ctx context.Context, docs ...Document) error
	Search(ctx context.Context, query string) ([]Document, error)
}

// FromRegulatoryItem converts a dashboard item.
func FromRegulatoryItem(r models.RegulatoryItem) Document {
	return Document{ID: r.ID, Kind: KindRegulation, Title: r.Title, Content: r.Content, Status: r.Status, Date: r.PublicationDate}
}

// FromIngested converts a discovered publication.
func FromIngested(d models.IngestedDocument) Document {
	return Document{ID: d.ID, Kind: KindIngested, Title: d.Title, Status: d.Status, Date: d.PublicationDate}
}

// FromAnalysisDocument converts a cross-impact document.
func FromAnalysisDocument(d models.AnalysisDocument) Document {
	return Document{ID: d.ID, Kind: KindAnalysis, Title: d.Title, Content: d.Content, Status: d.Status, Date: d.LastUpdated}
}

// ElasticIndex keeps documents in an Elasticsearch index.
type ElasticIndex struct {
	client *elasticsearch.Client
	index  string
	log    *zap.SugaredLogger
}

// NewElasticIndex connects to the given address.
func NewElasticIndex(address, index string, log *zap.SugaredLogger) (*ElasticIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{address}})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ElasticIndex{client: client, index: index, log: log}, nil
}

func (e *ElasticIndex) Index(ctx context.Context, docs ...Document) error {
	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document for indexing: %w", err)
		}
		res, err := e.client.Index(
			e.index,
			bytes.NewReader(body),
			e.client.Index.WithDocumentID(doc.Kind+":"+doc.ID),
			e.client.Index.WithContext(ctx),
		)
		if err != nil {
			return fmt.Errorf("index request failed: %w", err)
		}
		res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("elasticsearch indexing failed: %s", res.String())
		}
	}
	e.log.Debugf("[ElasticIndex] indexed %d documents", len(docs))
	return nil
}

func (e *ElasticIndex) Search(ctx context.Context, query string) ([]Document, error) {
	searchQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
	}
	body, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(e.index),
		e.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]Document, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

// likeEscaper makes LIKE wildcards in a query match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// DBIndex searches the database tables directly. Index is a no-op because
// the tables are already the source of truth.
type DBIndex struct {
	db *gorm.DB
}

func NewDBIndex(db *gorm.DB) *DBIndex {
	return &DBIndex{db: db}
}

func (d *DBIndex) Index(ctx context.Context, docs ...Document) error {
	return nil
}

func (d *DBIndex) Search(ctx context.Context, query string) ([]Document, error) {
	q := strings.TrimSpace(strings.ToLower(query))
	if q == "" {
		return []Document{}, nil
	}
	pattern := "%" + likeEscaper.Replace(q) + "%"
	db := d.db.WithContext(ctx)

	var regs []models.RegulatoryItem
	if err := db.Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("id").Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("failed to search regulatory items: %w", err)
	}
	var ingested []models.IngestedDocument
	if err := db.Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).
		Order("detected_date DESC").Find(&ingested).Error; err != nil {
		return nil, fmt.Errorf("failed to search ingested documents: %w", err)
	}
	var analysis []models.AnalysisDocument
	if err := db.Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("id").Find(&analysis).Error; err != nil {
		return nil, fmt.Errorf("failed to search analysis documents: %w", err)
	}

	docs := make([]Document, 0, len(regs)+len(ingested)+len(analysis))
	for _, r := range regs {
		docs = append(docs, FromRegulatoryItem(r))
	}
	for _, i := range ingested {
		docs = append(docs, FromIngested(i))
	}
	for _, a := range analysis {
		docs = append(docs, FromAnalysisDocument(a))
	}
	return docs, nil
}
