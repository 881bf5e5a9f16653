package searchdb

import "context"

type DB interface {
	BuildIndex(indexName string, documents []Document) error
	DeleteDocuments(indexName string, documentIDs []string) error
	Search(ctx context.Context, q Query) (*Response, error)
	GetDocCount(indexName string) (uint64, error)
	Indices() []string
	HasIndex(pattern string) bool
	Close() error
}
