// ABOUTME: Search index endpoints: rebuild and status
// ABOUTME: Reindex is an admin action run after catalog edits

package apiclient

import (
	"context"
	"net/http"
)

// ReindexResult is the body of POST /embeddings/reindex.
type ReindexResult struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	TotalEmbeddings int    `json:"total_embeddings"`
}

// IndexStatus is the body of GET /embeddings/status.
type IndexStatus struct {
	Status           string `json:"status"`
	TotalEmbeddings  int    `json:"total_embeddings"`
	FaissIndexExists bool   `json:"faiss_index_exists"`
	MetaFileExists   bool   `json:"meta_file_exists"`
}

// Reindex rebuilds the assistant's search index from the catalog.
func (c *Client) Reindex(ctx context.Context) (ReindexResult, error) {
	var res ReindexResult
	err := c.do(ctx, http.MethodPost, "/embeddings/reindex", nil, nil, &res)
	return res, err
}

// IndexStatus reports the state of the assistant's search index.
func (c *Client) IndexStatus(ctx context.Context) (IndexStatus, error) {
	var res IndexStatus
	err := c.do(ctx, http.MethodGet, "/embeddings/status", nil, nil, &res)
	return res, err
}
