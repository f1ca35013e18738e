// ABOUTME: Builds the assistant's search index from the catalog tables
// ABOUTME: One text document per record, stored in embedding_metadata

package backend

import (
	"context"
	"fmt"
	"math"

	"github.com/2389/brewdesk/internal/catalog"
)

// scanPageSize is how many records are read per query when walking a table.
const scanPageSize = 500

// describe renders a record as an index document.
func describe(rec catalog.Record) string {
	v := rec.Values()
	if rec.Kind() == catalog.KindOutlet {
		return fmt.Sprintf("Outlet: %s, Region: %s, Address: %s", v["name"], v["category"], v["address"])
	}
	price := "N/A"
	if p, ok := v["price"].(float64); ok {
		price = fmt.Sprintf("RM %.2f", p)
	}
	return fmt.Sprintf("%s: %s, Category: %s, Price: %s", rec.Kind().Label(), v["name"], v["category"], price)
}

// allRecords reads a whole table.
func (s *Store) allRecords(ctx context.Context, k catalog.Kind) ([]catalog.Record, error) {
	var out []catalog.Record
	for offset := 0; offset < math.MaxInt32; offset += scanPageSize {
		recs, total, err := s.List(ctx, k, offset, scanPageSize)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
		if len(recs) == 0 || len(out) >= total {
			break
		}
	}
	return out, nil
}

// BuildDocuments renders every catalog record as an index document.
func BuildDocuments(ctx context.Context, s *Store) ([]Document, error) {
	var docs []Document
	for _, k := range catalog.Kinds {
		recs, err := s.allRecords(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", k, err)
		}
		for _, rec := range recs {
			id, _ := rec.Identifier()
			docs = append(docs, Document{Kind: k, ID: id, Text: describe(rec)})
		}
	}
	return docs, nil
}

// Reindex rebuilds the index and returns the document count.
func Reindex(ctx context.Context, s *Store) (int, error) {
	docs, err := BuildDocuments(ctx, s)
	if err != nil {
		return 0, err
	}
	if err := s.ReplaceIndex(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}
