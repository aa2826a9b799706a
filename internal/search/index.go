// Package search keeps an in-memory full text index of user profiles so the
// conversation list can be narrowed by name.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/analysis"
	"github.com/blugelabs/bluge/analysis/analyzer"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/johndosdos/cove/internal/model"
)

const (
	fieldID          = "_id"
	fieldUsername    = "username"
	fieldDisplayName = "display_name"
)

// ProfileIndex is rebuilt from every profile snapshot. Terms are matched as
// prefixes of the username or of any word in the display name.
type ProfileIndex struct {
	mu       sync.Mutex
	writer   *bluge.Writer
	analyzer *analysis.Analyzer
	indexed  map[string]struct{}
}

func NewProfileIndex() (*ProfileIndex, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, fmt.Errorf("internal/search: failed to open index: %w", err)
	}
	return &ProfileIndex{
		writer:   writer,
		analyzer: analyzer.NewStandardAnalyzer(),
		indexed:  map[string]struct{}{},
	}, nil
}

// Replace makes the index hold exactly the given profiles.
func (x *ProfileIndex) Replace(profiles []model.UserProfile) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	next := make(map[string]struct{}, len(profiles))
	batch := bluge.NewBatch()
	for _, p := range profiles {
		id := p.ID.String()
		next[id] = struct{}{}

		doc := bluge.NewDocument(id).
			AddField(bluge.NewKeywordField(fieldUsername, strings.ToLower(p.Username))).
			AddField(bluge.NewTextField(fieldDisplayName, p.DisplayName).WithAnalyzer(x.analyzer))
		batch.Update(doc.ID(), doc)
	}
	for id := range x.indexed {
		if _, ok := next[id]; !ok {
			batch.Delete(bluge.Identifier(id))
		}
	}

	if err := x.writer.Batch(batch); err != nil {
		return fmt.Errorf("internal/search: failed to index %d profiles: %w", len(profiles), err)
	}
	x.indexed = next
	return nil
}

// Search returns the IDs of the profiles matching every term of query. An
// empty query matches everything.
func (x *ProfileIndex) Search(ctx context.Context, query string) ([]uuid.UUID, error) {
	x.mu.Lock()
	size := len(x.indexed)
	x.mu.Unlock()
	if size == 0 {
		return []uuid.UUID{}, nil
	}

	reader, err := x.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("internal/search: failed to open reader: %w", err)
	}
	defer reader.Close()

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(size, buildQuery(query)))
	if err != nil {
		return nil, fmt.Errorf("internal/search: query [%s] failed: %w", query, err)
	}

	ids := []uuid.UUID{}
	match, err := matches.Next()
	for err == nil && match != nil {
		var id uuid.UUID
		var parseErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field != fieldID {
				return true
			}
			id, parseErr = uuid.ParseBytes(value)
			return false
		})
		if err != nil {
			break
		}
		if parseErr == nil {
			ids = append(ids, id)
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("internal/search: failed to read results: %w", err)
	}
	return ids, nil
}

func (x *ProfileIndex) Close() error {
	return x.writer.Close()
}

func buildQuery(query string) bluge.Query {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return bluge.NewMatchAllQuery()
	}

	return bluge.NewBooleanQuery().AddMust(lo.Map(terms, func(term string, _ int) bluge.Query {
		return bluge.NewBooleanQuery().
			AddShould(
				bluge.NewPrefixQuery(term).SetField(fieldUsername),
				bluge.NewPrefixQuery(term).SetField(fieldDisplayName),
			).
			SetMinShould(1)
	})...)
}
