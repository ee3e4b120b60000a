package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: sanitizeResults(nonNil(results), q.PublicOnly), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: sanitizeResults(nonNil(results), q.PublicOnly), Total: total, Query: q.Text}
}

// IndexAmendment indexes an amendment (fire-and-forget to Meilisearch).
func (s *Service) IndexAmendment(a AmendmentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexAmendment(a); err != nil {
			log.Printf("search: index amendment %s: %v", a.ID, err)
		}
	}()
}

// IndexBlog indexes a blog (fire-and-forget to Meilisearch).
func (s *Service) IndexBlog(b BlogRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexBlog(b); err != nil {
			log.Printf("search: index blog %s: %v", b.ID, err)
		}
	}()
}

// IndexDocument indexes a document (fire-and-forget to Meilisearch).
func (s *Service) IndexDocument(d DocumentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDocument(d); err != nil {
			log.Printf("search: index document %s: %v", d.ID, err)
		}
	}()
}

// DeleteAmendment removes an amendment from the search index (fire-and-forget).
func (s *Service) DeleteAmendment(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteAmendment(id); err != nil {
			log.Printf("search: delete amendment %s: %v", id, err)
		}
	}()
}

// DeleteBlog removes a blog from the search index (fire-and-forget).
func (s *Service) DeleteBlog(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteBlog(id); err != nil {
			log.Printf("search: delete blog %s: %v", id, err)
		}
	}()
}

// DeleteDocument removes a document from the search index (fire-and-forget).
func (s *Service) DeleteDocument(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteDocument(id); err != nil {
			log.Printf("search: delete document %s: %v", id, err)
		}
	}()
}

// ReindexAll pushes the given records to Meilisearch in bulk.
func (s *Service) ReindexAll(amendments []AmendmentRecord, blogs []BlogRecord, documents []DocumentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if len(amendments) > 0 {
		if err := s.meili.IndexAmendments(amendments); err != nil {
			log.Printf("search: reindex amendments: %v", err)
		}
	}
	if len(blogs) > 0 {
		if err := s.meili.IndexBlogs(blogs); err != nil {
			log.Printf("search: reindex blogs: %v", err)
		}
	}
	if len(documents) > 0 {
		if err := s.meili.IndexDocuments(documents); err != nil {
			log.Printf("search: reindex documents: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	amendments, blogs, documents, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(amendments, blogs, documents)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

// sanitizeResults drops private hits for anonymous callers. The backends
// already filter, this is the last line in case an index lags behind a
// visibility change.
func sanitizeResults(results []Result, publicOnly bool) []Result {
	if !publicOnly {
		return results
	}
	filtered := make([]Result, 0, len(results))
	for _, result := range results {
		if !result.IsPublic {
			continue
		}
		filtered = append(filtered, result)
	}
	return filtered
}
