package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultAmendment ResultType = "amendment"
	ResultBlog      ResultType = "blog"
	ResultDocument  ResultType = "document"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	Code     string     `json:"code,omitempty"`
	GroupID  string     `json:"groupId,omitempty"`
	IsPublic bool       `json:"isPublic"`
}

// Query describes a search request. PublicOnly is set for anonymous
// callers; they never see private entities.
type Query struct {
	Text          string
	FilterType    ResultType // empty = all types
	FilterGroupID string
	Limit         int
	Offset        int
	PublicOnly    bool
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexAmendment(a AmendmentRecord) error
	IndexBlog(b BlogRecord) error
	IndexDocument(d DocumentRecord) error
	DeleteAmendment(id string) error
	DeleteBlog(id string) error
	DeleteDocument(id string) error
}

// AmendmentRecord is the data we index for an amendment.
type AmendmentRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Code     string `json:"code"`
	GroupID  string `json:"groupId"`
	Status   string `json:"status"`
	IsPublic bool   `json:"isPublic"`
}

// BlogRecord is the data we index for a blog.
type BlogRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	IsPublic bool   `json:"isPublic"`
}

// DocumentRecord is the data we index for a standalone or group document.
type DocumentRecord struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	GroupID  string `json:"groupId"`
	IsPublic bool   `json:"isPublic"`
}
