package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultBoard ResultType = "board"
	ResultCard  ResultType = "card"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	BoardID string     `json:"boardId"`
	OwnerID string     `json:"ownerId"`
}

// Query describes a search request.
type Query struct {
	Text          string
	FilterType    ResultType // empty = all types
	FilterOwnerID string
	FilterBoardID string
	Limit         int
	Offset        int
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

// BoardRecord is the data we index for a board.
type BoardRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
}

// CardRecord is the data we index for a card.
type CardRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Notes    string `json:"notes"`
	BoardID  string `json:"boardId"`
	OwnerID  string `json:"ownerId"`
}
