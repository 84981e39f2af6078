package store

import (
	"time"

	"podium/api/internal/sharing"
)

// Board is a named, rank-ordered collection of cards owned by one user.
// DeletedAt marks a recoverable soft delete; cards and snapshots survive
// it until an explicit purge.
type Board struct {
	ID            string
	OwnerID       string
	Name          string
	CoverImageRef *string
	TemplateID    *string
	Sharing       sharing.Policy
	LastSyncedAt  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// Card is a single ranked item on a board. Rank is 1-indexed and dense
// per board. TemplateItemID is empty for cards not seeded from a template.
type Card struct {
	ID             string
	BoardID        string
	Name           string
	Nickname       string
	ImageRef       *string
	ThumbRef       *string
	Notes          string
	Metadata       map[string]string
	TemplateItemID string
	Rank           int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CardPatch carries the fields UpdateCardFields may change. Nil means
// leave the stored value alone; rank is never patchable.
type CardPatch struct {
	Name     *string
	Nickname *string
	Notes    *string
	ImageRef *string
	ThumbRef *string
	Metadata map[string]string
}

// Snapshot is one immutable episode capture of a board's ranking.
type Snapshot struct {
	ID        string
	BoardID   string
	Episode   int
	Label     string
	Notes     string
	Rankings  []RankingEntry
	CreatedAt time.Time
}

// RankingEntry is a frozen copy of one card at capture time, independent
// of the live card.
type RankingEntry struct {
	CardID   string  `json:"cardId"`
	CardName string  `json:"cardName"`
	Rank     int     `json:"rank"`
	ThumbRef *string `json:"thumbRef,omitempty"`
}

// Template is a fixed, shared item list multiple users rank independently.
type Template struct {
	ID        string
	Name      string
	Items     []TemplateItem
	CreatedAt time.Time
}

type TemplateItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ThumbRef *string `json:"thumbRef,omitempty"`
}
