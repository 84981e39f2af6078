// Package syncer reconciles the local board collection with its cloud
// copy. The merge policy is deliberately blunt: when both sides hold a
// board, the local copy wins unconditionally. No timestamps are compared
// and no fields are merged; each board has a single writer and the cloud
// copy only exists so other devices and friends can fetch it.
package syncer

import (
	"context"
	"fmt"
	"time"

	"podium/api/internal/sharing"
)

// BoardRecord is the cloud-synchronized shape of a board: the board fields
// plus owner, sharing policy and last-synced timestamp, stored one record
// per board keyed by board id.
type BoardRecord struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"ownerId"`
	Name          string         `json:"name"`
	CoverImageRef *string        `json:"coverImageRef,omitempty"`
	TemplateID    *string        `json:"templateId,omitempty"`
	Sharing       sharing.Policy `json:"sharing"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     *time.Time     `json:"deletedAt,omitempty"`
	LastSyncedAt  *time.Time     `json:"lastSyncedAt,omitempty"`
}

// RemoteStore is the cloud side of a sync. Fetch and push are the only two
// operations; there is no partial update.
type RemoteStore interface {
	FetchBoards(ctx context.Context, ownerID string) ([]BoardRecord, error)
	PushBoards(ctx context.Context, ownerID string, records []BoardRecord) error
}

// MergeOne resolves one board present on either side. Exactly one side
// present returns that side; both present returns local, always.
func MergeOne(local, remote *BoardRecord) *BoardRecord {
	if local == nil {
		return remote
	}
	return local
}

// MergeMany outer-joins the two collections by board id. Boards on only
// one side pass through unchanged; boards on both resolve via MergeOne.
// Local boards keep their order, remote-only boards append after them.
func MergeMany(locals, remotes []BoardRecord) []BoardRecord {
	localIDs := make(map[string]struct{}, len(locals))
	merged := make([]BoardRecord, 0, len(locals)+len(remotes))
	for _, local := range locals {
		localIDs[local.ID] = struct{}{}
		merged = append(merged, local)
	}
	for _, remote := range remotes {
		if _, ok := localIDs[remote.ID]; ok {
			continue
		}
		merged = append(merged, remote)
	}
	return merged
}

type Syncer struct {
	remote RemoteStore
}

func New(remote RemoteStore) *Syncer {
	return &Syncer{remote: remote}
}

// FullSync fetches the owner's remote boards, merges them under the
// local-wins policy, pushes the merged set back, and returns it as the new
// local truth. A fetch failure aborts before any merge; a push failure
// surfaces after a merge that only ever happened in memory, so local data
// is untouched either way and retrying the whole FullSync is safe: the
// merge is monotonic and repeating it converges to the same result.
func (s *Syncer) FullSync(ctx context.Context, locals []BoardRecord, ownerID string) ([]BoardRecord, error) {
	remotes, err := s.remote.FetchBoards(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("fetch remote boards: %w", err)
	}

	merged := MergeMany(locals, remotes)
	now := time.Now()
	for i := range merged {
		merged[i].LastSyncedAt = &now
	}

	if err := s.remote.PushBoards(ctx, ownerID, merged); err != nil {
		return nil, fmt.Errorf("push merged boards: %w", err)
	}
	return merged, nil
}
