package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"podium/api/internal/board"
	"podium/api/internal/compare"
	"podium/api/internal/config"
	"podium/api/internal/history"
	"podium/api/internal/images"
	"podium/api/internal/remote"
	"podium/api/internal/search"
	"podium/api/internal/sharing"
	"podium/api/internal/store"
	"podium/api/internal/syncer"
	"podium/api/internal/util"
)

type CardInput struct {
	Name     string            `json:"name"`
	Nickname string            `json:"nickname"`
	Notes    string            `json:"notes"`
	ImageRef *string           `json:"imageRef"`
	ThumbRef *string           `json:"thumbRef"`
	Metadata map[string]string `json:"metadata"`
}

type CardPatchInput struct {
	Name     *string           `json:"name"`
	Nickname *string           `json:"nickname"`
	Notes    *string           `json:"notes"`
	ImageRef *string           `json:"imageRef"`
	ThumbRef *string           `json:"thumbRef"`
	Metadata map[string]string `json:"metadata"`
}

type SharingInput struct {
	Visibility        string   `json:"visibility"`
	AllowedFriends    []string `json:"allowedFriends"`
	PublicLinkEnabled bool     `json:"publicLinkEnabled"`
	LinkPassword      *string  `json:"linkPassword"`
}

type TemplateItemInput struct {
	Name     string  `json:"name"`
	ThumbRef *string `json:"thumbRef"`
}

type dataStore interface {
	InsertBoard(context.Context, store.Board) error
	UpsertBoard(context.Context, store.Board) error
	GetBoard(context.Context, string) (store.Board, error)
	ListBoardsByOwner(context.Context, string, bool) ([]store.Board, error)
	UpdateBoardMeta(context.Context, string, string, *string) (bool, error)
	UpdateBoardSharing(context.Context, string, sharing.Policy) (bool, error)
	GetBoardByPublicLink(context.Context, string) (store.Board, error)
	SoftDeleteBoard(context.Context, string) (bool, error)
	RestoreBoard(context.Context, string) (bool, error)
	PurgeBoard(context.Context, string) error
	CreateCard(context.Context, store.Card) (store.Card, error)
	GetCard(context.Context, string) (store.Card, error)
	ListCards(context.Context, string) ([]store.Card, error)
	UpdateCardFields(context.Context, string, store.CardPatch) (bool, error)
	DeleteCardAndRenumber(context.Context, string) (bool, error)
	ApplyCardOrder(context.Context, string, []string) error
	InsertSnapshot(context.Context, store.Snapshot) error
	ListSnapshots(context.Context, string) ([]store.Snapshot, error)
	GetSnapshot(context.Context, string) (store.Snapshot, error)
	NextEpisode(context.Context, string) (int, error)
	GetTemplate(context.Context, string) (store.Template, error)
	ListTemplates(context.Context) ([]store.Template, error)
	InsertTemplate(context.Context, store.Template) error
	ListFriendIDs(context.Context, string) ([]string, error)
	AddFriend(context.Context, string, string) error
	Ping(ctx context.Context) error
}

type Service struct {
	cfg    config.Config
	store  dataStore
	sync   *syncer.Syncer
	images *images.Service
	search *search.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, remoteStore *remote.RedisStore, imageService *images.Service, searchService *search.Service) *Service {
	var sync *syncer.Syncer
	if remoteStore != nil {
		sync = syncer.New(remoteStore)
	}
	return &Service{
		cfg:    cfg,
		store:  dataStore,
		sync:   sync,
		images: imageService,
		search: searchService,
	}
}

// Bootstrap seeds a starter template so fresh installs have something to
// rank against.
func (s *Service) Bootstrap(ctx context.Context) error {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return err
	}
	if len(templates) > 0 {
		return nil
	}

	seed := store.Template{
		ID:   "tpl-season-cast",
		Name: "Season Cast",
		Items: []store.TemplateItem{
			{ID: "itm-alex", Name: "Alex"},
			{ID: "itm-bailey", Name: "Bailey"},
			{ID: "itm-casey", Name: "Casey"},
			{ID: "itm-devon", Name: "Devon"},
			{ID: "itm-emerson", Name: "Emerson"},
		},
	}
	return s.store.InsertTemplate(ctx, seed)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// --- Boards ---

func (s *Service) CreateBoard(ctx context.Context, ownerID, name, templateID string) (map[string]any, error) {
	boardName := strings.TrimSpace(name)
	if boardName == "" {
		return nil, validationError("name is required", nil)
	}

	item := store.Board{
		ID:      util.NewID("brd"),
		OwnerID: ownerID,
		Name:    boardName,
		Sharing: sharing.Policy{Visibility: sharing.VisibilityPrivate},
	}

	var template *store.Template
	if templateID != "" {
		found, err := s.store.GetTemplate(ctx, templateID)
		if err != nil {
			return nil, err
		}
		template = &found
		item.TemplateID = &found.ID
	}

	if err := s.store.InsertBoard(ctx, item); err != nil {
		return nil, err
	}

	cards := make([]store.Card, 0)
	if template != nil {
		for _, templateItem := range template.Items {
			card, err := s.store.CreateCard(ctx, store.Card{
				ID:             util.NewID("crd"),
				BoardID:        item.ID,
				Name:           templateItem.Name,
				ThumbRef:       templateItem.ThumbRef,
				TemplateItemID: templateItem.ID,
			})
			if err != nil {
				return nil, err
			}
			cards = append(cards, card)
		}
	}

	if s.search != nil {
		s.search.IndexBoard(search.BoardRecord{ID: item.ID, Name: item.Name, OwnerID: item.OwnerID})
	}

	stored, err := s.store.GetBoard(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return boardPayload(stored, cards), nil
}

func (s *Service) ListBoards(ctx context.Context, ownerID string, includeDeleted bool) ([]map[string]any, error) {
	boards, err := s.store.ListBoardsByOwner(ctx, ownerID, includeDeleted)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(boards))
	for _, item := range boards {
		cards, err := s.store.ListCards(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		summary := boardSummaryPayload(item)
		summary["cardCount"] = len(cards)
		items = append(items, summary)
	}
	return items, nil
}

func (s *Service) GetBoard(ctx context.Context, viewerID, boardID string) (map[string]any, error) {
	item, err := s.viewableBoard(ctx, viewerID, boardID)
	if err != nil {
		return nil, err
	}
	cards, err := s.store.ListCards(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return boardPayload(item, cards), nil
}

func (s *Service) UpdateBoard(ctx context.Context, ownerID, boardID, name string, coverImageRef *string) (map[string]any, error) {
	item, err := s.ownedBoard(ctx, ownerID, boardID)
	if err != nil {
		return nil, err
	}

	boardName := strings.TrimSpace(name)
	if boardName == "" {
		boardName = item.Name
	}
	cover := item.CoverImageRef
	if coverImageRef != nil {
		cover = coverImageRef
	}

	if _, err := s.store.UpdateBoardMeta(ctx, boardID, boardName, cover); err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexBoard(search.BoardRecord{ID: item.ID, Name: boardName, OwnerID: item.OwnerID})
	}

	updated, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return boardSummaryPayload(updated), nil
}

func (s *Service) DeleteBoard(ctx context.Context, ownerID, boardID string) error {
	if _, err := s.ownedBoard(ctx, ownerID, boardID); err != nil {
		return err
	}
	if _, err := s.store.SoftDeleteBoard(ctx, boardID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteBoard(boardID)
	}
	return nil
}

func (s *Service) RestoreBoard(ctx context.Context, ownerID, boardID string) (map[string]any, error) {
	item, err := s.ownedBoard(ctx, ownerID, boardID)
	if err != nil {
		return nil, err
	}
	restored, err := s.store.RestoreBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if !restored {
		return nil, validationError("board is not deleted", nil)
	}
	if s.search != nil {
		s.search.IndexBoard(search.BoardRecord{ID: item.ID, Name: item.Name, OwnerID: item.OwnerID})
	}
	updated, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return boardSummaryPayload(updated), nil
}

func (s *Service) PurgeBoard(ctx context.Context, ownerID, boardID string) error {
	item, err := s.ownedBoard(ctx, ownerID, boardID)
	if err != nil {
		return err
	}
	cards, err := s.store.ListCards(ctx, item.ID)
	if err != nil {
		return err
	}
	if err := s.store.PurgeBoard(ctx, boardID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteBoard(boardID)
		for _, card := range cards {
			s.search.DeleteCard(card.ID)
		}
	}
	return nil
}

// --- Cards ---

func (s *Service) AddCard(ctx context.Context, ownerID, boardID string, input CardInput) (map[string]any, error) {
	if _, err := s.ownedBoard(ctx, ownerID, boardID); err != nil {
		return nil, err
	}
	cardName := strings.TrimSpace(input.Name)
	if cardName == "" {
		return nil, validationError("name is required", nil)
	}

	card, err := s.store.CreateCard(ctx, store.Card{
		ID:       util.NewID("crd"),
		BoardID:  boardID,
		Name:     cardName,
		Nickname: strings.TrimSpace(input.Nickname),
		Notes:    input.Notes,
		ImageRef: input.ImageRef,
		ThumbRef: input.ThumbRef,
		Metadata: input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if s.search != nil {
		s.search.IndexCard(search.CardRecord{
			ID:       card.ID,
			Name:     card.Name,
			Nickname: card.Nickname,
			Notes:    card.Notes,
			BoardID:  card.BoardID,
			OwnerID:  ownerID,
		})
	}
	return cardPayload(card), nil
}

// UpdateCard edits card fields. A card id that does not exist is a silent
// no-op rather than an error: offline clients replay edits against cards
// that may have been removed on another device.
func (s *Service) UpdateCard(ctx context.Context, ownerID, boardID, cardID string, input CardPatchInput) (map[string]any, error) {
	if _, err := s.ownedBoard(ctx, ownerID, boardID); err != nil {
		return nil, err
	}

	patch := store.CardPatch{
		Name:     trimmedPtr(input.Name),
		Nickname: trimmedPtr(input.Nickname),
		Notes:    input.Notes,
		ImageRef: input.ImageRef,
		ThumbRef: input.ThumbRef,
		Metadata: input.Metadata,
	}
	if patch.Name != nil && *patch.Name == "" {
		return nil, validationError("name cannot be blank", nil)
	}

	if _, ok, err := s.cardOnBoard(ctx, boardID, cardID); err != nil {
		return nil, err
	} else if !ok {
		return map[string]any{"ok": true, "updated": false}, nil
	}

	updated, err := s.store.UpdateCardFields(ctx, cardID, patch)
	if err != nil {
		return nil, err
	}
	if !updated {
		return map[string]any{"ok": true, "updated": false}, nil
	}

	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexCard(search.CardRecord{
			ID:       card.ID,
			Name:     card.Name,
			Nickname: card.Nickname,
			Notes:    card.Notes,
			BoardID:  card.BoardID,
			OwnerID:  ownerID,
		})
	}
	payload := cardPayload(card)
	payload["ok"] = true
	payload["updated"] = true
	return payload, nil
}

// RemoveCard deletes a card and re-packs the board's ranks. Missing card
// ids are a silent no-op, same as UpdateCard.
func (s *Service) RemoveCard(ctx context.Context, ownerID, boardID, cardID string) (map[string]any, error) {
	if _, err := s.ownedBoard(ctx, ownerID, boardID); err != nil {
		return nil, err
	}
	if _, ok, err := s.cardOnBoard(ctx, boardID, cardID); err != nil {
		return nil, err
	} else if !ok {
		return map[string]any{"ok": true, "removed": false}, nil
	}
	removed, err := s.store.DeleteCardAndRenumber(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if removed && s.search != nil {
		s.search.DeleteCard(cardID)
	}
	return map[string]any{"ok": true, "removed": removed}, nil
}

// ReorderCards moves the card at position from to position to (0-indexed)
// and renumbers the whole board densely. Moving a card onto itself changes
// nothing and skips the write entirely.
func (s *Service) ReorderCards(ctx context.Context, ownerID, boardID string, from, to int) (map[string]any, error) {
	if _, err := s.ownedBoard(ctx, ownerID, boardID); err != nil {
		return nil, err
	}
	cards, err := s.store.ListCards(ctx, boardID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(cards))
	for i, card := range cards {
		ids[i] = card.ID
	}

	ordered, err := board.Move(ids, from, to)
	if err != nil {
		return nil, validationError(err.Error(), map[string]any{"from": from, "to": to, "cards": len(ids)})
	}

	if from != to {
		if err := s.store.ApplyCardOrder(ctx, boardID, ordered); err != nil {
			return nil, err
		}
		cards, err = s.store.ListCards(ctx, boardID)
		if err != nil {
			return nil, err
		}
	}

	items := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		items = append(items, cardPayload(card))
	}
	return map[string]any{"ok": true, "cards": items}, nil
}

// --- Snapshots and history ---

func (s *Service) CaptureSnapshot(ctx context.Context, ownerID, boardID string, episode *int, label, notes string) (map[string]any, error) {
	if _, err := s.ownedBoard(ctx, ownerID, boardID); err != nil {
		return nil, err
	}
	cards, err := s.store.ListCards(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, validationError("cannot snapshot an empty board", nil)
	}

	episodeNumber := 0
	if episode != nil {
		episodeNumber = *episode
	} else {
		episodeNumber, err = s.store.NextEpisode(ctx, boardID)
		if err != nil {
			return nil, err
		}
	}
	if episodeNumber < 1 {
		return nil, validationError("episode must be 1 or greater", nil)
	}

	rankings := make([]store.RankingEntry, 0, len(cards))
	for _, card := range cards {
		rankings = append(rankings, store.RankingEntry{
			CardID:   card.ID,
			CardName: card.Name,
			Rank:     card.Rank,
			ThumbRef: card.ThumbRef,
		})
	}

	snapshot := store.Snapshot{
		ID:       util.NewID("snp"),
		BoardID:  boardID,
		Episode:  episodeNumber,
		Label:    strings.TrimSpace(label),
		Notes:    notes,
		Rankings: rankings,
	}
	if err := s.store.InsertSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	stored, err := s.store.GetSnapshot(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	return snapshotPayload(stored), nil
}

func (s *Service) ListSnapshots(ctx context.Context, viewerID, boardID string) ([]map[string]any, error) {
	if _, err := s.viewableBoard(ctx, viewerID, boardID); err != nil {
		return nil, err
	}
	snapshots, err := s.store.ListSnapshots(ctx, boardID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(snapshots))
	for _, snapshot := range snapshots {
		items = append(items, snapshotPayload(snapshot))
	}
	return items, nil
}

func (s *Service) GetSnapshot(ctx context.Context, viewerID, boardID, snapshotID string) (map[string]any, error) {
	if _, err := s.viewableBoard(ctx, viewerID, boardID); err != nil {
		return nil, err
	}
	snapshot, err := s.store.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if snapshot.BoardID != boardID {
		return nil, sql.ErrNoRows
	}
	return snapshotPayload(snapshot), nil
}

func (s *Service) Trajectories(ctx context.Context, viewerID, boardID string) ([]map[string]any, error) {
	cards, snapshots, err := s.boardHistory(ctx, viewerID, boardID)
	if err != nil {
		return nil, err
	}
	trajectories := history.AllTrajectories(cards, snapshots)
	items := make([]map[string]any, 0, len(trajectories))
	for _, trajectory := range trajectories {
		items = append(items, trajectoryPayload(trajectory))
	}
	return items, nil
}

func (s *Service) CardTrajectory(ctx context.Context, viewerID, boardID, cardID string) (map[string]any, error) {
	cards, snapshots, err := s.boardHistory(ctx, viewerID, boardID)
	if err != nil {
		return nil, err
	}
	trajectory, ok := history.CardTrajectory(cards, snapshots, cardID)
	if !ok {
		return nil, sql.ErrNoRows
	}
	return trajectoryPayload(trajectory), nil
}

// Movements reports per-card rank movement against the snapshot at
// baselineEpisode. An episode that was never captured yields a nil
// baseline: movements stay null with isNew false, and nothing reads as
// removed.
func (s *Service) Movements(ctx context.Context, viewerID, boardID string, baselineEpisode int) (map[string]any, error) {
	cards, snapshots, err := s.boardHistory(ctx, viewerID, boardID)
	if err != nil {
		return nil, err
	}

	var baseline *history.Snapshot
	for i := range snapshots {
		if snapshots[i].Episode == baselineEpisode {
			baseline = &snapshots[i]
			break
		}
	}

	movements := history.Movements(cards, baseline)
	items := make([]map[string]any, 0, len(movements))
	for _, movement := range movements {
		items = append(items, movementPayload(movement))
	}
	return map[string]any{
		"baselineEpisode": baselineEpisode,
		"baselineFound":   baseline != nil,
		"movements":       items,
	}, nil
}

func (s *Service) boardHistory(ctx context.Context, viewerID, boardID string) ([]history.Card, []history.Snapshot, error) {
	if _, err := s.viewableBoard(ctx, viewerID, boardID); err != nil {
		return nil, nil, err
	}
	cards, err := s.store.ListCards(ctx, boardID)
	if err != nil {
		return nil, nil, err
	}
	snapshots, err := s.store.ListSnapshots(ctx, boardID)
	if err != nil {
		return nil, nil, err
	}

	historyCards := make([]history.Card, 0, len(cards))
	for _, card := range cards {
		historyCards = append(historyCards, history.Card{ID: card.ID, Name: card.Name, Rank: card.Rank})
	}
	historySnapshots := make([]history.Snapshot, 0, len(snapshots))
	for _, snapshot := range snapshots {
		entries := make([]history.RankingEntry, 0, len(snapshot.Rankings))
		for _, entry := range snapshot.Rankings {
			entries = append(entries, history.RankingEntry{CardID: entry.CardID, CardName: entry.CardName, Rank: entry.Rank})
		}
		historySnapshots = append(historySnapshots, history.Snapshot{
			Episode:  snapshot.Episode,
			Label:    snapshot.Label,
			Rankings: entries,
		})
	}
	return historyCards, historySnapshots, nil
}

// --- Comparison ---

// CompareBoards scores how closely the viewer's board agrees with a
// friend's board and aligns the two rankings side by side. The friend's
// board must be visible to the viewer under its sharing policy.
func (s *Service) CompareBoards(ctx context.Context, viewerID, boardID, friendBoardID string) (map[string]any, error) {
	yours, err := s.ownedBoard(ctx, viewerID, boardID)
	if err != nil {
		return nil, err
	}
	theirs, err := s.viewableBoard(ctx, viewerID, friendBoardID)
	if err != nil {
		return nil, err
	}

	yourItems, err := s.compareItems(ctx, yours.ID)
	if err != nil {
		return nil, err
	}
	friendItems, err := s.compareItems(ctx, theirs.ID)
	if err != nil {
		return nil, err
	}

	aligned := compare.Align(yourItems, friendItems)
	rows := make([]map[string]any, 0, len(aligned))
	for _, row := range aligned {
		rows = append(rows, map[string]any{
			"id":          row.ID,
			"name":        row.Name,
			"yourRank":    row.YourRank,
			"friendRank":  row.FriendRank,
			"yourThumb":   row.YourThumb,
			"friendThumb": row.FriendThumb,
		})
	}

	return map[string]any{
		"agreement":     compare.Agreement(yourItems, friendItems),
		"aligned":       rows,
		"boardId":       yours.ID,
		"friendBoardId": theirs.ID,
		"friendOwnerId": theirs.OwnerID,
	}, nil
}

func (s *Service) compareItems(ctx context.Context, boardID string) ([]compare.Item, error) {
	cards, err := s.store.ListCards(ctx, boardID)
	if err != nil {
		return nil, err
	}
	items := make([]compare.Item, 0, len(cards))
	for _, card := range cards {
		rank := card.Rank
		items = append(items, compare.Item{
			ID:       compare.IdentityID(card.TemplateItemID, card.ID),
			Name:     card.Name,
			Rank:     &rank,
			ThumbRef: derefString(card.ThumbRef),
		})
	}
	return items, nil
}

// --- Sharing ---

func (s *Service) UpdateSharing(ctx context.Context, ownerID, boardID string, input SharingInput) (map[string]any, error) {
	item, err := s.ownedBoard(ctx, ownerID, boardID)
	if err != nil {
		return nil, err
	}

	policy := item.Sharing
	policy.Visibility = sharing.Normalize(input.Visibility)
	policy.AllowedFriends = input.AllowedFriends
	policy.PublicLinkEnabled = input.PublicLinkEnabled

	// The link id is minted once and stays stable across disable/enable
	// cycles so shared URLs never rot.
	if policy.PublicLinkEnabled && policy.PublicLinkID == "" {
		policy.PublicLinkID = util.NewLinkToken()
	}

	if input.LinkPassword != nil {
		if *input.LinkPassword == "" {
			policy.LinkPasswordHash = ""
		} else {
			hashed, err := bcrypt.GenerateFromPassword([]byte(*input.LinkPassword), bcrypt.DefaultCost)
			if err != nil {
				return nil, err
			}
			policy.LinkPasswordHash = string(hashed)
		}
	}

	if _, err := s.store.UpdateBoardSharing(ctx, boardID, policy); err != nil {
		return nil, err
	}
	return sharingPayload(policy), nil
}

// SharedWithMe lists every board the viewer's friends have made visible
// to them, plus a per-friend count.
func (s *Service) SharedWithMe(ctx context.Context, viewerID string) (map[string]any, error) {
	friendIDs, err := s.store.ListFriendIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	refs := make([]sharing.BoardRef, 0)
	boardsByID := make(map[string]store.Board)
	for _, friendID := range friendIDs {
		boards, err := s.store.ListBoardsByOwner(ctx, friendID, false)
		if err != nil {
			return nil, err
		}
		for _, item := range boards {
			refs = append(refs, sharing.BoardRef{BoardID: item.ID, OwnerID: item.OwnerID, Policy: item.Sharing})
			boardsByID[item.ID] = item
		}
	}

	visible := sharing.FilterVisible(refs, viewerID, friendIDs)
	items := make([]map[string]any, 0, len(visible))
	for _, ref := range visible {
		items = append(items, boardSummaryPayload(boardsByID[ref.BoardID]))
	}
	return map[string]any{
		"boards":   items,
		"byFriend": sharing.SharedCountByFriend(refs, viewerID, friendIDs),
	}, nil
}

// ResolvePublicLink opens a board through its share link. Links can carry
// a bcrypt-hashed password; a missing or wrong password is rejected
// without revealing whether the link exists.
func (s *Service) ResolvePublicLink(ctx context.Context, publicLinkID, password string) (map[string]any, error) {
	item, err := s.store.GetBoardByPublicLink(ctx, publicLinkID)
	if err != nil {
		return nil, err
	}

	if item.Sharing.LinkPasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(item.Sharing.LinkPasswordHash), []byte(password)); err != nil {
			return nil, domainError(http.StatusUnauthorized, "LINK_PASSWORD_REQUIRED", "This link requires a password", nil)
		}
	}

	cards, err := s.store.ListCards(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	payload := boardPayload(item, cards)
	payload["readOnly"] = true
	return payload, nil
}

// --- Friends ---

func (s *Service) AddFriend(ctx context.Context, userID, friendID string) (map[string]any, error) {
	friend := strings.TrimSpace(friendID)
	if friend == "" {
		return nil, validationError("friendId is required", nil)
	}
	if friend == userID {
		return nil, validationError("cannot befriend yourself", nil)
	}
	if err := s.store.AddFriend(ctx, userID, friend); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "friendId": friend}, nil
}

func (s *Service) ListFriends(ctx context.Context, userID string) ([]string, error) {
	return s.store.ListFriendIDs(ctx, userID)
}

// --- Sync ---

// SyncNow runs a full fetch-merge-push cycle against the cloud record
// store and persists the merged set locally. Soft-deleted boards are
// included so deletions propagate to other devices.
func (s *Service) SyncNow(ctx context.Context, ownerID string) (map[string]any, error) {
	if s.sync == nil {
		return nil, domainError(http.StatusServiceUnavailable, "SYNC_UNAVAILABLE", "Cloud sync is not configured", nil)
	}

	boards, err := s.store.ListBoardsByOwner(ctx, ownerID, true)
	if err != nil {
		return nil, err
	}

	locals := make([]syncer.BoardRecord, 0, len(boards))
	for _, item := range boards {
		locals = append(locals, boardToRecord(item))
	}

	merged, err := s.sync.FullSync(ctx, locals, ownerID)
	if err != nil {
		return nil, err
	}

	imported := 0
	localIDs := make(map[string]struct{}, len(boards))
	for _, item := range boards {
		localIDs[item.ID] = struct{}{}
	}
	for _, record := range merged {
		if _, ok := localIDs[record.ID]; !ok {
			imported++
		}
		if err := s.store.UpsertBoard(ctx, recordToBoard(record)); err != nil {
			return nil, err
		}
	}

	return map[string]any{
		"ok":       true,
		"synced":   len(merged),
		"imported": imported,
	}, nil
}

func boardToRecord(item store.Board) syncer.BoardRecord {
	return syncer.BoardRecord{
		ID:            item.ID,
		OwnerID:       item.OwnerID,
		Name:          item.Name,
		CoverImageRef: item.CoverImageRef,
		TemplateID:    item.TemplateID,
		Sharing:       item.Sharing,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
		DeletedAt:     item.DeletedAt,
		LastSyncedAt:  item.LastSyncedAt,
	}
}

func recordToBoard(record syncer.BoardRecord) store.Board {
	return store.Board{
		ID:            record.ID,
		OwnerID:       record.OwnerID,
		Name:          record.Name,
		CoverImageRef: record.CoverImageRef,
		TemplateID:    record.TemplateID,
		Sharing:       record.Sharing,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
		DeletedAt:     record.DeletedAt,
		LastSyncedAt:  record.LastSyncedAt,
	}
}

// --- Search ---

func (s *Service) Search(ctx context.Context, viewerID string, query search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query.Text}
	}
	query.FilterOwnerID = viewerID
	return s.search.Search(query)
}

// --- Templates ---

func (s *Service) ListTemplates(ctx context.Context) ([]map[string]any, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(templates))
	for _, template := range templates {
		items = append(items, templatePayload(template))
	}
	return items, nil
}

func (s *Service) CreateTemplate(ctx context.Context, name string, items []TemplateItemInput) (map[string]any, error) {
	templateName := strings.TrimSpace(name)
	if templateName == "" {
		return nil, validationError("name is required", nil)
	}
	if len(items) == 0 {
		return nil, validationError("at least one item is required", nil)
	}

	template := store.Template{
		ID:   util.NewID("tpl"),
		Name: templateName,
	}
	for _, input := range items {
		itemName := strings.TrimSpace(input.Name)
		if itemName == "" {
			return nil, validationError("item names cannot be blank", nil)
		}
		template.Items = append(template.Items, store.TemplateItem{
			ID:       util.NewID("itm"),
			Name:     itemName,
			ThumbRef: input.ThumbRef,
		})
	}

	if err := s.store.InsertTemplate(ctx, template); err != nil {
		return nil, err
	}
	return templatePayload(template), nil
}

// --- Thumbnails ---

func (s *Service) UploadThumbnail(ctx context.Context, ownerID, ext, contentType string, body io.Reader, size int64) (map[string]any, error) {
	if s.images == nil {
		return nil, domainError(http.StatusServiceUnavailable, "THUMBNAILS_UNAVAILABLE", "Thumbnail storage is not configured", nil)
	}
	ref, err := s.images.PutThumbnail(ctx, ownerID, ext, contentType, body, size)
	if err != nil {
		return nil, err
	}
	url, err := s.images.ResolveURL(ctx, ref)
	if err != nil {
		return nil, err
	}
	return map[string]any{"ref": ref, "url": url}, nil
}

func (s *Service) ThumbnailURL(ctx context.Context, ref string) (map[string]any, error) {
	if s.images == nil {
		return nil, domainError(http.StatusServiceUnavailable, "THUMBNAILS_UNAVAILABLE", "Thumbnail storage is not configured", nil)
	}
	if strings.TrimSpace(ref) == "" {
		return nil, validationError("ref is required", nil)
	}
	url, err := s.images.ResolveURL(ctx, ref)
	if err != nil {
		return nil, err
	}
	return map[string]any{"ref": ref, "url": url}, nil
}

// --- helpers ---

// ownedBoard loads a board and requires the caller to be its owner.
func (s *Service) ownedBoard(ctx context.Context, ownerID, boardID string) (store.Board, error) {
	item, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	if item.OwnerID != ownerID {
		return store.Board{}, forbiddenError("you do not own this board")
	}
	return item, nil
}

// cardOnBoard resolves cardID and confirms it belongs to boardID. Unknown
// ids and cards living on some other board both report not-found, so card
// mutations stay scoped to the board whose ownership was already checked.
func (s *Service) cardOnBoard(ctx context.Context, boardID, cardID string) (store.Card, bool, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Card{}, false, nil
	}
	if err != nil {
		return store.Card{}, false, err
	}
	if card.BoardID != boardID {
		return store.Card{}, false, nil
	}
	return card, true, nil
}

// viewableBoard loads a board and checks the viewer against its sharing
// policy. Soft-deleted boards are visible only to their owner.
func (s *Service) viewableBoard(ctx context.Context, viewerID, boardID string) (store.Board, error) {
	item, err := s.store.GetBoard(ctx, boardID)
	if err != nil {
		return store.Board{}, err
	}
	if item.OwnerID == viewerID {
		return item, nil
	}
	if item.DeletedAt != nil {
		return store.Board{}, sql.ErrNoRows
	}
	friendIDs, err := s.store.ListFriendIDs(ctx, viewerID)
	if err != nil {
		return store.Board{}, err
	}
	if !sharing.CanView(item.OwnerID, item.Sharing, viewerID, friendIDs) {
		return store.Board{}, forbiddenError("this board is not shared with you")
	}
	return item, nil
}

func boardSummaryPayload(item store.Board) map[string]any {
	return map[string]any{
		"id":            item.ID,
		"ownerId":       item.OwnerID,
		"name":          item.Name,
		"coverImageRef": item.CoverImageRef,
		"templateId":    item.TemplateID,
		"sharing":       sharingPayload(item.Sharing),
		"lastSyncedAt":  item.LastSyncedAt,
		"createdAt":     item.CreatedAt,
		"updatedAt":     item.UpdatedAt,
		"deleted":       item.DeletedAt != nil,
	}
}

func boardPayload(item store.Board, cards []store.Card) map[string]any {
	payload := boardSummaryPayload(item)
	items := make([]map[string]any, 0, len(cards))
	for _, card := range cards {
		items = append(items, cardPayload(card))
	}
	payload["cards"] = items
	return payload
}

func cardPayload(card store.Card) map[string]any {
	return map[string]any{
		"id":             card.ID,
		"boardId":        card.BoardID,
		"name":           card.Name,
		"nickname":       card.Nickname,
		"imageRef":       card.ImageRef,
		"thumbRef":       card.ThumbRef,
		"notes":          card.Notes,
		"metadata":       card.Metadata,
		"templateItemId": card.TemplateItemID,
		"rank":           card.Rank,
		"updatedAt":      card.UpdatedAt,
	}
}

func snapshotPayload(snapshot store.Snapshot) map[string]any {
	rankings := make([]map[string]any, 0, len(snapshot.Rankings))
	for _, entry := range snapshot.Rankings {
		rankings = append(rankings, map[string]any{
			"cardId":   entry.CardID,
			"cardName": entry.CardName,
			"rank":     entry.Rank,
			"thumbRef": entry.ThumbRef,
		})
	}
	return map[string]any{
		"id":        snapshot.ID,
		"boardId":   snapshot.BoardID,
		"episode":   snapshot.Episode,
		"label":     snapshot.Label,
		"notes":     snapshot.Notes,
		"rankings":  rankings,
		"createdAt": snapshot.CreatedAt,
	}
}

func trajectoryPayload(trajectory history.Trajectory) map[string]any {
	points := make([]map[string]any, 0, len(trajectory.Points))
	for _, point := range trajectory.Points {
		points = append(points, map[string]any{
			"episode": point.Episode,
			"rank":    point.Rank,
		})
	}
	return map[string]any{
		"cardId":   trajectory.CardID,
		"cardName": trajectory.CardName,
		"points":   points,
		"summary":  trajectory.Summary,
	}
}

func movementPayload(movement history.Movement) map[string]any {
	return map[string]any{
		"cardId":       movement.CardID,
		"cardName":     movement.CardName,
		"currentRank":  movement.CurrentRank,
		"baselineRank": movement.BaselineRank,
		"movement":     movement.Movement,
		"isNew":        movement.IsNew,
		"isRemoved":    movement.IsRemoved,
	}
}

func sharingPayload(policy sharing.Policy) map[string]any {
	allowed := policy.AllowedFriends
	if allowed == nil {
		allowed = []string{}
	}
	return map[string]any{
		"visibility":        string(policy.Visibility),
		"allowedFriends":    allowed,
		"publicLinkEnabled": policy.PublicLinkEnabled,
		"publicLinkId":      policy.PublicLinkID,
		"linkPasswordSet":   policy.LinkPasswordHash != "",
	}
}

func templatePayload(template store.Template) map[string]any {
	items := make([]map[string]any, 0, len(template.Items))
	for _, item := range template.Items {
		items = append(items, map[string]any{
			"id":       item.ID,
			"name":     item.Name,
			"thumbRef": item.ThumbRef,
		})
	}
	return map[string]any{
		"id":    template.ID,
		"name":  template.Name,
		"items": items,
	}
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
