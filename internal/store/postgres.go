package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"podium/api/internal/sharing"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// --- Boards ---

const boardColumns = `id, owner_id, name, cover_image_ref, template_id, COALESCE(sharing_json::text, '{}'), last_synced_at, created_at, updated_at, deleted_at`

func scanBoard(row interface{ Scan(...any) error }) (Board, error) {
	var item Board
	var sharingRaw string
	if err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.Name,
		&item.CoverImageRef,
		&item.TemplateID,
		&sharingRaw,
		&item.LastSyncedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.DeletedAt,
	); err != nil {
		return Board{}, err
	}
	if err := json.Unmarshal([]byte(sharingRaw), &item.Sharing); err != nil {
		return Board{}, fmt.Errorf("unmarshal sharing policy: %w", err)
	}
	if item.Sharing.Visibility == "" {
		item.Sharing.Visibility = sharing.VisibilityPrivate
	}
	return item, nil
}

func (s *PostgresStore) InsertBoard(ctx context.Context, item Board) error {
	sharingRaw, err := json.Marshal(item.Sharing)
	if err != nil {
		return fmt.Errorf("marshal sharing policy: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO boards (id, owner_id, name, cover_image_ref, template_id, sharing_json)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	`, item.ID, item.OwnerID, item.Name, item.CoverImageRef, item.TemplateID, string(sharingRaw))
	if err != nil {
		return fmt.Errorf("insert board: %w", err)
	}
	return nil
}

// UpsertBoard writes a board wholesale, keeping its timestamps. Used when
// sync imports a board that only exists remotely.
func (s *PostgresStore) UpsertBoard(ctx context.Context, item Board) error {
	sharingRaw, err := json.Marshal(item.Sharing)
	if err != nil {
		return fmt.Errorf("marshal sharing policy: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO boards (id, owner_id, name, cover_image_ref, template_id, sharing_json, last_synced_at, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name,
			cover_image_ref=EXCLUDED.cover_image_ref,
			template_id=EXCLUDED.template_id,
			sharing_json=EXCLUDED.sharing_json,
			last_synced_at=EXCLUDED.last_synced_at,
			updated_at=EXCLUDED.updated_at,
			deleted_at=EXCLUDED.deleted_at
	`, item.ID, item.OwnerID, item.Name, item.CoverImageRef, item.TemplateID, string(sharingRaw), item.LastSyncedAt, item.CreatedAt, item.UpdatedAt, item.DeletedAt)
	if err != nil {
		return fmt.Errorf("upsert board: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBoard(ctx context.Context, boardID string) (Board, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id=$1`, boardID)
	return scanBoard(row)
}

func (s *PostgresStore) ListBoardsByOwner(ctx context.Context, ownerID string, includeDeleted bool) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+boardColumns+`
		FROM boards
		WHERE owner_id=$1
		  AND ($2::boolean OR deleted_at IS NULL)
		ORDER BY updated_at DESC
	`, ownerID, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	defer rows.Close()

	items := make([]Board, 0)
	for rows.Next() {
		item, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan board: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boards: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateBoardMeta(ctx context.Context, boardID string, name string, coverImageRef *string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE boards
		SET name=$2, cover_image_ref=$3, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL
	`, boardID, name, coverImageRef)
	if err != nil {
		return false, fmt.Errorf("update board meta: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update board meta rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdateBoardSharing(ctx context.Context, boardID string, policy sharing.Policy) (bool, error) {
	sharingRaw, err := json.Marshal(policy)
	if err != nil {
		return false, fmt.Errorf("marshal sharing policy: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE boards
		SET sharing_json=$2::jsonb, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL
	`, boardID, string(sharingRaw))
	if err != nil {
		return false, fmt.Errorf("update board sharing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update board sharing rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) GetBoardByPublicLink(ctx context.Context, publicLinkID string) (Board, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+boardColumns+`
		FROM boards
		WHERE sharing_json->>'publicLinkId' = $1
		  AND (sharing_json->>'publicLinkEnabled')::boolean
		  AND deleted_at IS NULL
	`, publicLinkID)
	return scanBoard(row)
}

// SoftDeleteBoard marks the board deleted without touching its cards or
// snapshots; RestoreBoard undoes it.
func (s *PostgresStore) SoftDeleteBoard(ctx context.Context, boardID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE boards SET deleted_at=NOW(), updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NULL
	`, boardID)
	if err != nil {
		return false, fmt.Errorf("soft delete board: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("soft delete board rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) RestoreBoard(ctx context.Context, boardID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE boards SET deleted_at=NULL, updated_at=NOW()
		WHERE id=$1 AND deleted_at IS NOT NULL
	`, boardID)
	if err != nil {
		return false, fmt.Errorf("restore board: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("restore board rows: %w", err)
	}
	return affected > 0, nil
}

// PurgeBoard permanently removes a board with its cards and snapshots.
func (s *PostgresStore) PurgeBoard(ctx context.Context, boardID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin purge tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, statement := range []string{
		`DELETE FROM snapshots WHERE board_id=$1`,
		`DELETE FROM cards WHERE board_id=$1`,
		`DELETE FROM boards WHERE id=$1`,
	} {
		if _, err := tx.ExecContext(ctx, statement, boardID); err != nil {
			return fmt.Errorf("purge board: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit purge tx: %w", err)
	}
	return nil
}

// --- Cards ---

const cardColumns = `id, board_id, name, nickname, image_ref, thumb_ref, notes, COALESCE(metadata_json::text, '{}'), template_item_id, rank, created_at, updated_at`

func scanCard(row interface{ Scan(...any) error }) (Card, error) {
	var item Card
	var metadataRaw string
	if err := row.Scan(
		&item.ID,
		&item.BoardID,
		&item.Name,
		&item.Nickname,
		&item.ImageRef,
		&item.ThumbRef,
		&item.Notes,
		&metadataRaw,
		&item.TemplateItemID,
		&item.Rank,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		return Card{}, err
	}
	if err := json.Unmarshal([]byte(metadataRaw), &item.Metadata); err != nil {
		return Card{}, fmt.Errorf("unmarshal card metadata: %w", err)
	}
	return item, nil
}

// CreateCard inserts a card at the tail of its board: rank is computed as
// the current card count plus one inside the insert itself so concurrent
// reads never see a gap.
func (s *PostgresStore) CreateCard(ctx context.Context, item Card) (Card, error) {
	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataRaw, err := json.Marshal(metadata)
	if err != nil {
		return Card{}, fmt.Errorf("marshal card metadata: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO cards (id, board_id, name, nickname, image_ref, thumb_ref, notes, metadata_json, template_item_id, rank)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9,
			(SELECT COUNT(*) + 1 FROM cards WHERE board_id=$2))
		RETURNING rank, created_at, updated_at
	`, item.ID, item.BoardID, item.Name, item.Nickname, item.ImageRef, item.ThumbRef, item.Notes, string(metadataRaw), item.TemplateItemID).
		Scan(&item.Rank, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Card{}, fmt.Errorf("create card: %w", err)
	}
	item.Metadata = metadata
	return item, nil
}

func (s *PostgresStore) GetCard(ctx context.Context, cardID string) (Card, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id=$1`, cardID)
	return scanCard(row)
}

func (s *PostgresStore) ListCards(ctx context.Context, boardID string) ([]Card, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+cardColumns+` FROM cards WHERE board_id=$1 ORDER BY rank ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	items := make([]Card, 0)
	for rows.Next() {
		item, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cards: %w", err)
	}
	return items, nil
}

// UpdateCardFields merges the patch into the card and bumps updated_at.
// Rank is never touched here. Returns false when no card matched.
func (s *PostgresStore) UpdateCardFields(ctx context.Context, cardID string, patch CardPatch) (bool, error) {
	var metadataRaw *string
	if patch.Metadata != nil {
		encoded, err := json.Marshal(patch.Metadata)
		if err != nil {
			return false, fmt.Errorf("marshal card metadata: %w", err)
		}
		text := string(encoded)
		metadataRaw = &text
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE cards
		SET name=COALESCE($2, name),
			nickname=COALESCE($3, nickname),
			notes=COALESCE($4, notes),
			image_ref=COALESCE($5, image_ref),
			thumb_ref=COALESCE($6, thumb_ref),
			metadata_json=COALESCE($7::jsonb, metadata_json),
			updated_at=NOW()
		WHERE id=$1
	`, cardID, patch.Name, patch.Nickname, patch.Notes, patch.ImageRef, patch.ThumbRef, metadataRaw)
	if err != nil {
		return false, fmt.Errorf("update card fields: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update card fields rows: %w", err)
	}
	return affected > 0, nil
}

// DeleteCardAndRenumber removes a card and re-packs the remaining ranks of
// its board back to a dense 1..n, preserving relative order, in one
// transaction so no reader observes a gapped sequence.
func (s *PostgresStore) DeleteCardAndRenumber(ctx context.Context, cardID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var boardID string
	err = tx.QueryRowContext(ctx, `DELETE FROM cards WHERE id=$1 RETURNING board_id`, cardID).Scan(&boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete card: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		WITH ordered AS (
			SELECT id, ROW_NUMBER() OVER (ORDER BY rank ASC) AS new_rank
			FROM cards WHERE board_id=$1
		)
		UPDATE cards c
		SET rank=o.new_rank, updated_at=NOW()
		FROM ordered o
		WHERE c.id=o.id AND c.rank <> o.new_rank
	`, boardID); err != nil {
		return false, fmt.Errorf("renumber cards: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete tx: %w", err)
	}
	return true, nil
}

// ApplyCardOrder rewrites every card's rank to its position in orderedIDs
// (rank = index + 1) and bumps updated_at, atomically.
func (s *PostgresStore) ApplyCardOrder(ctx context.Context, boardID string, orderedIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for position, cardID := range orderedIDs {
		if _, err := tx.ExecContext(ctx, `
			UPDATE cards SET rank=$3, updated_at=NOW()
			WHERE id=$1 AND board_id=$2
		`, cardID, boardID, position+1); err != nil {
			return fmt.Errorf("apply card order: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder tx: %w", err)
	}
	return nil
}

// --- Snapshots ---

func (s *PostgresStore) InsertSnapshot(ctx context.Context, item Snapshot) error {
	rankingsRaw, err := json.Marshal(item.Rankings)
	if err != nil {
		return fmt.Errorf("marshal snapshot rankings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, board_id, episode, label, notes, rankings_json)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	`, item.ID, item.BoardID, item.Episode, item.Label, item.Notes, string(rankingsRaw))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, boardID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, board_id, episode, label, notes, COALESCE(rankings_json::text, '[]'), created_at
		FROM snapshots
		WHERE board_id=$1
		ORDER BY episode ASC, created_at ASC
	`, boardID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	items := make([]Snapshot, 0)
	for rows.Next() {
		var item Snapshot
		var rankingsRaw string
		if err := rows.Scan(&item.ID, &item.BoardID, &item.Episode, &item.Label, &item.Notes, &rankingsRaw, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(rankingsRaw), &item.Rankings); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot rankings: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, snapshotID string) (Snapshot, error) {
	var item Snapshot
	var rankingsRaw string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, board_id, episode, label, notes, COALESCE(rankings_json::text, '[]'), created_at
		FROM snapshots WHERE id=$1
	`, snapshotID).Scan(&item.ID, &item.BoardID, &item.Episode, &item.Label, &item.Notes, &rankingsRaw, &item.CreatedAt)
	if err != nil {
		return Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(rankingsRaw), &item.Rankings); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot rankings: %w", err)
	}
	return item, nil
}

// NextEpisode returns 1 plus the highest episode captured for the board,
// or 1 when the board has no snapshots yet.
func (s *PostgresStore) NextEpisode(ctx context.Context, boardID string) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(episode), 0) + 1 FROM snapshots WHERE board_id=$1
	`, boardID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next episode: %w", err)
	}
	return next, nil
}

// --- Templates ---

func (s *PostgresStore) GetTemplate(ctx context.Context, templateID string) (Template, error) {
	var item Template
	var itemsRaw string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(items_json::text, '[]'), created_at
		FROM templates WHERE id=$1
	`, templateID).Scan(&item.ID, &item.Name, &itemsRaw, &item.CreatedAt)
	if err != nil {
		return Template{}, err
	}
	if err := json.Unmarshal([]byte(itemsRaw), &item.Items); err != nil {
		return Template{}, fmt.Errorf("unmarshal template items: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(items_json::text, '[]'), created_at
		FROM templates ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	items := make([]Template, 0)
	for rows.Next() {
		var item Template
		var itemsRaw string
		if err := rows.Scan(&item.ID, &item.Name, &itemsRaw, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if err := json.Unmarshal([]byte(itemsRaw), &item.Items); err != nil {
			return nil, fmt.Errorf("unmarshal template items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertTemplate(ctx context.Context, item Template) error {
	itemsRaw, err := json.Marshal(item.Items)
	if err != nil {
		return fmt.Errorf("marshal template items: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (id, name, items_json)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.Name, string(itemsRaw))
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// --- Friends ---

func (s *PostgresStore) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT friend_id FROM friends WHERE user_id=$1 ORDER BY friend_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend ids: %w", err)
	}
	return ids, nil
}

// AddFriend records a mutual friendship.
func (s *PostgresStore) AddFriend(ctx context.Context, userID, friendID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin friend tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO friends (user_id, friend_id)
			VALUES ($1, $2)
			ON CONFLICT (user_id, friend_id) DO NOTHING
		`, pair[0], pair[1]); err != nil {
			return fmt.Errorf("insert friend: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit friend tx: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
