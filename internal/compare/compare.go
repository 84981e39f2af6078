// Package compare scores how similarly two people ranked the same item set
// and builds an aligned side-by-side view of the two rankings. Items from
// different boards line up through their comparison identity: the shared
// template item id when the card came from a template, the card's own id
// otherwise.
package compare

import (
	"math"
	"sort"
)

// Item is one ranked entry on one side of a comparison. Rank is nil for
// items the side holds but has not ranked.
type Item struct {
	ID       string
	Name     string
	Rank     *int
	ThumbRef string
}

// AlignedItem is one row of the merged comparison view. A nil rank means
// that side does not hold the item at all.
type AlignedItem struct {
	ID          string
	Name        string
	YourRank    *int
	FriendRank  *int
	YourThumb   string
	FriendThumb string
}

// IdentityID resolves a card's comparison identity. Two independently
// edited boards built from the same template compare item-for-item through
// the template item id even though their card ids differ.
func IdentityID(templateItemID, cardID string) string {
	if templateItemID != "" {
		return templateItemID
	}
	return cardID
}

// Agreement returns a 0-100 score for how similarly the two sides ranked
// their common items. The normalizer is the larger ranked-item COUNT of the
// two sides, not the largest rank value; that keeps scores comparable
// across differently sized lists.
func Agreement(yours, friends []Item) int {
	rankedYours := ranked(yours)
	rankedFriends := ranked(friends)
	if len(rankedYours) == 0 || len(rankedFriends) == 0 {
		return 0
	}

	friendRankByID := make(map[string]int, len(rankedFriends))
	for _, item := range rankedFriends {
		friendRankByID[item.ID] = *item.Rank
	}

	normalizer := len(rankedYours)
	if len(rankedFriends) > normalizer {
		normalizer = len(rankedFriends)
	}

	common := 0
	total := 0.0
	for _, item := range rankedYours {
		friendRank, ok := friendRankByID[item.ID]
		if !ok {
			continue
		}
		common++
		distance := math.Abs(float64(*item.Rank - friendRank))
		score := 1 - distance/float64(normalizer)
		if score < 0 {
			score = 0
		}
		total += score
	}
	if common == 0 {
		return 0
	}
	return int(math.Round(100 * total / float64(common)))
}

// Align merges both sides into one row per item in the union. Rows sort by
// the average of both ranks when both sides ranked the item, by the single
// present rank when only one side did, and last otherwise; ties break by id
// so output is deterministic.
func Align(yours, friends []Item) []AlignedItem {
	rows := make([]AlignedItem, 0, len(yours)+len(friends))
	index := make(map[string]int, len(yours)+len(friends))

	for _, item := range yours {
		index[item.ID] = len(rows)
		rows = append(rows, AlignedItem{
			ID:        item.ID,
			Name:      item.Name,
			YourRank:  item.Rank,
			YourThumb: item.ThumbRef,
		})
	}
	for _, item := range friends {
		if at, ok := index[item.ID]; ok {
			rows[at].FriendRank = item.Rank
			rows[at].FriendThumb = item.ThumbRef
			if rows[at].Name == "" {
				rows[at].Name = item.Name
			}
			continue
		}
		index[item.ID] = len(rows)
		rows = append(rows, AlignedItem{
			ID:          item.ID,
			Name:        item.Name,
			FriendRank:  item.Rank,
			FriendThumb: item.ThumbRef,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		leftKey, leftOk := sortKey(rows[i])
		rightKey, rightOk := sortKey(rows[j])
		if leftOk != rightOk {
			return leftOk
		}
		if leftOk && leftKey != rightKey {
			return leftKey < rightKey
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

func sortKey(row AlignedItem) (float64, bool) {
	switch {
	case row.YourRank != nil && row.FriendRank != nil:
		return float64(*row.YourRank+*row.FriendRank) / 2, true
	case row.YourRank != nil:
		return float64(*row.YourRank), true
	case row.FriendRank != nil:
		return float64(*row.FriendRank), true
	default:
		return 0, false
	}
}

func ranked(items []Item) []Item {
	kept := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Rank != nil {
			kept = append(kept, item)
		}
	}
	return kept
}
