// Package history derives per-card rank trajectories and baseline-relative
// movement from a board's episode snapshots. Snapshots are immutable once
// captured; everything here is a read-only fold over them.
package history

import (
	"sort"
	"strconv"
	"strings"
)

// Card is the live-card shape the derivations need.
type Card struct {
	ID   string
	Name string
	Rank int
}

// RankingEntry is one frozen row inside a snapshot.
type RankingEntry struct {
	CardID   string
	CardName string
	Rank     int
	ThumbRef string
}

// Snapshot is one captured episode of a board's ranking.
type Snapshot struct {
	Episode  int
	Label    string
	Rankings []RankingEntry
}

// Point is one trajectory sample. Rank is nil when the card was absent
// from that episode's snapshot.
type Point struct {
	Episode int
	Rank    *int
}

type Trajectory struct {
	CardID   string
	CardName string
	Points   []Point
	Summary  string
}

// Movement describes how one card moved relative to a baseline snapshot.
// Positive movement means the card improved to a numerically lower rank.
// Removed cards carry CurrentRank -1, which is never a real rank.
type Movement struct {
	CardID       string
	CardName     string
	CurrentRank  int
	BaselineRank *int
	Movement     *int
	IsNew        bool
	IsRemoved    bool
}

const RemovedRank = -1

// CardTrajectory returns the rank of cardID across every snapshot in
// ascending episode order. Trajectories exist only for current cards: the
// second return is false when cardID is not among cards.
func CardTrajectory(cards []Card, snapshots []Snapshot, cardID string) (Trajectory, bool) {
	var card *Card
	for i := range cards {
		if cards[i].ID == cardID {
			card = &cards[i]
			break
		}
	}
	if card == nil {
		return Trajectory{}, false
	}
	return buildTrajectory(*card, byEpisode(snapshots)), true
}

// AllTrajectories returns a trajectory per current card, in the order the
// cards were given (not re-sorted by rank).
func AllTrajectories(cards []Card, snapshots []Snapshot) []Trajectory {
	ordered := byEpisode(snapshots)
	trajectories := make([]Trajectory, 0, len(cards))
	for _, card := range cards {
		trajectories = append(trajectories, buildTrajectory(card, ordered))
	}
	return trajectories
}

// Movements compares the current cards against a baseline snapshot.
// A nil baseline yields one entry per card with no movement and no isNew
// marker. Cards in the baseline but gone from the current list are
// appended after the current cards with IsRemoved set.
func Movements(current []Card, baseline *Snapshot) []Movement {
	ordered := make([]Card, len(current))
	copy(ordered, current)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

	var baselineRankByID map[string]int
	if baseline != nil {
		baselineRankByID = make(map[string]int, len(baseline.Rankings))
		for _, entry := range baseline.Rankings {
			baselineRankByID[entry.CardID] = entry.Rank
		}
	}

	movements := make([]Movement, 0, len(ordered))
	currentIDs := make(map[string]struct{}, len(ordered))
	for _, card := range ordered {
		currentIDs[card.ID] = struct{}{}
		entry := Movement{
			CardID:      card.ID,
			CardName:    card.Name,
			CurrentRank: card.Rank,
		}
		if baseline != nil {
			if baselineRank, ok := baselineRankByID[card.ID]; ok {
				delta := baselineRank - card.Rank
				entry.BaselineRank = &baselineRank
				entry.Movement = &delta
			} else {
				entry.IsNew = true
			}
		}
		movements = append(movements, entry)
	}

	if baseline != nil {
		for _, frozen := range baseline.Rankings {
			if _, stillHere := currentIDs[frozen.CardID]; stillHere {
				continue
			}
			baselineRank := frozen.Rank
			movements = append(movements, Movement{
				CardID:       frozen.CardID,
				CardName:     frozen.CardName,
				CurrentRank:  RemovedRank,
				BaselineRank: &baselineRank,
				IsRemoved:    true,
			})
		}
	}
	return movements
}

func buildTrajectory(card Card, snapshots []Snapshot) Trajectory {
	points := make([]Point, 0, len(snapshots))
	appeared := false
	for _, snapshot := range snapshots {
		var rank *int
		for _, entry := range snapshot.Rankings {
			if entry.CardID == card.ID {
				value := entry.Rank
				rank = &value
				appeared = true
				break
			}
		}
		points = append(points, Point{Episode: snapshot.Episode, Rank: rank})
	}

	summary := "New"
	if appeared {
		parts := make([]string, 0, len(points))
		for _, point := range points {
			if point.Rank == nil {
				parts = append(parts, "-")
				continue
			}
			parts = append(parts, strconv.Itoa(*point.Rank))
		}
		summary = strings.Join(parts, "→")
	}

	return Trajectory{
		CardID:   card.ID,
		CardName: card.Name,
		Points:   points,
		Summary:  summary,
	}
}

func byEpisode(snapshots []Snapshot) []Snapshot {
	ordered := make([]Snapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Episode < ordered[j].Episode })
	return ordered
}
