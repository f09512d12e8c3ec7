// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package retention

import (
	"sort"
)

type seasonState int

const (
	seasonKeep seasonState = iota
	seasonBoundary
	seasonRemove
)

// Evaluate computes one decision per episode for the given rule.
//
// Seasons numbered 0 and seasons without any file never count towards
// retention and are always kept. Among the remaining (eligible) seasons,
// newest first, the first SeasonsToKeep are kept in full. The next one is the
// boundary season: with EpisodesToKeep set, its newest episodes by air date
// are kept and the rest are removal candidates; without it, the boundary
// season is removed like every older eligible season.
//
// Decisions are returned ordered by season number, then upstream episode order.
func Evaluate(rule Rule, seasons []SeasonSnapshot) []Decision {
	decisions := make([]Decision, 0)
	if len(seasons) == 0 {
		return decisions
	}

	ordered := make([]SeasonSnapshot, len(seasons))
	copy(ordered, seasons)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SeasonNumber < ordered[j].SeasonNumber
	})

	states := planSeasons(rule, ordered)

	keptInBoundary := make(map[int]struct{})
	for _, season := range ordered {
		if states[season.SeasonNumber] == seasonBoundary {
			for id := range keepNewestEpisodes(season.Episodes, rule.EpisodesToKeep) {
				keptInBoundary[id] = struct{}{}
			}
		}
	}

	for _, season := range ordered {
		state := states[season.SeasonNumber]
		for _, ep := range season.Episodes {
			candidate := false
			switch state {
			case seasonRemove:
				candidate = true
			case seasonBoundary:
				_, kept := keptInBoundary[ep.EpisodeID]
				candidate = !kept
			}

			action := ActionKeep
			if candidate {
				action = removalAction(ep)
			}

			decisions = append(decisions, Decision{
				EpisodeID:     ep.EpisodeID,
				SeasonNumber:  season.SeasonNumber,
				EpisodeNumber: ep.EpisodeNumber,
				Title:         ep.Title,
				EpisodeFileID: ep.EpisodeFileID,
				Action:        action,
			})
		}
	}

	protectSharedFiles(ordered, decisions)

	return decisions
}

// planSeasons assigns a retention state to every season number.
func planSeasons(rule Rule, ordered []SeasonSnapshot) map[int]seasonState {
	states := make(map[int]seasonState, len(ordered))
	for _, season := range ordered {
		states[season.SeasonNumber] = seasonKeep
	}

	if !rule.Active() {
		return states
	}

	eligible := make([]int, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		if ordered[i].SeasonNumber >= 1 && ordered[i].HasAnyFile() {
			eligible = append(eligible, ordered[i].SeasonNumber)
		}
	}

	boundary := rule.SeasonsToKeep
	if boundary >= len(eligible) {
		return states
	}

	for i, number := range eligible[boundary:] {
		if i == 0 && rule.EpisodesToKeep > 0 {
			states[number] = seasonBoundary
			continue
		}
		states[number] = seasonRemove
	}

	return states
}

// keepNewestEpisodes returns the ids of the boundary episodes that survive.
//
// Episodes without an air date are always kept. Dated episodes are ranked by
// air date descending with a stable sort, so equal dates keep upstream order,
// and exactly the first n survive.
func keepNewestEpisodes(episodes []EpisodeSnapshot, n int) map[int]struct{} {
	kept := make(map[int]struct{}, n)

	dated := make([]EpisodeSnapshot, 0, len(episodes))
	for _, ep := range episodes {
		if ep.AirDate == nil {
			kept[ep.EpisodeID] = struct{}{}
			continue
		}
		dated = append(dated, ep)
	}

	sort.SliceStable(dated, func(i, j int) bool {
		return dated[i].AirDate.After(*dated[j].AirDate)
	})

	for i, ep := range dated {
		if i >= n {
			break
		}
		kept[ep.EpisodeID] = struct{}{}
	}

	return kept
}

func removalAction(ep EpisodeSnapshot) Action {
	switch {
	case ep.HasFile:
		return ActionUnmonitorAndDelete
	case ep.Monitored:
		return ActionUnmonitorOnly
	default:
		return ActionKeep
	}
}

// protectSharedFiles stops a multi-episode file from being deleted when one
// of the episodes it contains is kept.
func protectSharedFiles(ordered []SeasonSnapshot, decisions []Decision) {
	keptFiles := make(map[int]struct{})
	monitored := make(map[int]bool)
	for _, season := range ordered {
		for _, ep := range season.Episodes {
			monitored[ep.EpisodeID] = ep.Monitored
		}
	}

	for _, d := range decisions {
		if d.Action == ActionKeep && d.EpisodeFileID != 0 {
			keptFiles[d.EpisodeFileID] = struct{}{}
		}
	}
	if len(keptFiles) == 0 {
		return
	}

	for i := range decisions {
		d := &decisions[i]
		if d.Action != ActionUnmonitorAndDelete {
			continue
		}
		if _, shared := keptFiles[d.EpisodeFileID]; !shared {
			continue
		}
		if monitored[d.EpisodeID] {
			d.Action = ActionUnmonitorOnly
		} else {
			d.Action = ActionKeep
		}
	}
}
