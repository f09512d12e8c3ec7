// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package retention

import (
	"regexp"
	"strconv"
	"strings"
)

// TagPrefix is shared by every tag the parser understands.
const TagPrefix = "trimmarr_retain_"

// TagKind identifies which part of a Rule a tag sets.
type TagKind int

const (
	TagKindUnrecognized TagKind = iota
	TagKindSeason
	TagKindEpisode
)

func (k TagKind) String() string {
	switch k {
	case TagKindSeason:
		return "season"
	case TagKindEpisode:
		return "episode"
	default:
		return "unrecognized"
	}
}

// TagRule is a single parsed retention tag.
type TagRule struct {
	Kind  TagKind
	Count int
}

var tagPatterns = []struct {
	re   *regexp.Regexp
	kind TagKind
}{
	{regexp.MustCompile(`(?i)^trimmarr_retain_(\d+)_seasons?$`), TagKindSeason},
	{regexp.MustCompile(`(?i)^trimmarr_retain_(\d+)_episodes?$`), TagKindEpisode},
}

// ParseTag parses a single tag label. Tags with a missing, non-numeric or
// non-positive count are reported as unrecognized.
func ParseTag(label string) TagRule {
	label = strings.TrimSpace(label)
	for _, p := range tagPatterns {
		m := p.re.FindStringSubmatch(label)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return TagRule{Kind: TagKindUnrecognized}
		}
		return TagRule{Kind: p.kind, Count: n}
	}
	return TagRule{Kind: TagKindUnrecognized}
}

// ParseTags builds the retention rule for a series from its tag labels.
//
// Only the first valid tag of each kind is honored, in the order given.
// Returns nil when no tag matches.
func ParseTags(tags []string) *Rule {
	var (
		rule        Rule
		haveSeason  bool
		haveEpisode bool
	)

	for _, tag := range tags {
		parsed := ParseTag(tag)
		switch parsed.Kind {
		case TagKindSeason:
			if !haveSeason {
				rule.SeasonsToKeep = parsed.Count
				haveSeason = true
			}
		case TagKindEpisode:
			if !haveEpisode {
				rule.EpisodesToKeep = parsed.Count
				haveEpisode = true
			}
		}
	}

	if !haveSeason && !haveEpisode {
		return nil
	}
	return &rule
}

// HasRetentionTag reports whether any of the labels yields a rule.
func HasRetentionTag(tags []string) bool {
	return ParseTags(tags) != nil
}
