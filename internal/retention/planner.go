// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package retention

// Plan is the aggregated outcome of evaluating many series.
// It is rebuilt on every invocation and never persisted.
type Plan struct {
	// SeriesIDs lists the planned series in input order.
	SeriesIDs []int              `json:"seriesIds"`
	PerSeries map[int][]Decision `json:"perSeries"`
	Rules     map[int]Rule       `json:"rules"`
	Titles    map[int]string     `json:"titles"`

	FilesToDeleteCount       int `json:"filesToDeleteCount"`
	EpisodesToUnmonitorCount int `json:"episodesToUnmonitorCount"`
}

// RuleOverride replaces tag-derived rules for every selected series.
type RuleOverride struct {
	Rule Rule
}

// PlanOptions tweaks BuildPlan.
type PlanOptions struct {
	// Selected restricts planning to these series ids. Nil selects every series.
	Selected map[int]struct{}
	Override *RuleOverride
}

// NewSelection builds a selection set from a list of ids.
func NewSelection(ids []int) map[int]struct{} {
	selected := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		selected[id] = struct{}{}
	}
	return selected
}

// BuildPlan evaluates every selected series. Series without a rule contribute
// an empty decision list. The inputs are never modified.
func BuildPlan(series []SeriesSnapshot, opts PlanOptions) *Plan {
	plan := &Plan{
		SeriesIDs: make([]int, 0, len(series)),
		PerSeries: make(map[int][]Decision, len(series)),
		Rules:     make(map[int]Rule, len(series)),
		Titles:    make(map[int]string, len(series)),
	}

	for _, s := range series {
		if opts.Selected != nil {
			if _, ok := opts.Selected[s.ID]; !ok {
				continue
			}
		}
		if _, seen := plan.PerSeries[s.ID]; seen {
			continue
		}

		plan.SeriesIDs = append(plan.SeriesIDs, s.ID)
		plan.Titles[s.ID] = s.Title

		rule := ruleFor(s, opts.Override)
		if rule == nil {
			plan.PerSeries[s.ID] = []Decision{}
			continue
		}

		plan.Rules[s.ID] = *rule
		plan.PerSeries[s.ID] = Evaluate(*rule, s.Seasons)
	}

	plan.recount()
	return plan
}

func ruleFor(s SeriesSnapshot, override *RuleOverride) *Rule {
	if override != nil {
		if !override.Rule.Active() {
			return nil
		}
		r := override.Rule
		return &r
	}
	return ParseTags(s.Tags)
}

func (p *Plan) recount() {
	p.FilesToDeleteCount = 0
	p.EpisodesToUnmonitorCount = 0
	for _, decisions := range p.PerSeries {
		files, episodes := countActions(decisions)
		p.FilesToDeleteCount += files
		p.EpisodesToUnmonitorCount += episodes
	}
}

// SeriesCounts returns the number of files to delete and episodes to unmonitor for one series.
func (p *Plan) SeriesCounts(seriesID int) (filesToDelete, episodesToUnmonitor int) {
	return countActions(p.PerSeries[seriesID])
}

// Removals returns the non-keep decisions of a series in plan order.
func (p *Plan) Removals(seriesID int) []Decision {
	var out []Decision
	for _, d := range p.PerSeries[seriesID] {
		if d.Removes() {
			out = append(out, d)
		}
	}
	return out
}

// ActionableSeries counts series with at least one non-keep decision.
func (p *Plan) ActionableSeries() int {
	n := 0
	for _, id := range p.SeriesIDs {
		if len(p.Removals(id)) > 0 {
			n++
		}
	}
	return n
}

func countActions(decisions []Decision) (filesToDelete, episodesToUnmonitor int) {
	for _, d := range decisions {
		switch d.Action {
		case ActionUnmonitorAndDelete:
			filesToDelete++
			episodesToUnmonitor++
		case ActionUnmonitorOnly:
			episodesToUnmonitor++
		}
	}
	return filesToDelete, episodesToUnmonitor
}
