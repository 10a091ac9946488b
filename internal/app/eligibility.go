package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/HurleySk/robo-birder/internal/domain/detection"
	"github.com/HurleySk/robo-birder/internal/infra/config"
)

// DecisionKind is the outcome of the eligibility check.
type DecisionKind int

const (
	NoMatch DecisionKind = iota
	NewSpeciesMatch
	RealtimeMatch
)

func (k DecisionKind) String() string {
	switch k {
	case NewSpeciesMatch:
		return "new_species"
	case RealtimeMatch:
		return "realtime"
	default:
		return "no_match"
	}
}

// Decision tells the caller which alert, if any, a detection deserves.
type Decision struct {
	Kind   DecisionKind
	Reason string // Only set for NewSpeciesMatch
}

// CooldownChecker answers whether a species was notified recently.
type CooldownChecker interface {
	IsOnCooldown(species string, cooldownMinutes int, now time.Time) bool
}

// EligibilityEngine decides whether a detection is a new species, a realtime
// alert, or neither. It holds no state of its own.
type EligibilityEngine struct {
	cooldowns CooldownChecker
	now       func() time.Time
}

func NewEligibilityEngine(cooldowns CooldownChecker, now func() time.Time) *EligibilityEngine {
	if now == nil {
		now = time.Now
	}
	return &EligibilityEngine{cooldowns: cooldowns, now: now}
}

// Decide runs the new-species check first and falls back to the realtime check.
// History query failures are returned; the detection is then not decided.
func (e *EligibilityEngine) Decide(ctx context.Context, d *detection.Detection, rules config.Rules, history detection.History) (Decision, error) {
	reason, err := e.newSpeciesReason(ctx, d, rules, history)
	if err != nil {
		return Decision{}, err
	}
	if reason != "" {
		return Decision{Kind: NewSpeciesMatch, Reason: reason}, nil
	}
	if e.realtimeEligible(d, rules.Realtime) {
		return Decision{Kind: RealtimeMatch}, nil
	}
	return Decision{Kind: NoMatch}, nil
}

func (e *EligibilityEngine) newSpeciesReason(ctx context.Context, d *detection.Detection, rules config.Rules, history detection.History) (string, error) {
	cfg := rules.NewSpecies
	if !cfg.Enabled || d.Confidence < cfg.MinConfidence {
		return "", nil
	}
	now := e.now()

	// The detection is already stored, so being the only row means first ever.
	if cfg.NotifyOn.FirstEver {
		count, err := history.SpeciesCount(ctx, d.ScientificName)
		if err != nil {
			return "", err
		}
		if count == 1 {
			return "First ever sighting!", nil
		}
	}

	if cfg.NotifyOn.FirstOfYear {
		yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		count, err := history.SpeciesCountSince(ctx, d.ScientificName, yearStart, d.ID)
		if err != nil {
			return "", err
		}
		if count == 0 {
			return fmt.Sprintf("First sighting of %d!", now.Year()), nil
		}
	}

	if cfg.NotifyOn.FirstOfSeason {
		season, seasonStart := rules.Seasons.Start(now)
		count, err := history.SpeciesCountSince(ctx, d.ScientificName, seasonStart, d.ID)
		if err != nil {
			return "", err
		}
		if count == 0 {
			return fmt.Sprintf("First sighting of %s!", config.Title(season)), nil
		}
	}

	return "", nil
}

func (e *EligibilityEngine) realtimeEligible(d *detection.Detection, cfg config.RealtimeConfig) bool {
	if !cfg.Enabled || d.Confidence < cfg.MinConfidence {
		return false
	}
	if len(cfg.SpeciesWhitelist) > 0 && !slices.ContainsFunc(cfg.SpeciesWhitelist, d.Matches) {
		return false
	}
	if slices.ContainsFunc(cfg.SpeciesBlacklist, d.Matches) {
		return false
	}
	return !e.cooldowns.IsOnCooldown(d.ScientificName, cfg.CooldownMinutes, e.now())
}
