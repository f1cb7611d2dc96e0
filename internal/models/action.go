// internal/models/action.go
package models

import (
	"fmt"
	"strings"
)

// BuildIDPrefix distinguishes build IDs from card IDs in mixed target lists.
const BuildIDPrefix = "build-"

// Action is a closed union: exactly Capture, BuildAction, or Trail.
// Payloads are validated when decoded from the wire, not duck-typed later.
type Action interface {
	ActionType() string
	HandCard() string
}

// Capture removes exactly the referenced builds and table cards. Target
// sets are resolved by ID; nothing else on the table is touched.
type Capture struct {
	HandCardID         string
	TargetBuildIDs     []string
	TargetTableCardIDs []string
}

func (a Capture) ActionType() string { return "capture" }
func (a Capture) HandCard() string   { return a.HandCardID }

// BuildAction declares or extends a build at BuildValue. TargetBuildID is
// empty when creating a fresh build.
type BuildAction struct {
	HandCardID           string
	ConsumedTableCardIDs []string
	BuildValue           int
	TargetBuildID        string
}

func (a BuildAction) ActionType() string { return "build" }
func (a BuildAction) HandCard() string   { return a.HandCardID }

// Trail places the hand card on the table with no capture.
type Trail struct {
	HandCardID string
}

func (a Trail) ActionType() string { return "trail" }
func (a Trail) HandCard() string   { return a.HandCardID }

// WireAction is the JSON shape shared by the REST play-card endpoint and
// the WebSocket play_card message.
type WireAction struct {
	ActionID    string   `json:"action_id"`
	Action      string   `json:"action"`
	CardID      string   `json:"card_id"`
	TargetCards []string `json:"target_cards,omitempty"`
	BuildValue  int      `json:"build_value,omitempty"`
}

// Decode validates the wire payload and returns the typed action. Target
// lists may mix build IDs (prefix "build-") and card IDs; Decode splits
// them so the engine never has to guess. A repeated ID is rejected here:
// counting the same card twice would corrupt sum validation.
func (w WireAction) Decode() (Action, error) {
	if w.CardID == "" {
		return nil, fmt.Errorf("missing card_id")
	}
	seen := make(map[string]bool, len(w.TargetCards))
	for _, t := range w.TargetCards {
		if seen[t] {
			return nil, fmt.Errorf("duplicate target %s", t)
		}
		seen[t] = true
	}
	switch w.Action {
	case "capture":
		if len(w.TargetCards) == 0 {
			return nil, fmt.Errorf("capture requires at least one target")
		}
		var buildIDs, cardIDs []string
		for _, t := range w.TargetCards {
			if strings.HasPrefix(t, BuildIDPrefix) {
				buildIDs = append(buildIDs, t)
			} else {
				cardIDs = append(cardIDs, t)
			}
		}
		return Capture{HandCardID: w.CardID, TargetBuildIDs: buildIDs, TargetTableCardIDs: cardIDs}, nil
	case "build":
		if w.BuildValue <= 0 {
			return nil, fmt.Errorf("build requires a positive build_value")
		}
		var targetBuild string
		var cardIDs []string
		for _, t := range w.TargetCards {
			if strings.HasPrefix(t, BuildIDPrefix) {
				if targetBuild != "" {
					return nil, fmt.Errorf("build may extend at most one existing build")
				}
				targetBuild = t
			} else {
				cardIDs = append(cardIDs, t)
			}
		}
		return BuildAction{
			HandCardID:           w.CardID,
			ConsumedTableCardIDs: cardIDs,
			BuildValue:           w.BuildValue,
			TargetBuildID:        targetBuild,
		}, nil
	case "trail":
		if len(w.TargetCards) > 0 {
			return nil, fmt.Errorf("trail takes no targets")
		}
		return Trail{HandCardID: w.CardID}, nil
	default:
		return nil, fmt.Errorf("unknown action type %q", w.Action)
	}
}
