package service

import (
	"strings"

	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
)

type classificationRule struct {
	substring string
	eventType types.EventType
}

// classificationRules is evaluated in order; the first substring hit wins.
// Anything unmatched is denied.
var classificationRules = []classificationRule{
	{"entry", types.EventEntry},
	{"access_granted", types.EventEntry},
	{"exit", types.EventExit},
}

// ClassifyEventType maps a vendor event-type string onto entry, exit or denied.
func ClassifyEventType(raw string) types.EventType {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, r := range classificationRules {
		if strings.Contains(s, r.substring) {
			return r.eventType
		}
	}
	return types.EventDenied
}
