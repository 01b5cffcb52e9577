package ws

import (
	"net/url"
	"slices"
	"strings"

	"github.com/jmylchreest/skyrad/internal/events"
)

// Subscription selects which events a client receives. Empty fields match
// everything.
type Subscription struct {
	Types []events.EventType
	Boxes []string
}

// ParseSubscription reads the "types" and "box" query parameters. Both take
// comma separated lists and "box" may be repeated:
//
//	/api/v1/ws?types=channel.&box=bench,spare
func ParseSubscription(q url.Values) (Subscription, error) {
	types, err := events.ParseEventTypes(q.Get("types"))
	if err != nil {
		return Subscription{}, err
	}
	sub := Subscription{Types: types}
	for _, v := range q["box"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" && !slices.Contains(sub.Boxes, id) {
				sub.Boxes = append(sub.Boxes, id)
			}
		}
	}
	return sub, nil
}

// Wants reports whether an event of type t about box should be sent. Events
// that name no box pass the box filter.
func (s Subscription) Wants(t events.EventType, box string) bool {
	if !events.Matches(s.Types, t) {
		return false
	}
	return len(s.Boxes) == 0 || box == "" || slices.Contains(s.Boxes, box)
}
