// Package guard holds the two pre-submit gates of the registration form: the
// duplicate-registration check and the capacity check. Both fail open on
// backend errors so a transient hiccup never locks out a legitimate team.
package guard

import (
	"context"
	"log/slog"
	"strings"

	"github.com/codelabx/regdesk/internal/kvstore"
)

type ContactLookup interface {
	ExistsByContact(ctx context.Context, flow, email, phone string) (bool, error)
}

type DuplicateGuard struct {
	flow    string
	lookup  ContactLookup
	markers kvstore.Store
	log     *slog.Logger
}

func NewDuplicateGuard(flow string, lookup ContactLookup, markers kvstore.Store, log *slog.Logger) *DuplicateGuard {
	return &DuplicateGuard{
		flow:    flow,
		lookup:  lookup,
		markers: markers,
		log:     log,
	}
}

func emailKey(flow, email string) string {
	return "registered:" + flow + ":email:" + strings.ToLower(strings.TrimSpace(email))
}

func phoneKey(flow, phone string) string {
	return "registered:" + flow + ":phone:" + strings.TrimSpace(phone)
}

// MarkerExists is the on-mount short-circuit: it consults only the persisted
// markers, never the network. A marker read failure counts as no marker.
func (g *DuplicateGuard) MarkerExists(ctx context.Context, email, phone string) bool {
	if email != "" {
		if _, ok, err := g.markers.Get(ctx, emailKey(g.flow, email)); err == nil && ok {
			return true
		} else if err != nil {
			g.log.Warn("marker read failed", "err", err)
		}
	}

	if phone != "" {
		if _, ok, err := g.markers.Get(ctx, phoneKey(g.flow, phone)); err == nil && ok {
			return true
		} else if err != nil {
			g.log.Warn("marker read failed", "err", err)
		}
	}

	return false
}

// CheckBackend asks the backend whether either contact value is already
// registered. On a hit it persists markers so future mounts short-circuit
// without a network call. Lookup errors are logged and treated as "not a
// duplicate" so a transient failure never blocks a new registration.
func (g *DuplicateGuard) CheckBackend(ctx context.Context, email, phone string) bool {
	if email == "" && phone == "" {
		return false
	}

	exists, err := g.lookup.ExistsByContact(ctx, g.flow, email, phone)

	if err != nil {
		g.log.Warn("duplicate lookup failed, failing open", "err", err)
		return false
	}

	if exists {
		g.WriteMarkers(ctx, email, phone)
	}

	return exists
}

// WriteMarkers persists the already-registered markers. Write failures only
// cost a future network round trip, so they are logged and swallowed.
func (g *DuplicateGuard) WriteMarkers(ctx context.Context, email, phone string) {
	if email != "" {
		if err := g.markers.Set(ctx, emailKey(g.flow, email), email); err != nil {
			g.log.Warn("marker write failed", "key", "email", "err", err)
		}
	}

	if phone != "" {
		if err := g.markers.Set(ctx, phoneKey(g.flow, phone), phone); err != nil {
			g.log.Warn("marker write failed", "key", "phone", "err", err)
		}
	}
}
