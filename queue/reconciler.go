package queue

import (
	"fmt"
	"time"

	"github.com/chauveaul/jukebox-terminal/daemon"
	"github.com/chauveaul/jukebox-terminal/transcript"
)

// Reconciler turns snapshots arriving from polling and push refetches into
// at most one announcement per distinct queue content.
type Reconciler struct {
	cache       *Cache
	location    *time.Location
	fingerprint string
	primed      bool
}

func NewReconciler(cache *Cache) *Reconciler {
	return &Reconciler{cache: cache, location: time.Local}
}

// SetLocation sets the zone event timestamps are rendered in.
func (r *Reconciler) SetLocation(loc *time.Location) {
	r.location = loc
}

// Prime records s as the baseline without announcing it. Only the initial
// load and turning live mode on set a baseline.
func (r *Reconciler) Prime(s Snapshot) {
	r.fingerprint = s.Fingerprint()
	r.primed = true
}

// Reconcile returns the "queue updated" block for s, or nil when s matches
// the last announced or baseline snapshot. An unprimed reconciler primes silently.
func (r *Reconciler) Reconcile(s Snapshot) []transcript.Line {
	fp := s.Fingerprint()
	if !r.primed || fp == r.fingerprint {
		r.fingerprint = fp
		r.primed = true
		return nil
	}
	r.fingerprint = fp

	lines := []transcript.Line{transcript.InfoLine("🔄 Queue updated!")}
	if len(s) == 0 {
		lines = append(lines, transcript.PlainLine("  📭 Queue is now empty"))
	} else {
		for _, item := range s {
			lines = append(lines, transcript.PlainLine("  "+r.cache.ItemLine(item)))
		}
	}
	return append(lines, transcript.Blank())
}

// EventLines announces a push event. It does not depend on whether the
// queue content changed.
func (r *Reconciler) EventLines(ev daemon.QueueUpdateEvent) []transcript.Line {
	song := ev.SongID
	if song == "" {
		song = "unknown"
	}
	user := ev.User
	if user == "" {
		user = "anonymous"
	}
	when := "unknown"
	if t, ok := ev.Time(); ok {
		when = t.In(r.location).Format("15:04:05")
	}

	return []transcript.Line{
		transcript.InfoLine(fmt.Sprintf("🔔 Real-time update: %s", ev.Type)),
		transcript.PlainLine(fmt.Sprintf("   Song: %s, User: %s", song, user)),
		transcript.PlainLine(fmt.Sprintf("   Time: %s", when)),
		transcript.Blank(),
	}
}
