package school

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Partition splits events around now: scheduled (date >= now) ascending and
// elapsed (date < now) with the most recently elapsed first.
func Partition(events []Event, now time.Time) Partitioned {
	p := Partitioned{Scheduled: []Event{}, Elapsed: []Event{}}
	for _, e := range events {
		if e.Scheduled(now) {
			p.Scheduled = append(p.Scheduled, e)
		} else {
			p.Elapsed = append(p.Elapsed, e)
		}
	}
	sort.SliceStable(p.Scheduled, func(i, j int) bool {
		return p.Scheduled[i].Date.Before(p.Scheduled[j].Date)
	})
	sort.SliceStable(p.Elapsed, func(i, j int) bool {
		return p.Elapsed[i].Date.After(p.Elapsed[j].Date)
	})
	return p
}

// BuildMatrix produces exactly one cell for every (student, event) pair.
// Registrations for users or events outside the given sets are ignored.
func BuildMatrix(students []User, events []Event, regs []Registration) Matrix {
	type pair struct{ user, event int64 }
	byPair := make(map[pair]Registration, len(regs))
	for _, r := range regs {
		byPair[pair{r.UserID, r.EventID}] = r
	}

	m := make(Matrix, len(students))
	for _, s := range students {
		row := make(map[int64]AttendanceCell, len(events))
		for _, e := range events {
			r, ok := byPair[pair{s.ID, e.ID}]
			if !ok {
				row[e.ID] = AttendanceCell{}
				continue
			}
			id := r.ID
			row[e.ID] = AttendanceCell{Registered: true, Attended: r.Attended, RegistrationID: &id}
		}
		m[s.ID] = row
	}
	return m
}

// MatchesQuery reports whether q is a case-insensitive substring of the
// user's name or handle. An empty query matches everything.
func MatchesQuery(u User, q string) bool {
	q = strings.TrimSpace(q)
	if q == "" {
		return true
	}
	folder := cases.Fold()
	needle := folder.String(q)
	return strings.Contains(folder.String(u.Name), needle) ||
		strings.Contains(folder.String(u.Handle), needle)
}

func filterByQuery(views []RegistrationView, q string) []RegistrationView {
	if strings.TrimSpace(q) == "" {
		return views
	}
	out := make([]RegistrationView, 0, len(views))
	for _, v := range views {
		if MatchesQuery(v.User, q) {
			out = append(out, v)
		}
	}
	return out
}
