package seed

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"schoolevents/internal/school"
)

type fixedEvent struct {
	title       string
	year        int
	month       time.Month
	day         int
	hour, mins  int
	description string
}

func (f fixedEvent) event(loc *time.Location) school.Event {
	return school.Event{
		Title:       f.title,
		Date:        time.Date(f.year, f.month, f.day, f.hour, f.mins, 0, 0, loc),
		Description: f.description,
	}
}

var sampleEvents = []fixedEvent{
	{"School Christmas Party", 2025, time.December, 20, 18, 0, "Annual Christmas celebration with music, food, and fun activities."},
	{"Science Fair", 2025, time.November, 15, 13, 0, "Students present their science projects. Prizes for best projects!"},
	{"Sports Day", 2025, time.October, 25, 9, 0, "Annual sports competition with various athletic events and team games."},
}

var sampleStudents = []string{
	"Anna Novotná", "Jan Svoboda", "Marie Dvořáková", "Petr Novák", "Tereza Černá",
	"Tomáš Procházka", "Lucie Kučerová", "Jakub Veselý", "Karolína Horáková", "David Král",
}

// SampleData adds the demo events and students, then registers every student
// for every event with probability 0.7 and marks attendance with 0.8.
func (s *Seeder) SampleData(ctx context.Context, rng *rand.Rand) (Report, error) {
	return s.run(ctx, "sample", func(tx *school.Repository, rep *Report) error {
		for _, f := range sampleEvents {
			if _, err := tx.CreateEvent(ctx, f.event(s.loc)); err != nil {
				return err
			}
			rep.Events++
		}
		n, err := s.ensureStudents(ctx, tx, sampleStudents)
		if err != nil {
			return err
		}
		rep.Students = n

		students, err := tx.ListStudents(ctx)
		if err != nil {
			return err
		}
		events, err := tx.ListEvents(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		for _, st := range students {
			for _, e := range events {
				if rng.Float64() >= 0.7 {
					continue
				}
				reg := school.Registration{
					UserID:       st.ID,
					EventID:      e.ID,
					Attended:     rng.Float64() < 0.8,
					RegisteredAt: now.Add(-days(between(rng, 1, 30))),
				}
				if err := register(ctx, tx, reg, rep); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

var previousEvents = []fixedEvent{
	{"Spring Concert 2025", 2025, time.May, 15, 17, 30, "Annual spring concert featuring student performances in choir and instrumental music."},
	{"Math Olympics", 2025, time.April, 20, 9, 0, "Mathematics competition with challenging problems and puzzles."},
	{"Career Day", 2025, time.March, 12, 10, 0, "Professional speakers sharing career insights and opportunities."},
	{"Art Exhibition", 2025, time.February, 28, 14, 0, "Showcase of student artwork from various mediums and styles."},
	{"Winter Sports Tournament", 2025, time.January, 25, 8, 30, "Indoor sports competition including basketball and volleyball."},
	{"Literature Festival", 2024, time.December, 10, 13, 0, "Celebration of reading and writing with author visits and workshops."},
}

var previousStudents = []string{
	"Eva Malá", "Martin Horák", "Zuzana Šimková",
	"Filip Kovář", "Nina Benešová", "Ondřej Marek",
	"Klára Říhová", "Adam Tichý", "Barbora Vávrová",
	"Daniel Pospíšil", "Sofie Marková", "Matěj Kříž",
}

// turnout returns how many students to sample for a past event and how
// likely each of them attended.
func turnout(rng *rand.Rand, title string) (int, float64) {
	attend := 0.85
	if strings.Contains(title, "Olympics") {
		attend = 0.75
	}
	switch {
	case strings.Contains(title, "Concert"), strings.Contains(title, "Exhibition"):
		return between(rng, 15, 20), attend
	case strings.Contains(title, "Olympics"), strings.Contains(title, "Tournament"):
		return between(rng, 8, 12), attend
	default:
		return between(rng, 10, 15), attend
	}
}

// PreviousData adds a history of past events. The 2025 year floor applies to
// admin edits only, so history may predate it. When no students exist a
// roster is created first.
func (s *Seeder) PreviousData(ctx context.Context, rng *rand.Rand) (Report, error) {
	return s.run(ctx, "previous", func(tx *school.Repository, rep *Report) error {
		var created []school.Event
		for _, f := range previousEvents {
			e, err := tx.CreateEvent(ctx, f.event(s.loc))
			if err != nil {
				return err
			}
			created = append(created, e)
			rep.Events++
		}

		students, err := tx.ListStudents(ctx)
		if err != nil {
			return err
		}
		if len(students) == 0 {
			if rep.Students, err = s.ensureStudents(ctx, tx, previousStudents); err != nil {
				return err
			}
			if students, err = tx.ListStudents(ctx); err != nil {
				return err
			}
		}

		for _, e := range created {
			want, attend := turnout(rng, e.Title)
			want = min(want, len(students))
			for _, i := range rng.Perm(len(students))[:want] {
				reg := school.Registration{
					UserID:       students[i].ID,
					EventID:      e.ID,
					Attended:     rng.Float64() < attend,
					RegisteredAt: e.Date.Add(-days(between(rng, 5, 20))),
				}
				if err := register(ctx, tx, reg, rep); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

var upcomingEvents = []struct{ title, description string }{
	{"Programovací soutěž", "Soutěž v programování pro všechny ročníky. Tým 3-4 lidí."},
	{"Sportovní den", "Den plný sportovních aktivit - fotbal, volejbal, basketbal."},
	{"Vánoční besídka", "Tradiční vánoční setkání s programem a občerstvením."},
	{"Exkurze do IT firmy", "Návštěva moderní IT firmy s prezentací a prohlídkou."},
	{"Hackathon 24h", "24hodinový hackathon zaměřený na webové aplikace."},
	{"Den otevřených dveří", "Prezentace školy pro budoucí studenty a jejich rodiče."},
	{"Přednáška o AI", "Přednáška odborníka z oblasti umělé inteligence."},
	{"Turnaj v stolním tenise", "Školní turnaj v ping pongu, přihlášky na místě."},
	{"Workshop 3D tisku", "Praktický workshop o 3D modelování a tisku."},
	{"Filmový večer", "Promítání sci-fi filmů s následnou diskuzí."},
}

// DefaultGenerated is how many events GenerateEvents adds when n <= 0.
var DefaultGenerated = len(upcomingEvents)

var quarterHours = []int{0, 15, 30, 45}

// GenerateEvents adds n upcoming events 5 to 90 days from now, starting
// between 8:00 and 17:45 on a quarter hour.
func (s *Seeder) GenerateEvents(ctx context.Context, rng *rand.Rand, n int) (Report, error) {
	if n <= 0 {
		n = DefaultGenerated
	}
	return s.run(ctx, "generate", func(tx *school.Repository, rep *Report) error {
		today := s.now().In(s.loc)
		for i := 0; i < n; i++ {
			tmpl := upcomingEvents[i%len(upcomingEvents)]
			day := today.AddDate(0, 0, between(rng, 5, 90))
			when := time.Date(day.Year(), day.Month(), day.Day(),
				between(rng, 8, 17), quarterHours[rng.IntN(len(quarterHours))], 0, 0, s.loc)
			if _, err := tx.CreateEvent(ctx, school.Event{
				Title:       tmpl.title,
				Date:        when,
				Description: tmpl.description,
			}); err != nil {
				return err
			}
			rep.Events++
		}
		return nil
	})
}
