// Package seed fills the database with demo and historical data through the
// same repository the web application uses.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"schoolevents/internal/metrics"
	"schoolevents/internal/school"
)

// DefaultStudentPassword is given to every generated student.
const DefaultStudentPassword = "student123"

// Report counts what a run created.
type Report struct {
	Events        int `json:"events"`
	Students      int `json:"students"`
	Registrations int `json:"registrations"`
}

// Seeder runs the generators. Every generator is all-or-nothing.
type Seeder struct {
	repo   *school.Repository
	hasher school.PasswordHasher
	loc    *time.Location
	now    func() time.Time
	log    zerolog.Logger
}

// New creates a Seeder. Fixed event dates are wall-clock times in loc.
func New(repo *school.Repository, hasher school.PasswordHasher, loc *time.Location, log zerolog.Logger) *Seeder {
	if loc == nil {
		loc = time.Local
	}
	return &Seeder{repo: repo, hasher: hasher, loc: loc, now: time.Now, log: log}
}

func (s *Seeder) run(ctx context.Context, kind string, fn func(tx *school.Repository, rep *Report) error) (Report, error) {
	var rep Report
	err := s.repo.WithTx(ctx, func(tx *school.Repository) error {
		rep = Report{}
		return fn(tx, &rep)
	})
	if err != nil {
		metrics.SeedRuns.WithLabelValues(kind, "failure").Inc()
		s.log.Error().Err(err).Str("kind", kind).Msg("seeding rolled back")
		return Report{}, fmt.Errorf("seed %s: %w", kind, err)
	}
	metrics.SeedRuns.WithLabelValues(kind, "success").Inc()
	s.log.Info().Str("kind", kind).
		Int("events", rep.Events).
		Int("students", rep.Students).
		Int("registrations", rep.Registrations).
		Msg("seeding done")
	return rep, nil
}

// EnsureAdmin deletes any user holding handle and recreates it as an admin.
func (s *Seeder) EnsureAdmin(ctx context.Context, handle, password string) (school.User, error) {
	if err := school.ValidateHandle(handle); err != nil {
		return school.User{}, err
	}
	if password == "" {
		return school.User{}, errors.New("admin password is required")
	}
	var admin school.User
	_, err := s.run(ctx, "admin", func(tx *school.Repository, _ *Report) error {
		old, err := tx.UserByHandle(ctx, handle)
		switch {
		case err == nil:
			if err := tx.DeleteUserCascade(ctx, old.ID); err != nil {
				return err
			}
		case !errors.Is(err, school.ErrNotFound):
			return err
		}
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return err
		}
		admin, err = tx.CreateUser(ctx, school.User{Handle: handle, PasswordHash: hash, Role: school.RoleAdmin})
		return err
	})
	if err != nil {
		return school.User{}, err
	}
	return admin, nil
}

// ensureStudents creates the named students that do not exist yet and
// returns how many were created.
func (s *Seeder) ensureStudents(ctx context.Context, tx *school.Repository, names []string) (int, error) {
	created := 0
	for _, name := range names {
		handle := handleFor(name)
		if _, err := tx.UserByHandle(ctx, handle); err == nil {
			continue
		} else if !errors.Is(err, school.ErrNotFound) {
			return created, err
		}
		hash, err := s.hasher.Hash(DefaultStudentPassword)
		if err != nil {
			return created, err
		}
		if _, err := tx.CreateUser(ctx, school.User{
			Handle:       handle,
			PasswordHash: hash,
			Name:         name,
			Role:         school.RoleStudent,
		}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// register inserts one registration. An existing one for the pair is skipped.
func register(ctx context.Context, tx *school.Repository, reg school.Registration, rep *Report) error {
	_, err := tx.CreateRegistration(ctx, reg)
	if errors.Is(err, school.ErrAlreadyRegistered) {
		return nil
	}
	if err != nil {
		return err
	}
	rep.Registrations++
	return nil
}

// handleFor derives a login handle from a full name: lower case, no spaces,
// no diacritics.
func handleFor(name string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(stripMarks, name)
	if err != nil {
		plain = name
	}
	return strings.ToLower(strings.Join(strings.Fields(plain), ""))
}

// between returns a uniform int in [lo, hi].
func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }
