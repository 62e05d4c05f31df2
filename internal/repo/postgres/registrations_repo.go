package postgres

import (
	"context"
	"errors"

	"github.com/codelabx/regdesk/internal/domain/registration"
	"github.com/codelabx/regdesk/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// the backend-defined uniqueness constraint spans leader email, leader phone
// and team name (see schema.sql)
const uniqLeaderContact = "registrations_leader_contact_uniq"

type RegistrationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRegistrationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *RegistrationsRepo {
	return &RegistrationsRepo{
		pool: pool,
		prom: prom,
	}
}

func (repo *RegistrationsRepo) observe(op string, fn func() error) error {
	if repo.prom != nil {
		return repo.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Insert writes one atomic registration row. A unique violation on the leader
// contact constraint surfaces as registration.ErrAlreadyRegistered so callers
// can show the specific message instead of a generic failure.
func (repo *RegistrationsRepo) Insert(ctx context.Context, rec registration.Record) (err error) {
	err = repo.observe("registrations.insert", func() error {
		_, e := repo.pool.Exec(ctx, `
		INSERT INTO registrations
			(id, flow, team_name, college_name, affiliated_university,
			 leader_name, leader_email, leader_phone, alternate_contact,
			 team_size, member_1, member_2, member_3, member_4, member_5,
			 vegetarian_count, project_idea, receipt_url, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, rec.ID, rec.Flow, rec.TeamName, rec.CollegeName, rec.AffiliatedUniversity,
			rec.LeaderName, rec.LeaderEmail, rec.LeaderPhone, rec.AlternateContact,
			rec.TeamSize, rec.Members[0], rec.Members[1], rec.Members[2], rec.Members[3], rec.Members[4],
			rec.VegetarianCount, rec.ProjectIdea, rec.ReceiptURL, rec.CreatedAt)
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == uniqLeaderContact {
			err = registration.ErrAlreadyRegistered
			return
		}
		// any 23505 without the expected constraint name still means a dupe
		if IsUniqueViolation(err) {
			err = registration.ErrAlreadyRegistered
			return
		}
		return
	}

	return
}

// ExistsByContact reports whether any record in the flow matches either the
// leader email or the leader phone. Used by the debounced duplicate check.
func (repo *RegistrationsRepo) ExistsByContact(ctx context.Context, flow, email, phone string) (exists bool, err error) {
	err = repo.observe("registrations.exists_by_contact", func() error {
		return repo.pool.QueryRow(ctx, `SELECT EXISTS(
			SELECT 1 FROM registrations
			WHERE flow = $1 AND (leader_email = $2 OR leader_phone = $3)
		)`, flow, email, phone).Scan(&exists)
	})
	return
}

// CountTeams is the aggregate the capacity guard consults once per mount.
func (repo *RegistrationsRepo) CountTeams(ctx context.Context, flow string) (int, error) {
	op := "registrations.count_teams"
	var total int
	err := repo.observe(op, func() error {
		return repo.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE flow = $1`, flow).Scan(&total)
	})
	return total, err
}

func (repo *RegistrationsRepo) ListByFlow(ctx context.Context, flow string) (recs []registration.Record, err error) {
	var rows pgx.Rows

	err = repo.observe("registrations.list_by_flow", func() error {
		rows, err = repo.pool.Query(ctx, `
	SELECT id, flow, team_name, college_name, affiliated_university,
	       leader_name, leader_email, leader_phone, alternate_contact,
	       team_size, member_1, member_2, member_3, member_4, member_5,
	       vegetarian_count, project_idea, receipt_url, created_at
	FROM registrations
	WHERE flow = $1
	ORDER BY created_at ASC, id ASC
	`, flow)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	recs = make([]registration.Record, 0)

	for rows.Next() {
		var r registration.Record

		e := rows.Scan(&r.ID, &r.Flow, &r.TeamName, &r.CollegeName, &r.AffiliatedUniversity,
			&r.LeaderName, &r.LeaderEmail, &r.LeaderPhone, &r.AlternateContact,
			&r.TeamSize, &r.Members[0], &r.Members[1], &r.Members[2], &r.Members[3], &r.Members[4],
			&r.VegetarianCount, &r.ProjectIdea, &r.ReceiptURL, &r.CreatedAt)

		if e != nil {
			err = e
			return
		}
		recs = append(recs, r)
	}

	e := rows.Err()

	if e != nil {
		if repo.prom != nil {
			repo.prom.DbErrorsTotal.WithLabelValues("registrations.list_by_flow", "rows_err").Inc()
		}
		err = e
		return
	}

	return
}
