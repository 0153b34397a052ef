package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/you/taskconvert/internal/domain"
)

// PostgresStore is the durable Store implementation. Schema is managed by
// the goose migrations under migrations/.
type PostgresStore struct {
	db    *pgxpool.Pool
	clock Clock
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(db *pgxpool.Pool, clock Clock) *PostgresStore {
	if clock == nil {
		clock = systemClock{}
	}
	return &PostgresStore{db: db, clock: clock}
}

const jobColumns = `job_id, user_id, type, status, created_at, updated_at,
coalesce(error_message, ''), geo_latitude, geo_longitude,
coalesce(name, ''), coalesce(group_name, ''), coalesce(data, '')`

func (s *PostgresStore) Create(ctx context.Context, p CreateJobParams) (domain.Job, error) {
	now := s.clock.Now()
	job := domain.Job{
		JobID:           NewJobID(p.Type),
		SubmitterUserID: p.UserID,
		Type:            p.Type,
		Status:          domain.StatusQueued,
		CreatedAt:       now,
		UpdatedAt:       now,
		Geo:             cloneGeo(p.Geo),
		Name:            p.Name,
		Group:           p.Group,
		Data:            p.Data,
	}
	var lat, lon *float64
	if p.Geo != nil {
		lat, lon = &p.Geo.Latitude, &p.Geo.Longitude
	}
	_, err := s.db.Exec(ctx, `insert into jobs(
job_id, user_id, type, status, created_at, updated_at,
geo_latitude, geo_longitude, name, group_name, data
) values ($1,$2,$3,$4,$5,$6,$7,$8,nullif($9,''),nullif($10,''),nullif($11,''))`,
		job.JobID, job.SubmitterUserID, job.Type, job.Status, job.CreatedAt, job.UpdatedAt,
		lat, lon, p.Name, p.Group, p.Data,
	)
	if err != nil {
		return domain.Job{}, errors.Wrap(err, "insert job")
	}
	return job, nil
}

func (s *PostgresStore) Get(ctx context.Context, jobID string) (domain.Job, error) {
	row := s.db.QueryRow(ctx, `select `+jobColumns+` from jobs where job_id = $1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, ErrNotFound
	}
	if err != nil {
		return domain.Job{}, errors.Wrap(err, "select job")
	}
	return job, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]domain.Job, error) {
	rows, err := s.db.Query(ctx, `select `+jobColumns+` from jobs
where $1 = '' or user_id = $1
order by created_at desc, job_id asc`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	defer rows.Close()

	out := []domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Transition(ctx context.Context, jobID string, next domain.Status, errMsg string) (domain.Job, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Job{}, errors.Wrap(err, "begin")
	}
	defer tx.Rollback(ctx)

	var current domain.Status
	err = tx.QueryRow(ctx, `select status from jobs where job_id = $1 for update`, jobID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, ErrNotFound
	}
	if err != nil {
		return domain.Job{}, errors.Wrap(err, "lock job")
	}
	if !allowedTransition(current, next) {
		return domain.Job{}, ErrInvalidTransition
	}

	var msg *string
	if next == domain.StatusFailed && errMsg != "" {
		msg = &errMsg
	}
	row := tx.QueryRow(ctx, `update jobs
set status = $2, updated_at = $3, error_message = $4
where job_id = $1
returning `+jobColumns, jobID, next, s.clock.Now(), msg)
	job, err := scanJob(row)
	if err != nil {
		return domain.Job{}, errors.Wrap(err, "update job")
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Job{}, errors.Wrap(err, "commit")
	}
	return job, nil
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx, `delete from jobs where created_at < $1 returning job_id`, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "delete old jobs")
	}
	defer rows.Close()

	var deleted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan deleted job id")
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

func scanJob(row pgx.Row) (domain.Job, error) {
	var job domain.Job
	var lat, lon *float64
	err := row.Scan(
		&job.JobID, &job.SubmitterUserID, &job.Type, &job.Status,
		&job.CreatedAt, &job.UpdatedAt, &job.ErrorMessage,
		&lat, &lon, &job.Name, &job.Group, &job.Data,
	)
	if err != nil {
		return domain.Job{}, err
	}
	if lat != nil && lon != nil {
		job.Geo = &domain.GeoLocation{Latitude: *lat, Longitude: *lon}
	}
	return job, nil
}
