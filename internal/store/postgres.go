package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"servicemarket/marketplace-service/internal/model"
)

// maxTxAttempts bounds retries of a transaction aborted by a serialization
// conflict (SQLSTATE 40001).
const maxTxAttempts = 3

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ─── Postgres ────────────────────────────────────────────────────────────────

// Postgres is the pgx-backed Store.
type Postgres struct {
	queries
	pool *pgxpool.Pool
}

// NewPostgres returns a Store backed by pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{queries: queries{q: pool}, pool: pool}
}

// Ping checks connectivity.
func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// InTx runs fn in a SERIALIZABLE transaction, retrying on serialization
// failures.
func (p *Postgres) InTx(ctx context.Context, fn func(q Queries) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	for attempt := 1; ; attempt++ {
		err := pgx.BeginTxFunc(ctx, p.pool, opts, func(tx pgx.Tx) error {
			return fn(queries{q: tx})
		})
		if err == nil || !isSerializationFailure(err) || attempt == maxTxAttempts {
			return err
		}
		slog.Debug("retrying serializable transaction", "attempt", attempt, "err", err)
	}
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

// queries implements Queries against a pool or a transaction.
type queries struct {
	q querier
}

// ─── Jobs ────────────────────────────────────────────────────────────────────

const jobColumns = `id, requester_id, provider_id, category_id, title, description,
	city, urgency, status, allowed_provider_type, created_at, updated_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	err := row.Scan(
		&j.ID, &j.RequesterID, &j.ProviderID, &j.CategoryID, &j.Title, &j.Description,
		&j.City, &j.Urgency, &j.Status, &j.AllowedProviderType, &j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s queries) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(s.q.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getJob: %w", err)
	}
	return j, err
}

func (s queries) LockJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := scanJob(s.q.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lockJob: %w", err)
	}
	return j, err
}

func (s queries) CreateJob(ctx context.Context, j *model.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	err := s.q.QueryRow(ctx,
		`INSERT INTO jobs (id, requester_id, category_id, title, description, city,
		                   urgency, status, allowed_provider_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::job_status, $9)
		 RETURNING created_at, updated_at`,
		j.ID, j.RequesterID, j.CategoryID, j.Title, j.Description, j.City,
		j.Urgency, string(j.Status), string(j.AllowedProviderType),
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("createJob: %w", err)
	}
	return nil
}

func (s queries) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, providerID *string) (*model.Job, error) {
	j, err := scanJob(s.q.QueryRow(ctx,
		`UPDATE jobs
		 SET status = $1::job_status, provider_id = $2, updated_at = NOW()
		 WHERE id = $3
		 RETURNING `+jobColumns,
		string(status), providerID, id,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("updateJobStatus: %w", err)
	}
	return j, err
}

func (s queries) DeleteJob(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleteJob: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s queries) ListJobs(ctx context.Context, f JobFilter) ([]model.Job, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.RequesterID != "" {
		where = append(where, "requester_id = "+arg(f.RequesterID))
	}
	if f.ProviderID != "" {
		where = append(where, "provider_id = "+arg(f.ProviderID))
	}
	if len(f.Cities) > 0 {
		where = append(where, "city = ANY("+arg(f.Cities)+")")
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status::text = ANY("+arg(statuses)+")")
	}
	if len(f.CategoryIDs) > 0 {
		where = append(where, "category_id = ANY("+arg(f.CategoryIDs)+")")
	}

	sql := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id`

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listJobs query: %w", err)
	}
	defer rows.Close()

	jobs := make([]model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("listJobs scan: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s queries) CountIncompleteJobs(ctx context.Context, providerID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs
		 WHERE provider_id = $1 AND status NOT IN ('completed', 'cancelled')`,
		providerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("countIncompleteJobs: %w", err)
	}
	return n, nil
}

// ─── Applications ────────────────────────────────────────────────────────────

const applicationColumns = `a.id, a.job_id, a.provider_id, a.message, a.status, a.created_at, a.updated_at`

func scanApplication(row pgx.Row) (*model.Application, error) {
	var a model.Application
	err := row.Scan(&a.ID, &a.JobID, &a.ProviderID, &a.Message, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s queries) CreateApplication(ctx context.Context, a *model.Application) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	err := s.q.QueryRow(ctx,
		`INSERT INTO job_applications (id, job_id, provider_id, message, status)
		 VALUES ($1, $2, $3, $4, $5::application_status)
		 RETURNING created_at, updated_at`,
		a.ID, a.JobID, a.ProviderID, a.Message, string(a.Status),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("createApplication: %w", err)
	}
	return nil
}

func (s queries) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	a, err := scanApplication(s.q.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM job_applications a WHERE a.id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getApplication: %w", err)
	}
	return a, err
}

func (s queries) ListApplications(ctx context.Context, jobID string) ([]model.Application, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+applicationColumns+`,
		        COALESCE(u.name, ''),
		        COALESCE(p.rating_average, 0)::float8,
		        COALESCE(p.completed_jobs, 0)
		 FROM job_applications a
		 LEFT JOIN users u ON u.id = a.provider_id
		 LEFT JOIN provider_profiles p ON p.user_id = a.provider_id
		 WHERE a.job_id = $1
		 ORDER BY a.created_at ASC, a.id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("listApplications query: %w", err)
	}
	defer rows.Close()

	apps := make([]model.Application, 0)
	for rows.Next() {
		var (
			a  model.Application
			sn model.ProviderSnippet
		)
		if err := rows.Scan(
			&a.ID, &a.JobID, &a.ProviderID, &a.Message, &a.Status, &a.CreatedAt, &a.UpdatedAt,
			&sn.Name, &sn.RatingAverage, &sn.CompletedJobs,
		); err != nil {
			return nil, fmt.Errorf("listApplications scan: %w", err)
		}
		sn.UserID = a.ProviderID
		a.Provider = &sn
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s queries) CountPendingApplications(ctx context.Context, jobID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM job_applications WHERE job_id = $1 AND status = 'pending'`,
		jobID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("countPendingApplications: %w", err)
	}
	return n, nil
}

func (s queries) HasApplied(ctx context.Context, jobID, providerID string) (bool, error) {
	var ok bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM job_applications WHERE job_id = $1 AND provider_id = $2)`,
		jobID, providerID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("hasApplied: %w", err)
	}
	return ok, nil
}

func (s queries) DeleteApplication(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM job_applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleteApplication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s queries) ResolveApplications(ctx context.Context, jobID, selectedID string) error {
	_, err := s.q.Exec(ctx,
		`UPDATE job_applications
		 SET status = CASE WHEN id = $2 THEN 'selected'::application_status
		                   ELSE 'rejected'::application_status END,
		     updated_at = NOW()
		 WHERE job_id = $1`,
		jobID, selectedID,
	)
	if err != nil {
		return fmt.Errorf("resolveApplications: %w", err)
	}
	return nil
}

func (s queries) collectApplications(ctx context.Context, sql string, jobID string) ([]model.Application, error) {
	rows, err := s.q.Query(ctx, sql, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	apps := make([]model.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

func (s queries) RejectPendingApplications(ctx context.Context, jobID string) ([]model.Application, error) {
	apps, err := s.collectApplications(ctx,
		`UPDATE job_applications a
		 SET status = 'rejected', updated_at = NOW()
		 WHERE a.job_id = $1 AND a.status = 'pending'
		 RETURNING `+applicationColumns,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("rejectPendingApplications: %w", err)
	}
	return apps, nil
}

func (s queries) DeleteApplications(ctx context.Context, jobID string) ([]model.Application, error) {
	apps, err := s.collectApplications(ctx,
		`DELETE FROM job_applications a WHERE a.job_id = $1 RETURNING `+applicationColumns,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("deleteApplications: %w", err)
	}
	return apps, nil
}

// ─── Profiles ────────────────────────────────────────────────────────────────

const providerColumns = `u.id, u.name, p.primary_city,
	ARRAY(SELECT sa.city FROM service_areas sa
	      WHERE sa.provider_id = p.user_id AND sa.status = 'approved'
	      ORDER BY sa.city),
	EXISTS (SELECT 1 FROM company_profiles c WHERE c.user_id = p.user_id),
	p.rating_average::float8, p.completed_jobs`

func scanProvider(row pgx.Row) (*model.ProviderProfile, error) {
	var p model.ProviderProfile
	err := row.Scan(&p.UserID, &p.Name, &p.PrimaryCity, &p.ServiceAreas,
		&p.IsCompany, &p.RatingAverage, &p.CompletedJobs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s queries) ProviderProfile(ctx context.Context, userID string) (*model.ProviderProfile, error) {
	p, err := scanProvider(s.q.QueryRow(ctx,
		`SELECT `+providerColumns+`
		 FROM provider_profiles p JOIN users u ON u.id = p.user_id
		 WHERE p.user_id = $1`,
		userID,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("providerProfile: %w", err)
	}
	return p, err
}

func (s queries) ApprovedCategoryIDs(ctx context.Context, userID string) ([]int64, error) {
	rows, err := s.q.Query(ctx,
		`SELECT category_id FROM category_verifications
		 WHERE provider_id = $1 AND status = 'approved'
		 ORDER BY category_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("approvedCategoryIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("approvedCategoryIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s queries) ProvidersForCategory(ctx context.Context, categoryID int64) ([]model.ProviderProfile, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+providerColumns+`
		 FROM category_verifications cv
		 JOIN provider_profiles p ON p.user_id = cv.provider_id
		 JOIN users u ON u.id = p.user_id
		 WHERE cv.category_id = $1 AND cv.status = 'approved'
		 ORDER BY u.id`,
		categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("providersForCategory query: %w", err)
	}
	defer rows.Close()

	providers := make([]model.ProviderProfile, 0)
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("providersForCategory scan: %w", err)
		}
		providers = append(providers, *p)
	}
	return providers, rows.Err()
}

func (s queries) AdminIDs(ctx context.Context) ([]string, error) {
	rows, err := s.q.Query(ctx, `SELECT id FROM users WHERE role = 'admin' ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("adminIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("adminIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ─── Notifications ───────────────────────────────────────────────────────────

const notificationColumns = `id, recipient_id, job_id, type, title, message, is_read, read_at, created_at`

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	err := row.Scan(&n.ID, &n.RecipientID, &n.JobID, &n.Type, &n.Title, &n.Message,
		&n.IsRead, &n.ReadAt, &n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s queries) InsertNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	err := s.q.QueryRow(ctx,
		`INSERT INTO notifications (id, recipient_id, job_id, type, title, message)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		n.ID, n.RecipientID, n.JobID, string(n.Type), n.Title, n.Message,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insertNotification: %w", err)
	}
	return nil
}

func (s queries) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Notification, error) {
	sql := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1`
	if unreadOnly {
		sql += ` AND is_read = false`
	}
	sql += ` ORDER BY created_at DESC, id`

	rows, err := s.q.Query(ctx, sql, recipientID)
	if err != nil {
		return nil, fmt.Errorf("listNotifications query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("listNotifications scan: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s queries) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = false`,
		recipientID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("countUnreadNotifications: %w", err)
	}
	return n, nil
}

func (s queries) MarkNotificationRead(ctx context.Context, id, recipientID string) (*model.Notification, error) {
	n, err := scanNotification(s.q.QueryRow(ctx,
		`UPDATE notifications
		 SET is_read = true, read_at = COALESCE(read_at, NOW())
		 WHERE id = $1 AND recipient_id = $2
		 RETURNING `+notificationColumns,
		id, recipientID,
	))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("markNotificationRead: %w", err)
	}
	return n, err
}

func (s queries) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE notifications SET is_read = true, read_at = NOW()
		 WHERE recipient_id = $1 AND is_read = false`,
		recipientID,
	)
	if err != nil {
		return 0, fmt.Errorf("markAllNotificationsRead: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s queries) DeleteNotification(ctx context.Context, id, recipientID string) error {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return fmt.Errorf("deleteNotification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s queries) DeleteReadNotificationsBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx,
		`DELETE FROM notifications WHERE is_read = true AND created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("deleteReadNotificationsBefore: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ─── Messages ────────────────────────────────────────────────────────────────

const messageColumns = `id, sender_id, receiver_id, job_id, message_type, text, is_read, read_at, created_at`

func (s queries) listMessages(ctx context.Context, sql string, args ...any) ([]model.Message, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.JobID, &m.MessageType,
			&m.Text, &m.IsRead, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s queries) InsertMessage(ctx context.Context, m *model.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	err := s.q.QueryRow(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, job_id, message_type, text)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		m.ID, m.SenderID, m.ReceiverID, m.JobID, string(m.MessageType), m.Text,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insertMessage: %w", err)
	}
	return nil
}

func (s queries) ListJobMessages(ctx context.Context, jobID string) ([]model.Message, error) {
	msgs, err := s.listMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE job_id = $1 AND message_type = 'job_message'
		 ORDER BY created_at ASC, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("listJobMessages: %w", err)
	}
	return msgs, nil
}

func (s queries) ListUserMessages(ctx context.Context, userID string) ([]model.Message, error) {
	msgs, err := s.listMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE sender_id = $1 OR receiver_id = $1
		 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listUserMessages: %w", err)
	}
	return msgs, nil
}

func (s queries) ListAdminChat(ctx context.Context, userID string) ([]model.Message, error) {
	msgs, err := s.listMessages(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE message_type = 'admin_message' AND (sender_id = $1 OR receiver_id = $1)
		 ORDER BY created_at ASC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listAdminChat: %w", err)
	}
	return msgs, nil
}

func (s queries) MarkMessageRead(ctx context.Context, id, receiverID string) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE messages SET is_read = true, read_at = COALESCE(read_at, NOW())
		 WHERE id = $1 AND receiver_id = $2`, id, receiverID)
	if err != nil {
		return fmt.Errorf("markMessageRead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s queries) MarkJobMessagesRead(ctx context.Context, jobID, receiverID string) (int, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE messages SET is_read = true, read_at = NOW()
		 WHERE job_id = $1 AND receiver_id = $2 AND is_read = false`, jobID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("markJobMessagesRead: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s queries) MarkAdminChatRead(ctx context.Context, receiverID string) (int, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE messages SET is_read = true, read_at = NOW()
		 WHERE message_type = 'admin_message' AND receiver_id = $1 AND is_read = false`, receiverID)
	if err != nil {
		return 0, fmt.Errorf("markAdminChatRead: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s queries) CountUnreadMessages(ctx context.Context, receiverID string) (int, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = false`, receiverID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("countUnreadMessages: %w", err)
	}
	return n, nil
}
