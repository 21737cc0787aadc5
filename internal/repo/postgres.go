package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventhub/internal/model"
)

const uniqueViolation = "23505"

const eventColumns = `
	id, organizer_id, organizer_name, organizer_email, title, description, image, agenda,
	date, time, location, is_virtual, zoom_link, ticket_types, attendees, version,
	created_at, updated_at
`

type PostgresRepository struct {
	db  *dbpg.DB
	log *zerolog.Logger
}

func NewPostgresRepository(db *dbpg.DB, log *zerolog.Logger) (*PostgresRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return &PostgresRepository{db: db, log: log}, nil
}

func (r *PostgresRepository) MigrateUp(ctx context.Context, migrationsDir string) error {
	return r.applyMigrations(ctx, migrationsDir, "*.up.sql", false)
}

func (r *PostgresRepository) MigrateDown(ctx context.Context, migrationsDir string) error {
	return r.applyMigrations(ctx, migrationsDir, "*.down.sql", true)
}

func (r *PostgresRepository) applyMigrations(ctx context.Context, dir, pattern string, reverse bool) error {
	files, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
	}

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}
		if _, err := r.db.Master.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Str("dir", dir).Str("pattern", pattern).Int("files", len(files)).Msg("migrations applied")
	return nil
}

func (r *PostgresRepository) CreateEvent(ctx context.Context, e *model.Event) error {
	agenda, ticketTypes, attendees, err := marshalCollections(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO events (id, organizer_id, organizer_name, organizer_email, title, description, image,
		                    agenda, date, time, location, is_virtual, zoom_link, ticket_types, attendees,
		                    version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1, $16, $17)
	`
	if _, err := r.db.Master.ExecContext(ctx, query,
		e.ID, e.Organizer.ID, e.Organizer.Name, e.Organizer.Email, e.Title, e.Description, e.Image,
		agenda, e.Date, e.Time, e.Location, e.IsVirtual, e.ZoomLink, ticketTypes, attendees,
		e.CreatedAt, e.UpdatedAt,
	); err != nil {
		return storeError("failed to insert event", err)
	}
	e.Version = 1
	return nil
}

func (r *PostgresRepository) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	row := r.db.Master.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		return nil, storeError("failed to get event", err)
	}
	return e, nil
}

func (r *PostgresRepository) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, storeError("failed to get events", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, storeError("failed to scan event", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate events", err)
	}
	return events, nil
}

// MutateEvent locks the event row with SELECT ... FOR UPDATE, which makes the
// row lock the per-event serialization point for every writer.
func (r *PostgresRepository) MutateEvent(ctx context.Context, id string, fn MutateFunc) (*model.Event, error) {
	tx, err := r.db.Master.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeError("failed to start transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	current, err := scanEvent(tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, storeError("failed to lock event", err)
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	for _, c := range newCredentials(current, working) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (credential, event_id) VALUES ($1, $2)`, c, id,
		); err != nil {
			_ = tx.Rollback()
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return nil, model.ErrCredentialConflict
			}
			return nil, storeError("failed to index credential", err)
		}
	}

	agenda, ticketTypes, attendees, err := marshalCollections(working)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	query := `
		UPDATE events
		SET title = $2, description = $3, image = $4, agenda = $5, date = $6, time = $7,
		    location = $8, is_virtual = $9, zoom_link = $10, ticket_types = $11, attendees = $12,
		    version = version + 1, updated_at = $13
		WHERE id = $1
		RETURNING version
	`
	if err := tx.QueryRowContext(ctx, query,
		id, working.Title, working.Description, working.Image, agenda, working.Date, working.Time,
		working.Location, working.IsVirtual, working.ZoomLink, ticketTypes, attendees, working.UpdatedAt,
	).Scan(&working.Version); err != nil {
		_ = tx.Rollback()
		return nil, storeError("failed to update event", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeError("failed to commit transaction", err)
	}
	return working, nil
}

func (r *PostgresRepository) DeleteEvent(ctx context.Context, id string) error {
	res, err := r.db.Master.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return storeError("failed to delete event", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeError("failed to delete event", err)
	}
	if n == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		e                               model.Event
		agenda, ticketTypes, attendees []byte
	)
	if err := row.Scan(
		&e.ID, &e.Organizer.ID, &e.Organizer.Name, &e.Organizer.Email, &e.Title, &e.Description,
		&e.Image, &agenda, &e.Date, &e.Time, &e.Location, &e.IsVirtual, &e.ZoomLink,
		&ticketTypes, &attendees, &e.Version, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(agenda, &e.Agenda); err != nil {
		return nil, fmt.Errorf("decode agenda: %w", err)
	}
	if err := json.Unmarshal(ticketTypes, &e.TicketTypes); err != nil {
		return nil, fmt.Errorf("decode ticket types: %w", err)
	}
	if err := json.Unmarshal(attendees, &e.Attendees); err != nil {
		return nil, fmt.Errorf("decode attendees: %w", err)
	}
	return &e, nil
}

func marshalCollections(e *model.Event) (agenda, ticketTypes, attendees []byte, err error) {
	if agenda, err = json.Marshal(nonNil(e.Agenda)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode agenda: %w", err)
	}
	if ticketTypes, err = json.Marshal(nonNil(e.TicketTypes)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode ticket types: %w", err)
	}
	if attendees, err = json.Marshal(nonNil(e.Attendees)); err != nil {
		return nil, nil, nil, fmt.Errorf("encode attendees: %w", err)
	}
	return agenda, ticketTypes, attendees, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// storeError marks driver and connectivity failures as transient.
func storeError(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, model.ErrStoreUnavailable, err)
}
