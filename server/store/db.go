package store

import (
	"context"
	"embed"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"llm-colosseum/server/elo"
)

//go:embed schema.sql
var schema embed.FS

// DB is the Postgres-backed store.
type DB struct{ *pgxpool.Pool }

var _ Store = (*DB)(nil)

func Open(dsn string) (*DB, error) {
	p, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close(ctx context.Context)      { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

const sessionCols = `rpid, model_a, model_b, status, winner, created_at, updated_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	var winner *string
	err := row.Scan(&s.ID, &s.ModelA, &s.ModelB, &s.Status, &winner, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Session{}, err
	}
	if winner != nil {
		s.Winner = elo.Tag(*winner)
	}
	return s, nil
}

// GetOrCreateSession serializes first-touch creation through the rpid primary
// key: the insert uses ON CONFLICT DO NOTHING and a conflict means another
// request won the race, so the stored row is re-read.
func (db *DB) GetOrCreateSession(ctx context.Context, id string, candidates []string) (Session, bool, error) {
	s, err := scanSession(db.QueryRow(ctx, `SELECT `+sessionCols+` FROM battle_sessions WHERE rpid = $1`, id))
	if err == nil {
		return s, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Session{}, false, err
	}

	modelA, modelB, err := drawPair(candidates)
	if err != nil {
		return Session{}, false, err
	}
	ct, err := db.Exec(ctx, `
		INSERT INTO battle_sessions(rpid, model_a, model_b, status)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (rpid) DO NOTHING
	`, id, modelA, modelB, StatusActive)
	if err != nil {
		return Session{}, false, err
	}
	created := ct.RowsAffected() > 0

	s, err = scanSession(db.QueryRow(ctx, `SELECT `+sessionCols+` FROM battle_sessions WHERE rpid = $1`, id))
	if err != nil {
		return Session{}, false, err
	}
	return s, created, nil
}

func (db *DB) SessionExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := db.QueryRow(ctx, `SELECT 1 FROM battle_sessions WHERE rpid = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ResolveSession completes the session and applies the rating update inside a
// single transaction, so no reader can observe a completed session with stale
// or half-updated ratings.
func (db *DB) ResolveSession(ctx context.Context, id string, winner elo.Tag) (Session, error) {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Session{}, err
	}
	defer tx.Rollback(ctx) // safe if already committed

	s, err := scanSession(tx.QueryRow(ctx, `SELECT `+sessionCols+` FROM battle_sessions WHERE rpid = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if s.Status == StatusCompleted {
		return Session{}, ErrAlreadyResolved
	}

	err = tx.QueryRow(ctx, `
		UPDATE battle_sessions
		   SET status = $2, winner = $3, updated_at = now()
		 WHERE rpid = $1
		RETURNING updated_at
	`, id, StatusCompleted, string(winner)).Scan(&s.UpdatedAt)
	if err != nil {
		return Session{}, err
	}
	s.Status = StatusCompleted
	s.Winner = winner

	if err := applyRatings(ctx, tx, s.ModelA, s.ModelB, winner); err != nil {
		return Session{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Session{}, err
	}
	return s, nil
}

// applyRatings lazily creates both rating rows, locks them in a fixed order,
// and writes the Elo result. An unrecognized tag leaves ratings untouched.
func applyRatings(ctx context.Context, tx pgx.Tx, modelA, modelB string, winner elo.Tag) error {
	if _, err := tx.Exec(ctx, `
		INSERT INTO ratings(model_id) VALUES ($1),($2) ON CONFLICT (model_id) DO NOTHING
	`, modelA, modelB); err != nil {
		return err
	}

	ratings := map[string]int{}
	rows, err := tx.Query(ctx, `
		SELECT model_id, rating FROM ratings WHERE model_id IN ($1,$2) ORDER BY model_id FOR UPDATE
	`, modelA, modelB)
	if err != nil {
		return err
	}
	for rows.Next() {
		var id string
		var r int
		if err := rows.Scan(&id, &r); err != nil {
			rows.Close()
			return err
		}
		ratings[id] = r
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	newA, newB, ok := elo.Update(ratings[modelA], ratings[modelB], winner)
	if !ok {
		slog.Warn("unrecognized winner tag, ratings left unchanged",
			"winner", string(winner), "model_a", modelA, "model_b", modelB)
		return nil
	}
	for _, u := range []struct {
		model  string
		rating int
	}{{modelA, newA}, {modelB, newB}} {
		if _, err := tx.Exec(ctx, `
			UPDATE ratings SET rating = $2, num_battles = num_battles + 1 WHERE model_id = $1
		`, u.model, u.rating); err != nil {
			return err
		}
	}
	return nil
}

// GetRating ensures a ratings row exists and fetches it.
func (db *DB) GetRating(ctx context.Context, model string) (Rating, error) {
	if _, err := db.Exec(ctx, `INSERT INTO ratings(model_id) VALUES ($1) ON CONFLICT (model_id) DO NOTHING`, model); err != nil {
		return Rating{}, err
	}
	r := Rating{ModelID: model}
	err := db.QueryRow(ctx, `SELECT rating, num_battles FROM ratings WHERE model_id = $1`, model).
		Scan(&r.Value, &r.Battles)
	return r, err
}

func (db *DB) Leaderboard(ctx context.Context) ([]Standing, error) {
	rows, err := db.Query(ctx, `
		SELECT model_id, rating, num_battles
		  FROM ratings
		 ORDER BY rating DESC, model_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Standing{}
	for rows.Next() {
		var s Standing
		if err := rows.Scan(&s.ModelID, &s.Rating, &s.Battles); err != nil {
			return nil, err
		}
		s.Rank = len(out) + 1
		out = append(out, s)
	}
	return out, rows.Err()
}
