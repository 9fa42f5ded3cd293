package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one audit log line.
type Entry struct {
	ShopID   string
	Action   string
	Actor    string
	Metadata any
}

type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

type Repository struct {
	db *pgxpool.Pool
}

var _ Recorder = (*Repository)(nil)

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Record(ctx context.Context, e Entry) error {
	var s *string
	if e.Metadata != nil {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("audit metadata: %w", err)
		}
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO audit_logs (shop_id, action, actor, metadata)
VALUES ($1, $2, $3, CAST($4 AS jsonb))
`
	_, err := r.db.Exec(ctx, q, e.ShopID, e.Action, e.Actor, s)
	return err
}
