package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskgraph/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = `id,title,description,status,position_x,position_y,parent_id,created_at,updated_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var description sql.NullString
	var posX, posY sql.NullFloat64
	var parentID sql.NullInt64
	var status string
	err := row.Scan(&t.ID, &t.Title, &description, &status, &posX, &posY, &parentID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Status = domain.Status(status)
	if description.Valid {
		t.Description = description.String
	}
	if posX.Valid && posY.Valid {
		t.Position = &domain.Position{X: posX.Float64, Y: posY.Float64}
	}
	if parentID.Valid {
		p := parentID.Int64
		t.ParentID = &p
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return getTask(ctx, r.DB, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Task, error) {
	return getTask(ctx, tx, id)
}

func getTask(ctx context.Context, q queryer, id int64) (domain.Task, error) {
	return scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

type TaskFilters struct {
	Status   string
	ParentID *int64
	Skip     int
	Limit    int
}

// ListTasks returns tasks ordered by id, honouring skip/limit as a fetch window.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.ParentID != nil {
		clauses = append(clauses, "parent_id=?")
		args = append(args, *f.ParentID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY id ASC`
	switch {
	case f.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Skip)
	case f.Skip > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Skip)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) (int64, error) {
	x, y := positionArgs(t.Position)
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(title,description,status,position_x,position_y,parent_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.Title, nullable(t.Description), string(t.Status), x, y, nullableInt64Ptr(t.ParentID), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	x, y := positionArgs(t.Position)
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?,description=?,status=?,position_x=?,position_y=?,parent_id=?,updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), string(t.Status), x, y, nullableInt64Ptr(t.ParentID), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTaskTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountChildrenTx(ctx context.Context, tx *sql.Tx, id int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE parent_id=?`, id).Scan(&n)
	return n, err
}

// AncestorsTx walks parent links upward from id and returns the chain, nearest first.
// The walk stops after limit hops so a corrupted table cannot loop forever.
func (r Repo) AncestorsTx(ctx context.Context, tx *sql.Tx, id int64, limit int) ([]int64, error) {
	var chain []int64
	cur := id
	for i := 0; i < limit; i++ {
		var parent sql.NullInt64
		err := tx.QueryRowContext(ctx, `SELECT parent_id FROM tasks WHERE id=?`, cur).Scan(&parent)
		if err == sql.ErrNoRows {
			return chain, nil
		}
		if err != nil {
			return nil, err
		}
		if !parent.Valid {
			return chain, nil
		}
		chain = append(chain, parent.Int64)
		cur = parent.Int64
	}
	return chain, fmt.Errorf("parent chain of task %d exceeds %d levels", id, limit)
}

func positionArgs(p *domain.Position) (any, any) {
	if p == nil {
		return nil, nil
	}
	return p.X, p.Y
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
