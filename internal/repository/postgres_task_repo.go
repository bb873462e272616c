package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// 全クエリのWHERE句にuser_idを含めることで所有者スコープを構造的に保証する。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// ListByUserID は指定ユーザーのタスク一覧を作成日時の降順で返す。
func (r *PostgresTaskRepo) ListByUserID(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, description, completed, created_at, updated_at
		 FROM tasks
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 OFFSET $2 LIMIT $3`,
		userID, offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task := &model.Task{}
		var description sql.NullString

		if err := rows.Scan(
			&task.ID, &task.UserID, &task.Title, &description,
			&task.Completed, &task.CreatedAt, &task.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("タスク行の読み取りに失敗しました: %w", err)
		}

		task.Description = nullStringValue(description)
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タスク一覧の走査に失敗しました: %w", err)
	}

	return tasks, nil
}

// CountByUserID は指定ユーザーのタスク総数を返す。
func (r *PostgresTaskRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM tasks WHERE user_id = $1`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("タスク数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// FindByUserAndID は指定ユーザーが所有するタスクを取得する。
// IDが存在しない場合も、他ユーザーの所有である場合もnilを返す。
func (r *PostgresTaskRepo) FindByUserAndID(ctx context.Context, userID, id string) (*model.Task, error) {
	task := &model.Task{}
	var description sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, description, completed, created_at, updated_at
		 FROM tasks
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(
		&task.ID, &task.UserID, &task.Title, &description,
		&task.Completed, &task.CreatedAt, &task.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タスクの取得に失敗しました: %w", err)
	}

	task.Description = nullStringValue(description)
	return task, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.UserID, task.Title, nullString(task.Description),
		task.Completed, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はタスクのtitle、description、completed、updated_atを更新する。
// 単一のUPDATE文で実行されるため、同一レコードへの並行更新は後勝ちとなる。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET
		    title = $3, description = $4, completed = $5, updated_at = $6
		 WHERE id = $1 AND user_id = $2`,
		task.ID, task.UserID, task.Title, nullString(task.Description),
		task.Completed, task.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}

	return rowsAffected > 0, nil
}

// DeleteByUserAndID は指定ユーザーが所有するタスクを物理削除する。
// 対象が存在しない場合はfalseを返す。2回目の削除はfalseとなる。
func (r *PostgresTaskRepo) DeleteByUserAndID(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	return rowsAffected > 0, nil
}

// DeleteByUserID は指定ユーザーの全タスクを削除する。
func (r *PostgresTaskRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーのタスク削除に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringのNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列値を取り出す。NULLは空文字列となる。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
