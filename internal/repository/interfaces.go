// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/taskman/internal/model"
)

// TaskRepository はタスクデータの永続化インターフェース。
// すべての参照・更新系操作は所有者のユーザーIDを必須パラメータとして受け取り、
// クエリレベルで所有者スコープを強制する。他ユーザーのタスクは
// 存在自体が観測できない（FindByUserAndIDはnilを返す）。
type TaskRepository interface {
	// ListByUserID は指定ユーザーのタスク一覧を作成日時の降順で返す。
	// offsetとlimitでページネーションする。
	ListByUserID(ctx context.Context, userID string, offset, limit int) ([]*model.Task, error)

	// CountByUserID は指定ユーザーのタスク総数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// FindByUserAndID は指定ユーザーが所有するタスクを取得する。
	// IDが存在しない場合も、他ユーザーの所有である場合もnilを返す。
	FindByUserAndID(ctx context.Context, userID, id string) (*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はタスクのtitle、description、completed、updated_atを更新する。
	// WHERE句でidとuser_idの両方を条件とし、対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, task *model.Task) (bool, error)

	// DeleteByUserAndID は指定ユーザーが所有するタスクを物理削除する。
	// 対象が存在しない場合（既に削除済みの場合を含む）はfalseを返す。
	DeleteByUserAndID(ctx context.Context, userID, id string) (bool, error)

	// DeleteByUserID は指定ユーザーの全タスクを削除する。退会処理で使用する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername は指定ユーザー名のユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名の一意制約違反は
	// model.ErrCodeUsernameTakenのAPIErrorとして返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するtasks、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
