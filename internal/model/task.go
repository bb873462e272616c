// Package model はドメインモデルを定義する。
package model

import "time"

// Task はユーザーが所有するToDoタスクを表す。
// 所有者（UserID）は作成時に確定し、以後変更されない。
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TitleMaxLength はタスクタイトルの最大文字数。
const TitleMaxLength = 200

// TaskPage はタスク一覧のページネーション結果を表す。
type TaskPage struct {
	Tasks      []*Task
	Page       int
	PageSize   int
	TotalCount int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}
