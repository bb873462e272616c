package app

import "fmt"

// Command はアプリケーションのサブコマンドを表す。
type Command string

const (
	// CommandServe はHTTPサーバーを起動する。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandCleanup は期限切れセッションを削除して終了する。
	CommandCleanup Command = "cleanup"
	// CommandHealthcheck はヘルスチェックエンドポイントを確認して終了する。
	// コンテナのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が無い場合はserveを返す。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}

	switch Command(args[0]) {
	case CommandServe, CommandMigrate, CommandCleanup, CommandHealthcheck:
		return Command(args[0]), nil
	default:
		return "", fmt.Errorf("unknown command: %s (available: serve, migrate, cleanup, healthcheck)", args[0])
	}
}
