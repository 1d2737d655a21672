package app

import (
	"fmt"
	"strings"
)

// Command はhabitstreakバイナリのサブコマンド。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck"
)

// commands はサブコマンドと説明の一覧。usage表示の順序もこの順。
var commands = []struct {
	name Command
	desc string
}{
	{CommandServe, "APIサーバーを起動する（既定）"},
	{CommandWorker, "期限切れセッションと孤立Googleアカウントの掃除を定期実行する"},
	{CommandMigrate, "未適用のマイグレーションを適用する"},
	{CommandHealthcheck, "稼働中サーバーの /health を確認する（コンテナ用）"},
}

// ParseCommand は引数の先頭からサブコマンドを決定する。
// 引数なしはserve。未知のサブコマンドはusage付きのエラーになる。
// 2番目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}
	for _, c := range commands {
		if string(c.name) == args[0] {
			return c.name, nil
		}
	}
	return "", fmt.Errorf("unknown command %q\n\n%s", args[0], Usage())
}

// Usage はサブコマンド一覧のテキストを返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: habitstreak [command]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.name, c.desc)
	}
	return b.String()
}
