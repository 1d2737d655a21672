// Package logger はJSON構造化ログのセットアップを提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ServiceName は全ログ行に付与するserviceの値。
const ServiceName = "habitstreak"

// Redacted は秘匿キーの値を置き換える文字列。
const Redacted = "[REDACTED]"

// level は全ロガーで共有するログレベル。
// 設定読み込み前はINFOで動作し、SetLevelで後から変更できる。
var level = new(slog.LevelVar)

// sensitiveKeys はログに値を残さない属性キー（小文字）。
// パスワード、セッショントークン、OAuthの認可コードとstate。
var sensitiveKeys = map[string]bool{
	"password":      true,
	"session_id":    true,
	"session_token": true,
	"csrf_token":    true,
	"code":          true,
	"state":         true,
	"access_token":  true,
	"refresh_token": true,
	"client_secret": true,
	"secret":        true,
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// 秘匿キーの値はRedactedに置き換えられ、各行にserviceが付く。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	})
	return slog.New(handler).With(slog.String("service", ServiceName))
}

// SetupDefault はSetupのロガーをslogのデフォルトにする。wがnilならos.Stdout。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w))
}

// SetLevel はログレベルを名前（debug, info, warn, error）で変更する。
// 未知の名前はINFOとして扱う。
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// ParseLevel はログレベル名をslog.Levelに変換する。
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	return a
}
