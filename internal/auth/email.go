package auth

import (
	"strings"

	"golang.org/x/net/idna"
)

// CanonicalEmail はメールアドレスを比較用の正規形にする。
// ローカル部は小文字化し、ドメインはIDNAのASCII形式（punycode）に変換する。
// 同じメールアドレスのアカウント検出はこの正規形の完全一致で行う。
func CanonicalEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return email
	}
	domain, err := idna.Lookup.ToASCII(email[at+1:])
	if err != nil {
		return email
	}
	return email[:at+1] + domain
}
