// Package streak は日付集合から連続達成日数（ストリーク）を計算する。
package streak

import "time"

// DateLayout はチェックイン日付の形式（YYYY-MM-DD）。
const DateLayout = "2006-01-02"

// Result はストリーク計算の結果。
type Result struct {
	CurrentStreak  int  `json:"current_streak"`
	CheckedInToday bool `json:"checked_in_today"`
}

// Compute はチェックイン日付の集合とクライアントのローカル日付todayから
// 現在のストリークを計算する。
//
// 今日チェックイン済みなら今日から、未チェックインなら昨日から遡り、
// 連続して存在する日数を数える。昨日も存在しなければ0。
// 重複と形式不正の日付は無視する。todayが不正な場合はゼロ値を返す。
func Compute(days []string, today string) Result {
	todayDate, err := time.Parse(DateLayout, today)
	if err != nil {
		return Result{}
	}

	set := make(map[string]struct{}, len(days))
	for _, d := range days {
		if _, err := time.Parse(DateLayout, d); err != nil {
			continue
		}
		set[d] = struct{}{}
	}

	_, checkedInToday := set[today]

	cursor := todayDate
	if !checkedInToday {
		cursor = cursor.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		if _, ok := set[cursor.Format(DateLayout)]; !ok {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}

	return Result{CurrentStreak: streak, CheckedInToday: checkedInToday}
}

// Today はlocのタイムゾーンにおけるnowの暦日をYYYY-MM-DDで返す。
// locがnilの場合はUTCとする。
func Today(loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DateLayout)
}

// ValidDate はsがYYYY-MM-DD形式の実在する日付かどうかを返す。
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
