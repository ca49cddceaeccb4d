package signals

import (
	"net/url"
	"path"
	"strings"
	"unicode"
)

// sensationalMarkers は煽り表現とみなす語句（小文字）。
var sensationalMarkers = []string{
	"breaking:",
	"!!!",
	"shocking",
	"you won't believe",
	"what happened next",
	"this one trick",
	"exclusive photos",
	"they don't want you to know",
	"hiding the truth",
	"miracle cure",
	"aliens land",
}

// SensationalMarkers はテキストに含まれる煽り表現を返す。
// 大文字小文字は区別しない。
func SensationalMarkers(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, m := range sensationalMarkers {
		if strings.Contains(lower, m) {
			found = append(found, m)
		}
	}
	// スラッグから復元した見出しはコロンを失うため先頭のbreakingも対象にする
	if strings.HasPrefix(lower, "breaking ") && !contains(found, "breaking:") {
		found = append(found, "breaking")
	}
	return found
}

// IsSensational はテキストが煽り表現を含むかどうかを返す。
func IsSensational(text string) bool {
	return len(SensationalMarkers(text)) > 0
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}

// HeadlineFromURL はURLパスの末尾スラッグから見出しを復元する。
// 復元できない場合はホスト名を返す。
func HeadlineFromURL(u *url.URL) string {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		seg = strings.TrimSuffix(seg, path.Ext(seg))
		if !strings.ContainsFunc(seg, unicode.IsLetter) {
			continue
		}
		words := strings.FieldsFunc(seg, func(r rune) bool {
			return r == '-' || r == '_' || r == '+'
		})
		if len(words) == 0 {
			continue
		}
		return strings.Join(words, " ")
	}
	return u.Hostname()
}

// firstSentence はテキストの最初の文（最大maxLen文字）を返す。
func firstSentence(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "\n"); i >= 0 {
		text = text[:i]
	}
	if i := strings.Index(text, ". "); i >= 0 {
		text = text[:i+1]
	}
	runes := []rune(text)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return text
}
