package relay

import "strings"

const (
	SeeMorePadding  = 500
	zeroWidthSpace  = "\u200b"
	DefaultFoldRows = 6
)

// 카카오톡 '전체보기'용 제로폭 문자를 채워 본문을 접는다.
func SeeMore(body, header string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	header = strings.TrimSpace(header)

	var b strings.Builder
	b.Grow(len(body) + len(header) + SeeMorePadding*len(zeroWidthSpace) + 1)
	b.WriteString(header)
	b.WriteString(strings.Repeat(zeroWidthSpace, SeeMorePadding))
	if !strings.HasPrefix(body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(body)
	return b.String()
}

// Fold keeps the first line visible and hides the rest behind '전체보기'
// once text runs past maxRows lines. maxRows <= 0 disables folding.
func Fold(text string, maxRows int) string {
	if maxRows <= 0 || strings.Count(text, "\n")+1 <= maxRows {
		return text
	}
	header, body, _ := strings.Cut(text, "\n")
	return SeeMore(body, header)
}
