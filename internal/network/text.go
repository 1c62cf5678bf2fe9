package network

import (
	"strings"
	"unicode/utf8"
)

// DecodeText 将回显内容转为日志文本，并去掉末尾的 CR/LF。仅用于日志，不影响回显的字节。
//
// 每个非法序列的最长合法前缀替换为一个 U+FFFD：
// "a\xff\xfeb" 得到 "a��b"，截断的 "\xe2\x82" 只得到一个 U+FFFD。
func DecodeText(p []byte) string {
	var b strings.Builder
	b.Grow(len(p))
	for len(p) > 0 {
		r, size := utf8.DecodeRune(p)
		if r == utf8.RuneError && size == 1 {
			size = invalidPrefixLen(p)
		}
		b.WriteRune(r)
		p = p[size:]
	}
	return strings.TrimRight(b.String(), "\r\n")
}

// invalidPrefixLen 返回 p 开头非法序列中仍可能组成合法字符的字节数，至少为 1。
func invalidPrefixLen(p []byte) int {
	need, lo, hi := 0, byte(0x80), byte(0xBF)
	switch c := p[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c == 0xF4:
		need, hi = 3, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	default:
		return 1
	}
	n := 1
	for n <= need && n < len(p) && p[n] >= lo && p[n] <= hi {
		n++
		lo, hi = 0x80, 0xBF
	}
	return n
}
