// Package textfix 修复目录数据里常见的“脏文本”：编码错乱、HTML 实体、控制字符、全角字母等。
//
// 只做修复，不删改内容：尖括号里的文字（例如 "Alien <Director's Cut>"）原样保留。
// Repair 是幂等的：Repair(Repair(s)) == Repair(s)。
package textfix

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var (
	reANSI   = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	reEntity = regexp.MustCompile(`&(#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6}|[a-zA-Z][a-zA-Z0-9]{1,31});`)
)

var punctReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u2028", "\n",
	"\u2029", "\n",
	"\ufb00", "ff",
	"\ufb01", "fi",
	"\ufb02", "fl",
	"\ufb03", "ffi",
	"\ufb04", "ffl",
	"\ufb05", "st",
	"\ufb06", "st",
	"\u2018", "'",
	"\u2019", "'",
	"\u201a", "'",
	"\u201b", "'",
	"\u201c", `"`,
	"\u201d", `"`,
	"\u201e", `"`,
	"\u201f", `"`,
)

// Repair 返回修复后的文本；空串原样返回。
//
// 反复执行单轮修复直到结果不再变化（多重编码错乱、多层实体每轮剥掉一层）。
// 若单轮修复出现循环，返回循环中字典序最小的串，保证再次修复得到同一结果。
func Repair(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "\uFFFD")

	seen := map[string]int{s: 0}
	trail := []string{s}
	for {
		next := repairOnce(s)
		if next == s {
			return s
		}
		if i, ok := seen[next]; ok {
			return minString(trail[i:])
		}
		seen[next] = len(trail)
		trail = append(trail, next)
		s = next
	}
}

func minString(xs []string) string {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// RepairPtr 对可选字段做修复；nil 表示缺失，保持 nil。
func RepairPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := Repair(*p)
	return &v
}

func repairOnce(s string) string {
	s = reANSI.ReplaceAllString(s, "")
	s = fixMojibake(s)
	s = unescapeEntities(s)
	s = punctReplacer.Replace(s)
	s = fixC1Controls(s)
	return cleanup(s)
}

// fixMojibake 识别“UTF-8 字节被按 Windows-1252/Latin-1 解码”的片段并还原。
//
// 只有当一段单字节可编码字符重新拼回后恰好是一个合法的多字节 UTF-8 序列时才替换，
// 普通的带重音拉丁文本（例如 "Amélie"）不会被误改。
func fixMojibake(s string) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))

	changed := false
	for i := 0; i < len(rs); {
		lead, ok := singleByte(rs[i])
		n := continuationCount(lead)
		if !ok || n == 0 || i+n >= len(rs) {
			b.WriteRune(rs[i])
			i++
			continue
		}

		seq := make([]byte, 0, n+1)
		seq = append(seq, lead)
		for j := 1; j <= n; j++ {
			c, ok := singleByte(rs[i+j])
			if !ok || c < 0x80 || c > 0xBF {
				seq = nil
				break
			}
			seq = append(seq, c)
		}
		if seq == nil {
			b.WriteRune(rs[i])
			i++
			continue
		}

		r, size := utf8.DecodeRune(seq)
		if r == utf8.RuneError || size != len(seq) {
			b.WriteRune(rs[i])
			i++
			continue
		}
		b.WriteRune(r)
		i += n + 1
		changed = true
	}
	if !changed {
		return s
	}
	return b.String()
}

// singleByte 把 rune 映射回它在 Windows-1252（兜底 Latin-1）下的单字节编码。
func singleByte(r rune) (byte, bool) {
	if r < utf8.RuneSelf {
		return byte(r), true
	}
	if c, ok := charmap.Windows1252.EncodeRune(r); ok {
		return c, true
	}
	if r <= 0xFF {
		return byte(r), true
	}
	return 0, false
}

func continuationCount(lead byte) int {
	switch {
	case lead >= 0xC2 && lead <= 0xDF:
		return 1
	case lead >= 0xE0 && lead <= 0xEF:
		return 2
	case lead >= 0xF0 && lead <= 0xF4:
		return 3
	default:
		return 0
	}
}

// unescapeEntities 解码一层 HTML 实体（"&amp;" -> "&"）。
//
// 含有 '<' 的文本可能本身就是带标记的内容，整段保持不动；不含 '<' 时包进 <p> 交给 HTML
// 解析器，解析器只会看到文本节点，不会误删任何内容。
func unescapeEntities(s string) string {
	if strings.Contains(s, "<") || !reEntity.MatchString(s) {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<p>" + s))
	if err != nil {
		return s
	}
	return doc.Find("p").First().Text()
}

// fixC1Controls 把残留的 C1 控制字符按 Windows-1252 解释（例如 U+0092 -> ’）。
func fixC1Controls(s string) string {
	if !strings.ContainsFunc(s, isC1) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if !isC1(r) {
			return r
		}
		return charmap.Windows1252.DecodeByte(byte(r))
	}, s)
}

func isC1(r rune) bool { return r >= 0x80 && r <= 0x9F }

func isJunk(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	return unicode.IsControl(r) || r == '\ufeff' || r == '\ufffe'
}

func cleanup(s string) string {
	t := transform.Chain(runes.Remove(runes.Predicate(isJunk)), width.Fold, norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
