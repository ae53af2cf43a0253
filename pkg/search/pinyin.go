package search

import (
	"strings"

	"github.com/mozillazg/go-pinyin"
)

// pinyinArgs 汉字转拼音配置
// 非汉字字符（字母数字）原样保留，保证 "TCL科技" 这类名称可检索
var pinyinArgs = func() pinyin.Args {
	a := pinyin.NewArgs()
	a.Fallback = func(r rune, _ pinyin.Args) []string {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return []string{strings.ToLower(string(r))}
		}
		return nil
	}
	return a
}()

// namePinyin 计算名称的全拼和首字母缩写，均为小写
// 如 "平安银行" -> ("pinganyinhang", "payh")
func namePinyin(name string) (full, initials string) {
	syllables := pinyin.LazyPinyin(name, pinyinArgs)

	var fb, ib strings.Builder
	for _, syl := range syllables {
		if syl == "" {
			continue
		}
		fb.WriteString(syl)
		ib.WriteByte(syl[0])
	}

	return fb.String(), ib.String()
}
