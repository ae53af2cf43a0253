package symbol

import (
	"strings"
)

// 市场后缀常量
const (
	MarketSZ = "SZ" // 深圳证券交易所
	MarketSH = "SH" // 上海证券交易所
	MarketHK = "HK" // 香港联合交易所
	MarketUS = "US" // 美国市场
)

// marketFlags 东方财富 secid 的市场标志位
var marketFlags = map[string]string{
	MarketSZ: "0",
	MarketSH: "1",
	MarketHK: "116",
	MarketUS: "105",
}

// Symbol 标准化后的股票标识
// Base 为纯代码部分，Market 为市场后缀（可能为空）
type Symbol struct {
	Base   string
	Market string
}

// Parse 解析用户输入的股票代码
// 支持 "000001"、"000001.SZ"、"600519.sh" 等形式，统一转为大写
func Parse(raw string) Symbol {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if base, market, ok := strings.Cut(code, "."); ok {
		return Symbol{Base: base, Market: market}
	}
	return Symbol{Base: code}
}

// HasMarket 是否带有市场后缀
func (s Symbol) HasMarket() bool {
	return s.Market != ""
}

// String 返回 "代码.市场" 形式；无市场后缀时只返回代码
func (s Symbol) String() string {
	if s.Market == "" {
		return s.Base
	}
	return s.Base + "." + s.Market
}

// Qualified 返回带市场后缀的标识
// 用户未提供后缀时通过 InferMarket 推断补齐
func (s Symbol) Qualified() Symbol {
	if s.HasMarket() {
		return s
	}
	return Symbol{Base: s.Base, Market: InferMarket(s.Base)}
}

// CandidateFilenames 返回本地数据文件的候选文件名
// 带后缀时只有一个候选；未带后缀时本地存储无法预知市场，
// 沪市文件优先于深市文件，两个候选都会被仓库逐一探测
func (s Symbol) CandidateFilenames() []string {
	if s.HasMarket() {
		return []string{s.Base + "." + s.Market + ".csv"}
	}
	return []string{
		s.Base + "." + MarketSH + ".csv",
		s.Base + "." + MarketSZ + ".csv",
	}
}

// SecID 返回东方财富接口所需的 secid，格式为 "<市场标志>.<代码>"
// 深市 0、沪市 1、港股 116、美股 105
func (s Symbol) SecID() string {
	q := s.Qualified()
	flag, ok := marketFlags[q.Market]
	if !ok {
		// 未知后缀按深市处理，与无后缀时的兜底一致
		flag = marketFlags[MarketSZ]
	}
	return flag + "." + q.Base
}

// InferMarket 根据代码形态推断市场，是一个明确标注的兜底函数：
// 它只在用户没有提供市场后缀时被调用，不会覆盖显式给出的市场。
// 规则：纯数字且长度不超过5位视为港股；以6开头视为沪市；其余视为深市。
// 这是近似推断而非权威查表，例如北交所代码会被误判为深市。
func InferMarket(base string) string {
	if isDigits(base) && len(base) <= 5 {
		return MarketHK
	}
	if strings.HasPrefix(base, "6") {
		return MarketSH
	}
	return MarketSZ
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
