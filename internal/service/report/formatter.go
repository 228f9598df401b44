package report

import (
	"fmt"
	"strings"

	"TwsePulse/internal/domain/models"
)

const maxSharedShown = 5

// Formatter renders analytics results as notification report text. Display
// rules (ratio threshold, member truncation) live here, not in the engines.
type Formatter struct {
	threshold float64
}

// New creates a Formatter with the given overlap display threshold.
func New(threshold float64) *Formatter {
	return &Formatter{threshold: threshold}
}

// Overlap renders an overlap result, keeping only pairs above the
// threshold and at most five shared members per pair.
func (f *Formatter) Overlap(res models.OverlapResult) string {
	var b strings.Builder
	b.WriteString("📊 ETF 重疊成分股分析報告\n\n")

	shown := 0
	for _, p := range res.Pairs {
		if p.Ratio <= f.threshold {
			continue
		}
		shown++
		fmt.Fprintf(&b, "🔍 %s 與 %s 重疊分析：\n", p.FundA, p.FundB)
		fmt.Fprintf(&b, "重疊率：%.2f%%\n", p.Ratio*100)
		b.WriteString("共同成分股：\n")
		for i, s := range p.Shared {
			if i == maxSharedShown {
				fmt.Fprintf(&b, "... 等共 %d 檔\n", len(p.Shared))
				break
			}
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}

	if shown == 0 {
		b.WriteString("目前沒有發現顯著的重疊情況。")
	}
	return b.String()
}

// Quote renders a single quote snapshot.
func (f *Formatter) Quote(q *models.Quote) string {
	arrow := "📈"
	if q.Change < 0 {
		arrow = "📉"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s (%s)\n\n", q.Name, q.Symbol)
	fmt.Fprintf(&b, "💰 當前價格: %g\n", q.Price)
	fmt.Fprintf(&b, "%s 漲跌幅: %g (%.2f%%)\n", arrow, q.Change, q.ChangePercent)
	fmt.Fprintf(&b, "📈 今日最高: %g\n", q.High)
	fmt.Fprintf(&b, "📉 今日最低: %g\n", q.Low)
	fmt.Fprintf(&b, "📊 成交量: %.0f\n", q.Volume)
	fmt.Fprintf(&b, "⏰ 更新時間: %s\n", q.AsOf.Format("2006-01-02 15:04:05"))
	return b.String()
}

// Ranking renders the ETF dividend-yield ranking.
func (f *Formatter) Ranking(entries []models.ETFYield) string {
	if len(entries) == 0 {
		return "目前沒有可用的 ETF 排行資料。"
	}
	var b strings.Builder
	b.WriteString("📊 熱門 ETF 排行（依殖利率排序）\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s\n", e.Symbol, e.Name)
		fmt.Fprintf(&b, "價格：%g 殖利率：%.2f%%\n", e.Price, e.Yield)
		b.WriteString("-------------------\n")
	}
	return b.String()
}
