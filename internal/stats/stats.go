// Package stats 对合并结果做只读统计：总数、开催形式分布、主办方 Top N。
package stats

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/evmerge/internal/domain"
)

// DefaultTopN 是主办方排行默认保留的条数。
const DefaultTopN = 5

var organizerRe = regexp.MustCompile(`主催[:：]([^。]+)`)

// Options 指定统计使用的列。
type Options struct {
	FormatColumn string
	DetailColumn string
	TopN         int
}

// OptionsFor 由 schema 构造默认 Options。
func OptionsFor(s domain.Schema) Options {
	return Options{FormatColumn: s.Format, DetailColumn: s.Detail, TopN: DefaultTopN}
}

// Summarize 统计 s；不修改 s。
//
// - 开催形式：原样计数（补齐出来的空值也算一类），按次数降序，同次数按首次出现顺序
// - 主办方：从详情字段提取首个 `主催:xxx`（到句号为止），trim 后计数；无匹配的记录不计
func Summarize(s domain.Store, opts Options) domain.Stats {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	formats := newCounter()
	organizers := newCounter()
	for _, r := range s.Records {
		if opts.FormatColumn != "" {
			formats.add(r.Get(opts.FormatColumn))
		}
		if opts.DetailColumn != "" {
			if org, ok := ExtractOrganizer(r.Get(opts.DetailColumn)); ok {
				organizers.add(org)
			}
		}
	}

	out := domain.Stats{
		Total:      s.Len(),
		Formats:    formats.sorted(),
		Organizers: organizers.sorted(),
	}
	if len(out.Organizers) > opts.TopN {
		out.Organizers = out.Organizers[:opts.TopN]
	}
	return out
}

// ExtractOrganizer 从详情文本里提取主办方名称。
// 详情里混有 HTML 片段时先转成纯文本再匹配；名称截止到句号或换行。
func ExtractOrganizer(detail string) (string, bool) {
	text := plainText(detail)
	m := organizerRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	org, _, _ := strings.Cut(strings.TrimSpace(m[1]), "\n")
	org = strings.TrimSpace(org)
	if org == "" {
		return "", false
	}
	return org, true
}

func plainText(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	// br 与块级元素结尾补换行，段落边界即名称边界。
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	return doc.Text()
}

type counter struct {
	order []string
	n     map[string]int
}

func newCounter() *counter { return &counter{n: make(map[string]int)} }

func (c *counter) add(v string) {
	if _, ok := c.n[v]; !ok {
		c.order = append(c.order, v)
	}
	c.n[v]++
}

func (c *counter) sorted() []domain.Count {
	out := make([]domain.Count, 0, len(c.order))
	for _, v := range c.order {
		out = append(out, domain.Count{Value: v, Count: c.n[v]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
