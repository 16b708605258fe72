// Package extractor turns rendered encyclopedia markup into Evidence: the page's
// paragraph text and the data tables that survive the table filter chain.
package extractor

import (
	"errors"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ron-matt163/wiki-llm/internal/models"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// NoiseSelector matches nodes whose content never reaches the output.
const NoiseSelector = "script, style, noscript, meta, header, footer, nav, aside"

type ExtractorConfig struct {
	// TableClass is the class the source puts on genuine data tables.
	TableClass string
	Logger     *zap.Logger
}

type Extractor struct {
	config ExtractorConfig
	logger *zap.Logger
}

func NewWithConfig(config ExtractorConfig) *Extractor {
	if config.TableClass == "" {
		config.TableClass = "wikitable"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{config: config, logger: logger}
}

func New() *Extractor {
	return NewWithConfig(ExtractorConfig{})
}

// Extract never fails. Unreadable markup gives an empty Evidence.
func (e *Extractor) Extract(markup string) models.Evidence {
	var ev models.Evidence

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.logger.Warn("unreadable markup", zap.Error(err))
		return ev
	}
	doc.Find(NoiseSelector).Remove()

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := p.Text()
		if strings.TrimSpace(text) == "" {
			return
		}
		paragraphs = append(paragraphs, text)
	})
	ev.Text = strings.Join(paragraphs, "\n")

	doc.Find("table." + e.config.TableClass).Each(func(i int, sel *goquery.Selection) {
		t, err := Admit(ReadTable(sel))
		switch {
		case err == nil:
			ev.Tables = append(ev.Tables, t)
		case errors.Is(err, ErrTableMalformed):
			e.logger.Info("skipping table: could not parse", zap.Int("table", i), zap.Error(err))
		default:
			e.logger.Debug("table rejected", zap.Int("table", i), zap.Error(err))
		}
	})

	return ev
}

// ReadTable reads the rows that belong to the table itself. Rows of nested tables
// are not included.
func ReadTable(table *goquery.Selection) RawTable {
	var rt RawTable
	add := func(inHead bool) func(int, *goquery.Selection) {
		return func(_ int, tr *goquery.Selection) {
			row := RawRow{InHead: inHead}
			tr.ChildrenFiltered("th, td").Each(func(_ int, c *goquery.Selection) {
				row.Cells = append(row.Cells, RawCell{
					Text:    cellText(c),
					Header:  goquery.NodeName(c) == "th",
					ColSpan: spanAttr(c, "colspan"),
					RowSpan: spanAttr(c, "rowspan"),
				})
			})
			rt.Rows = append(rt.Rows, row)
		}
	}

	table.Children().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "thead":
			s.ChildrenFiltered("tr").Each(add(true))
		case "tbody", "tfoot":
			s.ChildrenFiltered("tr").Each(add(false))
		case "tr":
			add(false)(0, s)
		}
	})
	return rt
}

func spanAttr(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 1
	}
	return n
}

func cellText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		writeText(&b, n, "")
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// FlattenText returns every text node of the document separated by a single space,
// with runs of whitespace collapsed. Noise nodes are removed first.
func FlattenText(doc *goquery.Document) string {
	doc.Find(NoiseSelector).Remove()
	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n, " ")
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func writeText(b *strings.Builder, n *html.Node, sep string) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteString(sep)
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteString(" ")
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c, sep)
	}
}

var std = New()

// Extract runs the default extractor over markup.
func Extract(markup string) models.Evidence {
	return std.Extract(markup)
}
