package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/user/sermon-catalog-go/internal/model"
)

// Op is a predicate operator
type Op string

const (
	OpEq       Op = "="
	OpLess     Op = "<"
	OpGreaterE Op = ">="
	// OpContains matches a case-insensitive substring in any of Fields
	OpContains Op = "CONTAINS"
)

// Column names accepted by the builder. Predicate text is assembled only
// from these constants.
const (
	ColPreacher       = "preacher"
	ColCategory       = "category"
	ColSearchCategory = "search_category"
	ColLanguage       = "language"
	ColRuntime        = "runtime_minutes"
	ColTitle          = "title"
	ColName           = "name"
)

// Order clauses for the two honored sort keys
const (
	OrderDate   = "date DESC, id DESC"
	OrderClicks = "clicks DESC, id DESC"
)

// Predicate is one structured filter term
type Predicate struct {
	Column string
	Op     Op
	Value  any
	Fields []string
}

// SQL renders the predicate as a placeholder fragment and its arguments
func (p Predicate) SQL() (string, []any) {
	if p.Op == OpContains {
		term, _ := p.Value.(string)
		pattern := "%" + EscapeLike(strings.ToLower(term)) + "%"
		parts := make([]string, len(p.Fields))
		args := make([]any, len(p.Fields))
		for i, f := range p.Fields {
			parts[i] = fmt.Sprintf("LOWER(%s) LIKE ?", f)
			args[i] = pattern
		}
		return "(" + strings.Join(parts, " OR ") + ")", args
	}
	return fmt.Sprintf("%s %s ?", p.Column, p.Op), []any{p.Value}
}

// Match evaluates the predicate against a row in memory
func (p Predicate) Match(v *model.Video) bool {
	if p.Op == OpContains {
		term, _ := p.Value.(string)
		term = strings.ToLower(term)
		for _, f := range p.Fields {
			if strings.Contains(strings.ToLower(textColumn(v, f)), term) {
				return true
			}
		}
		return false
	}

	if p.Column == ColRuntime {
		if v.RuntimeMinutes == nil {
			return false
		}
		limit, _ := p.Value.(float64)
		switch p.Op {
		case OpLess:
			return *v.RuntimeMinutes < limit
		case OpGreaterE:
			return *v.RuntimeMinutes >= limit
		}
		return false
	}

	want, _ := p.Value.(string)
	return p.Op == OpEq && textColumn(v, p.Column) == want
}

func textColumn(v *model.Video, col string) string {
	switch col {
	case ColPreacher:
		return v.Preacher
	case ColCategory:
		return v.Category
	case ColSearchCategory:
		return v.SearchCategory
	case ColLanguage:
		return v.Language
	case ColTitle:
		return v.Title
	case ColName:
		return v.Name
	}
	return ""
}

// Query is a composed, parameterized listing query. Where and Args are
// shared by the row query and its COUNT so totals match the page.
type Query struct {
	Predicates []Predicate
	Where      string
	Args       []any
	Limit      int
	Offset     int
	Sort       Sort
	Order      string
}

// Build composes opts into a Query. Predicates are emitted in a fixed order
// so identical options always yield identical SQL and arguments.
func Build(opts Options) Query {
	var preds []Predicate
	if opts.Preacher != "" {
		preds = append(preds, Predicate{Column: ColPreacher, Op: OpEq, Value: opts.Preacher})
	}
	if opts.Category != "" {
		preds = append(preds, Predicate{Column: ColCategory, Op: OpEq, Value: opts.Category})
	}
	if opts.SearchCategory != "" {
		preds = append(preds, Predicate{Column: ColSearchCategory, Op: OpEq, Value: opts.SearchCategory})
	}
	if opts.Language != "" {
		preds = append(preds, Predicate{Column: ColLanguage, Op: OpEq, Value: opts.Language})
	}
	switch opts.Length {
	case LengthShort:
		preds = append(preds, Predicate{Column: ColRuntime, Op: OpLess, Value: model.LongThresholdMinutes})
	case LengthLong:
		preds = append(preds, Predicate{Column: ColRuntime, Op: OpGreaterE, Value: model.LongThresholdMinutes})
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = ListingLimits.Default()
	}

	q := Query{
		Predicates: preds,
		Limit:      limit,
		Offset:     (page - 1) * limit,
		Sort:       opts.Sort,
	}
	q.compile()
	return q
}

// Search builds a catalog substring search over title, preacher and name
func Search(term string, limit, offset int) Query {
	q := Query{
		Predicates: []Predicate{{
			Op:     OpContains,
			Value:  strings.TrimSpace(term),
			Fields: []string{ColTitle, ColPreacher, ColName},
		}},
		Limit:  limit,
		Offset: offset,
		Sort:   SortDate,
	}
	q.compile()
	return q
}

func (q *Query) compile() {
	parts := make([]string, 0, len(q.Predicates))
	args := make([]any, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		frag, a := p.SQL()
		parts = append(parts, frag)
		args = append(args, a...)
	}
	q.Where = strings.Join(parts, " AND ")
	q.Args = args
	if q.Sort != SortClicks {
		q.Sort = SortDate
	}
	q.Order = OrderDate
	if q.Sort == SortClicks {
		q.Order = OrderClicks
	}
}

// Matches reports whether v satisfies every predicate
func (q Query) Matches(v *model.Video) bool {
	for _, p := range q.Predicates {
		if !p.Match(v) {
			return false
		}
	}
	return true
}

// FilterKey digests the predicate text and arguments. Queries that differ
// only in window or order share it, as do their counts.
func (q Query) FilterKey() string {
	return digest(q.Where, q.Args)
}

func digest(text string, args []any) string {
	h := sha256.New()
	h.Write([]byte(text))
	for _, a := range args {
		fmt.Fprintf(h, "\x00%T:%v", a, a)
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// EscapeLike escapes LIKE wildcards so the term matches literally
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
