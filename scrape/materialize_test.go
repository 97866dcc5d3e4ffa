package scrape

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

type listItem struct {
	URL   string  `json:"url" query:"a/@href"`
	Votes *string `json:"votes" query:"div"`
}

type listing struct {
	Items []listItem `json:"items" query:"list/item"`
}

func listingDoc() *tdoc {
	return newDoc(
		el("list", "",
			el("item", "", el("a", "").attr("href", "/a"), el("div", "12")),
			el("item", "", el("a", "").attr("href", "/b")),
		),
	)
}

func TestMaterialize_ListOfItems(t *testing.T) {
	b, err := NewBinder[listing]()
	require.NoError(t, err)

	got, err := b.Materialize(listingDoc(), nil)
	require.NoError(t, err)
	assert.Equal(t, listing{Items: []listItem{
		{URL: "/a", Votes: ptr("12")},
		{URL: "/b", Votes: nil},
	}}, got)
}

type titled struct {
	Title string `json:"title" query:"h1"`
	Body  string `json:"body" query:"p"`
}

func TestMaterialize_RequiredMissing(t *testing.T) {
	b := MustBinder[titled]()
	doc := newDoc(el("p", "text"))

	got, err := b.Materialize(doc, nil)
	require.Error(t, err)
	assert.Equal(t, titled{}, got, "no partial value")
	assert.True(t, errors.Is(err, ErrMissing))

	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, Path{"title"}, ee.Path)
	assert.Equal(t, 0, doc.evals["p"], "later fields are not evaluated after a failure")
}

func TestMaterialize_Shapes(t *testing.T) {
	type page struct {
		Tags     []string `json:"tags" query:"tag"`
		Missing  []string `json:"missing" query:"nope"`
		Subtitle *string  `json:"subtitle" query:"h2"`
	}
	b := MustBinder[page]()

	t.Run("list keeps evaluator order", func(t *testing.T) {
		got, err := b.Materialize(newDoc(el("tag", "c"), el("tag", "a"), el("tag", "b")), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b"}, got.Tags)
		assert.NotNil(t, got.Missing)
		assert.Empty(t, got.Missing)
		assert.Nil(t, got.Subtitle)
	})

	t.Run("optional present", func(t *testing.T) {
		got, err := b.Materialize(newDoc(el("h2", "sub"), el("h2", "second")), nil)
		require.NoError(t, err)
		assert.Equal(t, ptr("sub"), got.Subtitle)
	})

	t.Run("list element without value fails", func(t *testing.T) {
		bad := el("tag", "b")
		bad.opaque = true
		_, err := b.Materialize(newDoc(el("tag", "a"), bad), nil)
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, Path{"tags", 1}, ee.Path)
		var ce *ConversionError
		assert.ErrorAs(t, err, &ce)
	})
}

func TestMaterialize_OptionalPresentButInvalid(t *testing.T) {
	type counted struct {
		Count *string `json:"count" query:"=3"`
	}
	_, err := MustBinder[counted]().Materialize(newDoc(), nil)
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Reason, "number")

	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, Path{"count"}, ee.Path)
}

type votes struct {
	Votes string `json:"votes" query:"span"`
}

type post struct {
	Title votes `json:"title" query:"h"`
}

func TestMaterialize_NestedPath(t *testing.T) {
	b := MustBinder[post]()

	t.Run("inner failure", func(t *testing.T) {
		_, err := b.Materialize(newDoc(el("h", "")), nil)
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, Path{"title", "votes"}, ee.Path)
		assert.Equal(t, `field "title.votes": query "span": no matches`, err.Error())
	})

	t.Run("outer failure", func(t *testing.T) {
		_, err := b.Materialize(newDoc(), nil)
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, Path{"title"}, ee.Path)
	})

	t.Run("scalar where node expected", func(t *testing.T) {
		type attrPost struct {
			Title votes `json:"title" query:"h/@id"`
		}
		_, err := MustBinder[attrPost]().Materialize(newDoc(el("h", "").attr("id", "x")), nil)
		var ce *ConversionError
		require.ErrorAs(t, err, &ce)
		assert.Contains(t, ce.Reason, "node is required")
	})
}

type inner struct {
	Name string `json:"name" query:"n"`
}

type outer struct {
	Label  string  `json:"label" query:"label"`
	Inners []inner `json:"inners" query:"in"`
}

type nest struct {
	Outers []outer `json:"outers" query:"out"`
}

type wrapper struct {
	E *inner `json:"e" query:"e"`
	V inner  `json:"v" query:"v" scrape:"optional"`
}

func TestMaterialize_OptionalNestedOne(t *testing.T) {
	b := MustBinder[wrapper]()

	t.Run("no matches", func(t *testing.T) {
		got, err := b.Materialize(newDoc(), nil)
		require.NoError(t, err)
		assert.Nil(t, got.E)
		assert.Equal(t, inner{}, got.V)
	})

	t.Run("matches", func(t *testing.T) {
		got, err := b.Materialize(newDoc(el("e", "", el("n", "x")), el("v", "", el("n", "y"))), nil)
		require.NoError(t, err)
		require.NotNil(t, got.E)
		assert.Equal(t, inner{Name: "x"}, *got.E)
		assert.Equal(t, inner{Name: "y"}, got.V)
	})

	t.Run("record schema", func(t *testing.T) {
		in, err := NewRecordSchema("in", Field("name", "n"))
		require.NoError(t, err)
		s, err := NewRecordSchema("wrap",
			Field("e", "e").WithNested(in, NestedOne).WithMode(Optional),
		)
		require.NoError(t, err)

		got, err := Materialize(s, newDoc(), nil)
		require.NoError(t, err)
		assert.Equal(t, Record{"e": nil}, got)

		got, err = Materialize(s, newDoc(el("e", "", el("n", "x"))), nil)
		require.NoError(t, err)
		assert.Equal(t, Record{"e": Record{"name": "x"}}, got)
	})
}

func TestMaterialize_TwoLevelNesting(t *testing.T) {
	const n, m = 3, 4
	var outs []*tnode
	for i := 0; i < n; i++ {
		kids := []*tnode{el("label", fmt.Sprintf("o%d", i))}
		for j := 0; j < m; j++ {
			kids = append(kids, el("in", "", el("n", fmt.Sprintf("o%d-i%d", i, j))))
		}
		outs = append(outs, el("out", "", kids...))
	}

	got, err := MustBinder[nest]().Materialize(newDoc(outs...), nil)
	require.NoError(t, err)
	require.Len(t, got.Outers, n)
	for i, o := range got.Outers {
		assert.Equal(t, fmt.Sprintf("o%d", i), o.Label)
		require.Len(t, o.Inners, m)
		for j, in := range o.Inners {
			assert.Equal(t, fmt.Sprintf("o%d-i%d", i, j), in.Name)
		}
	}

	t.Run("list element failure carries index", func(t *testing.T) {
		doc := newDoc(el("out", "", el("label", "ok")), el("out", "", el("label", "x"), el("in", "")))
		_, err := MustBinder[nest]().Materialize(doc, nil)
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, Path{"outers", 1, "inners", 0, "name"}, ee.Path)
		assert.Equal(t, "outers[1].inners[0].name", ee.Path.String())
	})
}

func TestMaterialize_Transform(t *testing.T) {
	type link struct {
		URL string `json:"url" query:"a/@href" scrape:"transform=abs"`
	}
	calls := 0
	abs := Fn("abs", func(v string) (string, error) {
		calls++
		return "https://x" + v, nil
	})

	b, err := NewBinder[link](WithTransforms(map[string]Transform{"abs": abs}))
	require.NoError(t, err)

	got, err := b.Materialize(newDoc(el("a", "").attr("href", "/r/y")), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://x/r/y", got.URL)
	assert.Equal(t, 1, calls)

	t.Run("failure is a conversion error", func(t *testing.T) {
		reject := StringFunc("reject", func(string) (string, error) { return "", errors.New("nope") })
		b, err := NewBinder[link](WithTransforms(map[string]Transform{"abs": reject}))
		require.NoError(t, err)

		_, err = b.Materialize(newDoc(el("a", "").attr("href", "/r/y")), nil)
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, Path{"url"}, ee.Path)
		var ce *ConversionError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "transform reject", ce.Reason)
	})

	t.Run("string func over shapes", func(t *testing.T) {
		up := StringFunc("upper", func(s string) (string, error) { return strings.ToUpper(s), nil })
		s, err := NewRecordSchema("r",
			Field("one", "a").WithTransform(up),
			Field("opt", "b").WithShape(OptionalScalar).WithMode(Optional).WithTransform(up),
			Field("many", "a").WithShape(StringList).WithTransform(up),
		)
		require.NoError(t, err)
		got, err := Materialize(s, newDoc(el("a", "x"), el("a", "y")), nil)
		require.NoError(t, err)
		assert.Equal(t, Record{"one": "X", "opt": (*string)(nil), "many": []string{"X", "Y"}}, got)
	})
}

func TestMaterialize_QueryError(t *testing.T) {
	type broken struct {
		X string `json:"x" query:"!oops"`
	}
	_, err := MustBinder[broken]().Materialize(newDoc(), nil)
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "!oops", qe.Query)
	assert.ErrorIs(t, err, errBadQuery)
}

func TestMaterialize_DefaultAndIgnore(t *testing.T) {
	type meta struct {
		Source string  `json:"source" query:"src" scrape:"default=web"`
		Lang   *string `json:"lang" query:"lang" scrape:"default"`
		Seen   int     `scrape:"default"`
		Note   string  `scrape:"-"`
		hidden string
	}
	doc := newDoc(el("src", "file"), el("lang", "en"))
	got, err := MustBinder[meta]().Materialize(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, meta{Source: "web"}, got)
	assert.Empty(t, doc.evals, "defaulted and ignored fields never query")
}

type comment struct {
	Text    string    `json:"text" query:"text"`
	Replies []comment `json:"replies" query:"reply"`
}

func TestMaterialize_RecursiveType(t *testing.T) {
	doc := newDoc(el("reply", "", el("text", "a"),
		el("reply", "", el("text", "b")),
		el("reply", "", el("text", "c"), el("reply", "", el("text", "d"))),
	))
	got, err := MustBinder[comment]().MaterializeAll(doc, nil, "reply")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, comment{Text: "a", Replies: []comment{
		{Text: "b", Replies: []comment{}},
		{Text: "c", Replies: []comment{{Text: "d", Replies: []comment{}}}},
	}}, got[0])
}

func TestMaterialize_Scoped(t *testing.T) {
	doc := listingDoc()
	ms, err := doc.Evaluate("list/item", nil)
	require.NoError(t, err)
	var second Node
	i := 0
	for m := range ms {
		if i == 1 {
			second, _ = m.Node()
		}
		i++
	}

	got, err := MustBinder[listItem]().Materialize(doc, second)
	require.NoError(t, err)
	assert.Equal(t, listItem{URL: "/b"}, got)
}

func TestMaterialize_Idempotent(t *testing.T) {
	doc := listingDoc()
	b := MustBinder[listing]()
	first, err := b.Materialize(doc, nil)
	require.NoError(t, err)
	second, err := b.Materialize(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	first.Items[0].URL = "changed"
	assert.Equal(t, "/a", second.Items[0].URL, "results do not share memory")
}

func TestMaterialize_Concurrent(t *testing.T) {
	b := MustBinder[listing]()
	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := b.Materialize(listingDoc(), nil)
			if err == nil && len(got.Items) != 2 {
				err = fmt.Errorf("got %d items", len(got.Items))
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestMaterializeAll_IndexInPath(t *testing.T) {
	doc := newDoc(el("list", "",
		el("item", "", el("a", "").attr("href", "/a")),
		el("item", ""),
	))
	_, err := MustBinder[listItem]().MaterializeAll(doc, nil, "list/item")
	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, Path{1, "url"}, ee.Path)
	assert.Equal(t, "[1].url", ee.Path.String())

	_, err = MustBinder[listItem]().MaterializeAll(doc, nil, "!bad")
	var qe *QueryError
	assert.ErrorAs(t, err, &qe)
}
