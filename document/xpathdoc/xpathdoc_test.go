package xpathdoc

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/xscrape/scrape"
)

const listingHTML = `<html><body>
<div class="list">
  <div class="item"><a href="/a">First</a><div>12</div></div>
  <div class="item"><a href="/b">Second</a></div>
</div>
</body></html>`

type item struct {
	URL   string  `json:"url" query:".//a/@href"`
	Votes *string `json:"votes" query:"./div/text()"`
}

type list struct {
	Items []item `json:"items" query:"//div[@class='list']/div[@class='item']"`
}

func strp(s string) *string { return &s }

func TestBindHTML(t *testing.T) {
	doc, err := HTML([]byte(listingHTML))
	require.NoError(t, err)

	b := scrape.MustBinder[list]()
	got, err := b.Materialize(doc, nil)
	require.NoError(t, err)

	want := list{Items: []item{
		{URL: "/a", Votes: strp("12")},
		{URL: "/b"},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Materialize() mismatch (-want +got):\n%s", diff)
	}

	again, err := b.Materialize(doc, nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(got, again), "repeated calls are structurally equal")
}

func TestEvaluate(t *testing.T) {
	doc, err := HTML([]byte(listingHTML))
	require.NoError(t, err)

	t.Run("node set", func(t *testing.T) {
		ms, err := doc.Evaluate("//a", nil)
		require.NoError(t, err)
		var texts []string
		for m := range ms {
			n, ok := m.Node()
			require.True(t, ok)
			v, err := doc.NodeValue(n)
			require.NoError(t, err)
			texts = append(texts, v)
		}
		assert.Equal(t, []string{"First", "Second"}, texts)
	})

	t.Run("restartable", func(t *testing.T) {
		ms, err := doc.Evaluate("//a/@href", nil)
		require.NoError(t, err)
		count := func() int {
			n := 0
			for range ms {
				n++
			}
			return n
		}
		assert.Equal(t, 2, count())
		assert.Equal(t, 2, count())
	})

	t.Run("scalar results", func(t *testing.T) {
		ms, err := doc.Evaluate("count(//a)", nil)
		require.NoError(t, err)
		var got []any
		for m := range ms {
			v, ok := m.Scalar()
			require.True(t, ok)
			got = append(got, v)
		}
		assert.Equal(t, []any{float64(2)}, got)
	})

	t.Run("scoped", func(t *testing.T) {
		items, err := doc.Evaluate("//div[@class='item']", nil)
		require.NoError(t, err)
		var scopes []scrape.Node
		for m := range items {
			n, _ := m.Node()
			scopes = append(scopes, n)
		}
		require.Len(t, scopes, 2)

		ms, err := doc.Evaluate("./a/@href", scopes[1])
		require.NoError(t, err)
		for m := range ms {
			n, _ := m.Node()
			v, err := doc.NodeValue(n)
			require.NoError(t, err)
			assert.Equal(t, "/b", v)
		}
	})

	t.Run("invalid query", func(t *testing.T) {
		_, err := doc.Evaluate("//a[", nil)
		assert.ErrorContains(t, err, "invalid xpath")
	})

	t.Run("foreign scope", func(t *testing.T) {
		_, err := doc.Evaluate(".", 42)
		assert.Error(t, err)
	})
}

func TestBindXML(t *testing.T) {
	type entry struct {
		ID    string   `json:"id" query:"@id"`
		Title string   `json:"title" query:"title"`
		Tags  []string `json:"tags" query:"tag"`
	}
	type feed struct {
		Name    string  `json:"name" query:"/feed/@name"`
		Entries []entry `json:"entries" query:"/feed/entry"`
	}

	doc, err := XML([]byte(`<?xml version="1.0"?>
<feed name="news">
  <entry id="1"><title>One</title><tag>a</tag><tag>b</tag></entry>
  <entry id="2"><title>Two</title></entry>
</feed>`))
	require.NoError(t, err)

	got, err := scrape.MustBinder[feed]().Materialize(doc, nil)
	require.NoError(t, err)
	assert.Equal(t, feed{Name: "news", Entries: []entry{
		{ID: "1", Title: "One", Tags: []string{"a", "b"}},
		{ID: "2", Title: "Two", Tags: []string{}},
	}}, got)

	t.Run("number result on optional field", func(t *testing.T) {
		type counted struct {
			Count *string `json:"count" query:"count(/feed/entry)"`
		}
		_, err := scrape.MustBinder[counted]().Materialize(doc, nil)
		var ce *scrape.ConversionError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "number result is not a string", ce.Reason)
	})

	t.Run("string function result", func(t *testing.T) {
		type named struct {
			Name string `json:"name" query:"string(/feed/@name)"`
		}
		got, err := scrape.MustBinder[named]().Materialize(doc, nil)
		require.NoError(t, err)
		assert.Equal(t, "news", got.Name)
	})
}

func TestParseXML_Malformed(t *testing.T) {
	_, err := XML([]byte("<root><unclosed></root>"))
	assert.ErrorContains(t, err, "parsing XML")
}
