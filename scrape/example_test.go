package scrape_test

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/xscrape/document/xpathdoc"
	"github.com/agentic-research/xscrape/scrape"
)

type Post struct {
	URL      string  `json:"url" query:".//a[@data-click-id='body']/@href" scrape:"transform=abs"`
	Title    *string `json:"title" query:".//a[@data-click-id='body']/h3/text()"`
	Comments *string `json:"comments" query:".//a[@data-click-id='comments']/span/text()"`
}

type Listing struct {
	Posts []Post `json:"posts" query:"//div[contains(@class, 'Post') and not(contains(@class, 'promoted'))]"`
}

const page = `<html><body>
<div class="Post"><a data-click-id="body" href="/r/go/1"><h3>Generics</h3></a>
  <a data-click-id="comments"><span>42 comments</span></a></div>
<div class="Post promoted"><a data-click-id="body" href="/ad"><h3>Buy</h3></a></div>
<div class="Post"><a data-click-id="body" href="/r/go/2"><h3>Iterators</h3></a></div>
</body></html>`

var listings = scrape.MustBinder[Listing](scrape.WithTransforms(map[string]scrape.Transform{
	"abs": scrape.StringFunc("abs", func(s string) (string, error) {
		if strings.HasPrefix(s, "http") {
			return s, nil
		}
		return "https://www.reddit.com" + s, nil
	}),
}))

func Example() {
	doc, err := xpathdoc.HTML([]byte(page))
	if err != nil {
		panic(err)
	}
	l, err := listings.Materialize(doc, nil)
	if err != nil {
		panic(err)
	}
	for _, p := range l.Posts {
		comments := "-"
		if p.Comments != nil {
			comments = *p.Comments
		}
		fmt.Printf("%s | %s | %s\n", *p.Title, p.URL, comments)
	}
	// Output:
	// Generics | https://www.reddit.com/r/go/1 | 42 comments
	// Iterators | https://www.reddit.com/r/go/2 | -
}

func ExampleExtractionError() {
	type Author struct {
		Name string `json:"name" query:"./span[@class='name']"`
	}
	type Article struct {
		Author Author `json:"author" query:"//div[@class='author']"`
	}

	doc, _ := xpathdoc.HTML([]byte(`<div class="author"><span>anonymous</span></div>`))
	_, err := scrape.MustBinder[Article]().Materialize(doc, nil)

	var ee *scrape.ExtractionError
	if errors.As(err, &ee) {
		fmt.Println(ee.Path, errors.Is(err, scrape.ErrMissing))
	}
	// Output: author.name true
}
