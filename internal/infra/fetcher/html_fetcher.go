package fetcher

import (
	"bytes"
	"context"

	"github.com/PuerkitoBio/goquery"
)

// HTMLFetcher retrieves a listing or detail page and parses it into a
// goquery.Document for the extraction pipeline's DOM-based stages.
type HTMLFetcher struct {
	http *HTTPFetcher
}

func NewHTMLFetcher(http *HTTPFetcher) *HTMLFetcher {
	return &HTMLFetcher{http: http}
}

// FetchDocument retrieves pageURL and parses its body, or returns (nil,
// result, nil) on a 304 Not Modified response.
func (f *HTMLFetcher) FetchDocument(ctx context.Context, pageURL, etag, lastModified string) (*goquery.Document, *FetchResult, error) {
	result, err := f.http.Get(ctx, pageURL, etag, lastModified)
	if err != nil {
		return nil, nil, err
	}
	if result.NotModified {
		return nil, result, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err != nil {
		return nil, result, err
	}
	return doc, result, nil
}
