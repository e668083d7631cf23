package internal

import (
	"fmt"
	"image/png"
	"net/http"
	"net/url"
	"strconv"
	"sync"
)

// FakeWMS is an http.Handler answering GetMap requests with TestImage rasters
// of the requested size. It records every query it receives.
type FakeWMS struct {
	mu      sync.Mutex
	queries []url.Values

	// Fail, when set, is consulted for every request; a non-zero status is returned as is.
	Fail func(query url.Values) int
}

func (f *FakeWMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if f.Fail != nil {
		if status := f.Fail(query); status != 0 {
			http.Error(w, fmt.Sprintf("failed %v", query.Get("LAYERS")), status)
			return
		}
	}

	if query.Get("SERVICE") != "WMS" || query.Get("REQUEST") != "GetMap" {
		w.Header().Set("Content-Type", "application/vnd.ogc.se_xml")
		fmt.Fprint(w, `<?xml version="1.0"?><ServiceExceptionReport><ServiceException>Malformed WMS GetMap request</ServiceException></ServiceExceptionReport>`)
		return
	}

	width, err := strconv.Atoi(query.Get("WIDTH"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := strconv.Atoi(query.Get("HEIGHT"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	png.Encode(w, TestImage(width, height, uint8(len(f.Queries()))))
}

// Queries returns a copy of the recorded queries.
func (f *FakeWMS) Queries() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.queries...)
}
