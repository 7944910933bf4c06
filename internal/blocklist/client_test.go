package blocklist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite simulates the listing pages: a GET serving the token and server
// dropdown, and a POST serving paginated day data.
type fakeSite struct {
	mu         sync.Mutex
	token      string
	gets       int
	posts      []int               // page numbers requested
	days       map[string][]Record // slash date -> all records
	rejectOne  bool                // reject the next POST with 400
	rejectPage int                 // reject this page number once with 401
	rotateTo   string              // new token issued alongside the rejection
	failDays   map[string]bool     // slash date -> answer 500
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		token:    "tok-1",
		days:     map[string][]Record{},
		failDays: map[string]bool{},
	}
}

func (f *fakeSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/blacklist", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			f.mu.Lock()
			f.gets++
			token := f.token
			f.mu.Unlock()
			fmt.Fprintf(w, `<html><body>
				<input name="__RequestVerificationToken" type="hidden" value=%q />
				<select id="ddlServer">
					<option value="">choose</option>
					<option value="4">challenger</option>
					<option value="7">other</option>
				</select>
			</body></html>`, token)
			return
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		page, _ := strconv.Atoi(r.FormValue("page"))
		if f.rejectOne {
			f.rejectOne = false
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.rejectPage != 0 && page == f.rejectPage {
			f.rejectPage = 0
			if f.rotateTo != "" {
				f.token = f.rotateTo
				f.rotateTo = ""
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.FormValue("__RequestVerificationToken") != f.token || r.Header.Get("X-CSRF-TOKEN") != f.token {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		date := r.FormValue("blockDate")
		if f.failDays[date] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		f.posts = append(f.posts, page)

		all := f.days[date]
		for i := range all {
			all[i].TotalNum = json.Number(strconv.Itoa(len(all)))
		}
		lo := (page - 1) * pageSize
		hi := lo + pageSize
		if lo > len(all) {
			lo = len(all)
		}
		if hi > len(all) {
			hi = len(all)
		}
		json.NewEncoder(w).Encode(pageResponse{ListData: all[lo:hi]})
	})
	return mux
}

func newSiteClient(t *testing.T, site *fakeSite) *Client {
	t.Helper()
	srv := httptest.NewServer(site.handler())
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientOptions{
		ServerName: "challenger",
		BaseURL:    srv.URL,
		Delay:      time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func records(n int, prefix string) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			CharacterName: fmt.Sprintf("%s-%d", prefix, i),
			Reason:        "abuse",
			BlockDate:     "2026/08/20",
			UnblockDate:   "2079/01/01",
		}
	}
	return out
}

func TestClient_EstablishParsesTokenAndServerID(t *testing.T) {
	site := newFakeSite()
	c := newSiteClient(t, site)

	require.NoError(t, c.Establish(context.Background()))
	assert.Equal(t, "4", c.ServerID())
	assert.Equal(t, "tok-1", c.token)
}

func TestClient_EstablishUnknownServer(t *testing.T) {
	site := newFakeSite()
	srv := httptest.NewServer(site.handler())
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientOptions{ServerName: "nonexistent", BaseURL: srv.URL, Delay: time.Millisecond})
	require.NoError(t, err)
	assert.Error(t, c.Establish(context.Background()))
}

func TestClient_FetchDayPaginates(t *testing.T) {
	site := newFakeSite()
	site.days["2026/08/20"] = records(150, "p")
	c := newSiteClient(t, site)

	got, err := c.FetchDay(context.Background(), "2026/08/20")
	require.NoError(t, err)
	assert.Len(t, got, 150)
	assert.Equal(t, []int{1, 2}, site.posts)
}

func TestClient_FetchDayEmpty(t *testing.T) {
	site := newFakeSite()
	c := newSiteClient(t, site)

	got, err := c.FetchDay(context.Background(), "2026/08/20")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_ReestablishesOnRejectedSession(t *testing.T) {
	site := newFakeSite()
	site.days["2026/08/20"] = records(1, "p")
	c := newSiteClient(t, site)

	require.NoError(t, c.Establish(context.Background()))

	// Simulate token expiry: the site rotates its token and rejects the next
	// data request.
	site.mu.Lock()
	site.token = "tok-2"
	site.rejectOne = true
	site.mu.Unlock()

	got, err := c.FetchDay(context.Background(), "2026/08/20")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "tok-2", c.token, "client should have re-read the session page")
	assert.Equal(t, 2, site.gets)
}

func TestClient_ReestablishesMidPagination(t *testing.T) {
	site := newFakeSite()
	site.days["2026/08/20"] = records(150, "p")

	// The session dies between page 1 and page 2: the site rotates its token
	// and answers the first page-2 request with 401.
	site.rejectPage = 2
	site.rotateTo = "tok-2"
	c := newSiteClient(t, site)

	got, err := c.FetchDay(context.Background(), "2026/08/20")
	require.NoError(t, err)
	assert.Len(t, got, 150)
	assert.Equal(t, "tok-2", c.token)
	assert.Equal(t, []int{1, 2}, site.posts)
	assert.Equal(t, 2, site.gets, "one establish up front, one after the rejection")
}
