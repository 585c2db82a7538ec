package testutil

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/nebula-restclient/pkg/json"
	"github.com/ajitpratap0/nebula-restclient/pkg/timestamp"
)

// OrdersServer serves records at /orders filtered to the [since, until)
// window given as epoch seconds, PageSize records per page. The next page is
// announced as a cursor.
type OrdersServer struct {
	*httptest.Server
	PageSize int

	records []map[string]interface{}
	times   []time.Time

	mu       sync.Mutex
	requests []string
}

// NewOrdersServer parses records, one JSON object per line, and starts
// serving them
func NewOrdersServer(records string, pageSize int) (*OrdersServer, error) {
	f := timestamp.MustNew(OrderTimeFormat, "UTC")
	s := &OrdersServer{PageSize: pageSize}

	sc := bufio.NewScanner(strings.NewReader(records))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, err
		}
		created, _ := rec["created_at"].(string)
		ts, err := f.Parse(created)
		if err != nil {
			return nil, err
		}
		s.records = append(s.records, rec)
		s.times = append(s.times, ts)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s, nil
}

// Requests returns the request URIs seen so far
func (s *OrdersServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *OrdersServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.RequestURI())
	s.mu.Unlock()

	if r.URL.Path != "/orders" {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	since, err1 := strconv.ParseInt(q.Get("since"), 10, 64)
	until, err2 := strconv.ParseInt(q.Get("until"), 10, 64)
	if err1 != nil || err2 != nil {
		http.Error(w, `{"error":"since and until are required"}`, http.StatusBadRequest)
		return
	}
	offset, _ := strconv.Atoi(q.Get("cursor"))

	var matched []map[string]interface{}
	for i, ts := range s.times {
		if ts.Unix() >= since && ts.Unix() < until {
			matched = append(matched, s.records[i])
		}
	}

	page := map[string]interface{}{"data": []interface{}{}}
	if offset < len(matched) {
		end := offset + s.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		page["data"] = matched[offset:end]
		if end < len(matched) {
			page["next"] = strconv.Itoa(end)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}
