package venstar

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
)

// fakeVenstar emulates the local API of an Explorer Mini.
type fakeVenstar struct {
	mu           sync.Mutex
	info         map[string]any
	controls     []url.Values
	infoStatus   int    // non-zero overrides the /query/info status
	infoBody     string // non-empty overrides the /query/info body
	controlReply string

	srv *httptest.Server
}

func newFakeVenstar(t *testing.T) *fakeVenstar {
	t.Helper()
	f := &fakeVenstar{
		info: map[string]any{
			"name":      "Hallway",
			"mode":      1,
			"state":     0,
			"fan":       0,
			"tempunits": 1,
			"spacetemp": 20.5,
			"heattemp":  21,
			"cooltemp":  24,
		},
		controlReply: `{"success":true}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /query/info", f.handleInfo)
	mux.HandleFunc("POST /control", f.handleControl)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeVenstar) URL() string {
	return f.srv.URL
}

func (f *fakeVenstar) set(key string, v any) {
	f.mu.Lock()
	f.info[key] = v
	f.mu.Unlock()
}

func (f *fakeVenstar) getControls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]url.Values, len(f.controls))
	copy(out, f.controls)
	return out
}

func (f *fakeVenstar) handleInfo(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.infoStatus != 0 {
		http.Error(w, "unavailable", f.infoStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if f.infoBody != "" {
		_, _ = w.Write([]byte(f.infoBody))
		return
	}
	_ = json.NewEncoder(w).Encode(f.info)
}

func (f *fakeVenstar) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
		http.Error(w, "bad content type", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.controls = append(f.controls, r.PostForm)
	_, _ = w.Write([]byte(f.controlReply))
	if f.controlReply != `{"success":true}` {
		return
	}
	for _, key := range []string{"mode", "heattemp", "cooltemp", "fan"} {
		if v := r.PostForm.Get(key); v != "" {
			n, _ := strconv.Atoi(v)
			f.info[key] = n
		}
	}
}
