package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHNServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/maxitem.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("42"))
	})
	mux.HandleFunc("/item/41.json", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "hnpipe/1.0" {
			t.Errorf("unexpected User-Agent %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte(`{"id":41,"type":"story","title":"Show HN: a thing","by":"pg","score":10}`))
	})
	mux.HandleFunc("/item/42.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":42,"type":"comment","by":"dang"}`))
	})
	mux.HandleFunc("/item/43.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	})
	mux.HandleFunc("/item/44.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/item/45.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHackerNews_FetchMaxItemID(t *testing.T) {
	srv := newHNServer(t)
	hn := NewHackerNews(srv.URL+"/", time.Second)

	id, err := hn.FetchMaxItemID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestHackerNews_FetchItemByID(t *testing.T) {
	srv := newHNServer(t)
	hn := NewHackerNews(srv.URL, time.Second)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      int64
		want    map[string]any
		unknown bool
		wantErr bool
	}{
		{
			name: "full story",
			id:   41,
			want: map[string]any{"id": int64(41), "type": "story", "title": "Show HN: a thing", "by": "pg"},
		},
		{
			name: "comment without title",
			id:   42,
			want: map[string]any{"id": int64(42), "type": "comment", "title": nil, "by": "dang"},
		},
		{name: "null body is unknown", id: 43, unknown: true},
		{name: "server error", id: 44, wantErr: true},
		{name: "bad json", id: 45, wantErr: true},
		{name: "not found status", id: 99, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := hn.FetchItemByID(ctx, tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.unknown, item.IsUnknown())
			for field, v := range tt.want {
				assert.Equal(t, v, item.Value(field), field)
			}
		})
	}
}

func TestHackerNews_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
		w.Write([]byte("1"))
	}))
	defer srv.Close()

	hn := NewHackerNews(srv.URL, 50*time.Millisecond)
	_, err := hn.FetchMaxItemID(context.Background())
	assert.Error(t, err)
}

func TestNewHackerNews_Defaults(t *testing.T) {
	hn := NewHackerNews("", 0)
	assert.Equal(t, DefaultBaseURL, hn.baseURL)
	assert.Equal(t, DefaultTimeout, hn.client.Timeout)
}
