package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-queue/internal/model"
	"github.com/jwalitptl/clinic-queue/pkg/feed"
)

func TestClient_RepublishesStreamIntoLocalHub(t *testing.T) {
	ev := model.ChangeEvent{Seq: 77, Collection: model.CollectionClinics, Type: model.ChangeUpdate, EntityID: "c1"}
	payload, _ := json.Marshal(ev)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event:heartbeat\ndata:{}\n\n")
		fmt.Fprintf(w, "event:change\ndata:%s\n\n", payload)
		fmt.Fprintf(w, "event:change\ndata:not-json\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	hub := feed.NewHub(feed.Config{BufferSize: 8}, nil, nil)
	defer hub.Close()
	client := NewClient(Config{BaseURL: srv.URL, Token: "tok"}, hub, nil)

	sub, err := client.Subscribe(model.CollectionClinics, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	select {
	case got := <-sub.Events():
		assert.Equal(t, model.ChangeUpdate, got.Type)
		assert.Equal(t, "c1", got.EntityID)
		assert.NotEqual(t, uint64(77), got.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("no event republished")
	}
}

func TestClient_ResyncsAfterReconnect(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		if n > 1 {
			<-r.Context().Done()
		}
	}))
	defer srv.Close()

	hub := feed.NewHub(feed.Config{BufferSize: 8}, nil, nil)
	defer hub.Close()
	client := NewClient(Config{BaseURL: srv.URL, RetryDelay: 10 * time.Millisecond}, hub, nil)

	sub, err := hub.Subscribe(model.CollectionClinics, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	select {
	case got := <-sub.Events():
		assert.Equal(t, model.ChangeResync, got.Type)
		assert.Equal(t, feed.ResyncReconnect, got.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("no resync after reconnect")
	}
}

func TestClient_Snapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case clinicsPath:
			fmt.Fprint(w, `{"success":true,"data":[{"name":"Dental","current_number":4}]}`)
		case displayConfigPath:
			fmt.Fprint(w, `{"success":true,"data":{"id":1,"columns":3}}`)
		default:
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"success":false,"error":{"code":403,"message":"forbidden"}}`)
		}
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL}, feed.NewHub(feed.Config{}, nil, nil), nil)
	ctx := context.Background()

	clinics, err := client.Clinics(ctx)
	require.NoError(t, err)
	require.Len(t, clinics, 1)
	assert.Equal(t, 4, clinics[0].CurrentNumber)

	cfg, err := client.DisplayConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Columns)

	_, err = client.Doctors(ctx)
	assert.ErrorContains(t, err, "forbidden")
}

func TestClient_LoginSetsToken(t *testing.T) {
	screenID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case screenLoginPath:
			var req model.ScreenLoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.ScreenID != screenID || req.Secret != "tv" {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"success":false,"error":{"code":1002,"message":"unauthorized"}}`)
				return
			}
			fmt.Fprint(w, `{"success":true,"data":{"access_token":"fresh","role":"screen"}}`)
		case doctorsPath:
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"success":true,"data":[{"name":"Dr. Salem"}]}`)
		}
	}))
	defer srv.Close()

	hub := feed.NewHub(feed.Config{BufferSize: 8}, nil, nil)
	defer hub.Close()

	bad := NewClient(Config{BaseURL: srv.URL, ScreenID: screenID, Secret: "wrong"}, hub, nil)
	assert.ErrorContains(t, bad.Login(context.Background()), "unauthorized")

	client := NewClient(Config{BaseURL: srv.URL, ScreenID: screenID, Secret: "tv"}, hub, nil)
	require.NoError(t, client.Login(context.Background()))
	doctors, err := client.Doctors(context.Background())
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "Dr. Salem", doctors[0].Name)
}
