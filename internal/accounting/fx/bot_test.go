package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const botPayload = `{"result":{"success":"true","data":{"data_detail":[
{"period":"2024-03-14","currency_id":"USD","mid_rate":"35.9001"},
{"period":"2024-03-15","currency_id":"USD","mid_rate":"36.0102"},
{"period":"2024-03-16","currency_id":"USD","mid_rate":""}
]}}}`

func TestBOTClientPicksLatestPublishedRate(t *testing.T) {
	var gotQuery, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-IBM-Client-Id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(botPayload))
	}))
	defer srv.Close()

	client := NewBOTClient(srv.URL, "client-123", srv.Client())
	snap, err := client.Fetch(context.Background(), "USD", time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "36.0102", snap.Rate.String())
	require.Equal(t, SourceBOT, snap.Source)
	require.Equal(t, "2024-03-17", snap.Date.Format(time.DateOnly))
	require.Contains(t, gotQuery, "currency=USD")
	require.Contains(t, gotQuery, "start_period=2024-03-10")
	require.Equal(t, "client-123", gotHeader)
}

func TestBOTClientNoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"success":"true","data":{"data_detail":[]}}}`))
	}))
	defer srv.Close()
	_, err := NewBOTClient(srv.URL, "", srv.Client()).Fetch(context.Background(), "EUR", march)
	require.ErrorIs(t, err, ErrRateNotFound)
}

func TestBOTClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err := NewBOTClient(srv.URL, "", srv.Client()).Fetch(context.Background(), "EUR", march)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRateNotFound)
}
