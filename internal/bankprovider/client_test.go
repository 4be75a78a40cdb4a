package bankprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueCard_Success(t *testing.T) {
	var gotBody issueRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v2/card/", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(IssuedCard{
			ID:             "prov_card_1",
			Color:          "COLOR_2",
			Status:         "ORDERED",
			ExpirationDate: "2030-01-01T12:00:00+00:00",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, 0)

	card, err := client.IssueCard(context.Background(), "ext-42", "black")
	require.NoError(t, err)
	require.Equal(t, "prov_card_1", card.ID)
	require.Equal(t, "ORDERED", card.Status)
	require.Equal(t, "COLOR_2", card.Color)

	require.Equal(t, "ext-42", gotBody.UserID)
	require.Equal(t, "COLOR_2", gotBody.Color)
}

func TestIssueCard_ColorMapping(t *testing.T) {
	tests := []struct {
		color string
		code  string
	}{
		{color: "pink", code: "COLOR_1"},
		{color: "black", code: "COLOR_2"},
	}

	for _, tt := range tests {
		t.Run(tt.color, func(t *testing.T) {
			code, err := ColorCode(tt.color)
			require.NoError(t, err)
			require.Equal(t, tt.code, code)
		})
	}

	_, err := ColorCode("blue")
	require.Error(t, err)
}

func TestIssueCard_ClientRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "Invalid input"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := New(srv.URL, 0)

	_, err := client.IssueCard(context.Background(), "invalid_user_id", "black")
	require.ErrorIs(t, err, ErrClientRejected)
}

func TestIssueCard_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "Provider internal error"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL, 0)

	_, err := client.IssueCard(context.Background(), "ext-42", "black")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestIssueCard_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	client := New(srv.URL, 0)

	_, err := client.IssueCard(context.Background(), "ext-42", "black")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestIssueCard_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening anymore

	client := New(srv.URL, 0)

	_, err := client.IssueCard(context.Background(), "ext-42", "black")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestIssueCard_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := New(srv.URL, 20*time.Millisecond)

	_, err := client.IssueCard(context.Background(), "ext-42", "black")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestIssueCard_UnsupportedColor(t *testing.T) {
	client := New("http://localhost:0", 0)

	_, err := client.IssueCard(context.Background(), "ext-42", "blue")
	require.ErrorIs(t, err, ErrClientRejected)
}
