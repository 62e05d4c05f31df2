package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPNotifierSendsContractPayload(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		err := json.NewDecoder(r.Body).Decode(&got)
		require.NoError(t, err)

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL)

	err := n.SendConfirmation(context.Background(), SendConfirmationInput{
		TeamName:    "Acers",
		LeaderName:  "Asha Rao",
		LeaderEmail: "a@x.com",
		TeamSize:    2,
	})
	require.NoError(t, err)

	assert.Equal(t, "Acers", got["team_name"])
	assert.Equal(t, "Asha Rao", got["leader_name"])
	assert.Equal(t, "a@x.com", got["leader_email"])
	assert.Equal(t, float64(2), got["team_size"])
}

func TestHTTPNotifierNonSuccessStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL)

	err := n.SendConfirmation(context.Background(), SendConfirmationInput{TeamName: "Acers"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestProtectedNotifierOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewProtectedNotifier(NewHTTPNotifier(srv.URL), ProtectedNotifierConfig{
		FailureThreshold: 2,
	})

	in := SendConfirmationInput{TeamName: "Acers"}

	assert.Error(t, n.SendConfirmation(context.Background(), in))
	assert.Error(t, n.SendConfirmation(context.Background(), in))

	// circuit is open now; the breaker fails fast without hitting the server
	err := n.SendConfirmation(context.Background(), in)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
