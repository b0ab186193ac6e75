package queue

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwarderPostsToAgencyEndpoint(t *testing.T) {
	var got AgencySyncMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	f := &AgencyForwarder{Endpoints: map[string]string{"ica": srv.URL}}
	msg := AgencySyncMessage{Agency: "ica", BookingID: 9, Status: "Accepted"}
	require.NoError(t, f.Handle(context.Background(), msg))
	assert.Equal(t, msg, got)
}

func TestForwarderReportsAgencyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := &AgencyForwarder{Endpoints: map[string]string{"ica": srv.URL}}
	assert.Error(t, f.Handle(context.Background(), AgencySyncMessage{Agency: "ica"}))
}

func TestForwarderFallsBackToOutbox(t *testing.T) {
	dir := t.TempDir()
	f := &AgencyForwarder{OutboxDir: dir}

	require.NoError(t, f.Handle(context.Background(), AgencySyncMessage{Agency: "hdb", BookingID: 1}))
	require.NoError(t, f.Handle(context.Background(), AgencySyncMessage{Agency: "hdb", BookingID: 2}))

	data, err := os.ReadFile(filepath.Join(dir, "agency-outbox.log"))
	require.NoError(t, err)
	assert.Equal(t, 2, len(splitLines(data)))
}

func TestHandleDeliveryRejectsGarbage(t *testing.T) {
	assert.Error(t, handleDelivery(context.Background(), []byte("{"), &AgencyForwarder{}))
}

func splitLines(b []byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	return out
}
