package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport_PostsSubjectAndContent(t *testing.T) {
	var received payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	reporter := NewWebhookReporter(server.URL)

	err := reporter.Report(context.Background(), "task moneyTransfer aborted", "tries exhausted")

	assert.NoError(t, err)
	assert.Equal(t, "task moneyTransfer aborted", received.Subject)
	assert.Equal(t, "tries exhausted", received.Content)
}

func TestReport_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	reporter := NewWebhookReporter(server.URL)

	err := reporter.Report(context.Background(), "subject", "content")

	assert.EqualError(t, err, "notification sink returned 500")
}

func TestReport_UnreachableSink(t *testing.T) {
	reporter := NewWebhookReporter("http://127.0.0.1:1/hook")

	err := reporter.Report(context.Background(), "subject", "content")

	assert.Error(t, err)
}
