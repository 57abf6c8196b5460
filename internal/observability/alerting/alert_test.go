package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	xerrors "ZKAttest-Chain/internal/errors"
)

type recordingNotifier struct {
	mu      sync.Mutex
	channel Channel
	events  []Event
	err     error
}

func (r *recordingNotifier) Channel() Channel { return r.channel }

func (r *recordingNotifier) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

func TestFanoutDispatcher(t *testing.T) {
	ok := &recordingNotifier{channel: ChannelLog}
	broken := &recordingNotifier{channel: ChannelWebhook, err: errors.New("down")}
	dispatcher := NewFanout(ok, nil, broken)
	require.Equal(t, []Channel{ChannelLog, ChannelWebhook}, dispatcher.Channels())

	err := dispatcher.Notify(context.Background(), Event{Code: "PROOF_PUBLIC_VALUES_MISMATCH", JobID: "job-1"})
	require.ErrorContains(t, err, "channel webhook")
	require.Len(t, ok.events, 1)
	require.Equal(t, ChannelLog, ok.events[0].Channel)
	require.False(t, ok.events[0].OccurredAt.IsZero())

	var nilDispatcher *FanoutDispatcher
	require.NoError(t, nilDispatcher.Notify(context.Background(), Event{}))
}

func TestWebhookNotifierFormats(t *testing.T) {
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	event := Event{Code: "PROOF_GENERATION_FAILED", Severity: xerrors.SeverityWarning, JobID: "job-2", Kind: "btc_tx", Message: "timeout"}
	for _, format := range []Channel{ChannelWebhook, ChannelSlack, ChannelDingTalk} {
		notifier := NewWebhookNotifier(srv.URL, format)
		notifier.Client = srv.Client()
		require.NoError(t, notifier.Notify(context.Background(), event))
	}

	require.Len(t, bodies, 3)
	require.Equal(t, "job-2", bodies[0]["job_id"])
	require.Contains(t, bodies[1]["text"], "PROOF_GENERATION_FAILED")
	require.Equal(t, "text", bodies[2]["msgtype"])
}

func TestWebhookNotifierErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, "unknown")
	require.Equal(t, ChannelWebhook, notifier.Channel())
	require.ErrorContains(t, notifier.Notify(context.Background(), Event{}), "403")

	require.NoError(t, NewWebhookNotifier("", ChannelSlack).Notify(context.Background(), Event{}))
	require.NoError(t, LogNotifier{}.Notify(context.Background(), Event{Severity: xerrors.SeverityCritical, Metadata: map[string]string{"stage": "terminal"}}))
}
