package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

type captureSender struct {
	name   string
	err    error
	titles []string
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.titles = append(c.titles, title)
	return c.err
}

func (c *captureSender) Name() string { return c.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func failedEvent() domain.TxEvent {
	return domain.TxEvent{
		Pending: domain.PendingTransaction{ID: "0xabc", Chain: domain.ChainETC, Operation: "new_trade", OpID: "op-1"},
		Status:  domain.TxStatusFailed,
		Err:     errors.New("reverted"),
	}
}

func TestFormat(t *testing.T) {
	title, msg := Format(failedEvent())
	assert.Equal(t, "new_trade failed on ETC", title)
	assert.Equal(t, "tx: 0xabc\nop: op-1\nerror: reverted", msg)
}

func TestNotifierFiltersByStatus(t *testing.T) {
	s := &captureSender{name: "capture"}
	n := NewNotifier([]Sender{s}, []string{" Failed "}, quietLogger())

	ok := failedEvent()
	ok.Status = domain.TxStatusConfirmed
	ok.Err = nil
	require.NoError(t, n.ObserveTx(context.Background(), ok))
	assert.Empty(t, s.titles)

	require.NoError(t, n.ObserveTx(context.Background(), failedEvent()))
	assert.Equal(t, []string{"new_trade failed on ETC"}, s.titles)
}

func TestNotifierContinuesPastFailingSender(t *testing.T) {
	bad := &captureSender{name: "bad", err: errors.New("down")}
	good := &captureSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.ObserveTx(context.Background(), failedEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42").WithAPIURL(srv.URL + "/")
	require.NoError(t, s.Send(context.Background(), "title", "body"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*title*\nbody", got["text"])
}

func TestDiscordSenderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad hook", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 400")
}
