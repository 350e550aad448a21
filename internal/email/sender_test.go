package email

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func newTestSender(delay time.Duration) (*LogSender, *bytes.Buffer) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	return NewLogSender(log, delay), &buf
}

func TestIPChanged_LogsNotice(t *testing.T) {
	s, buf := newTestSender(0)
	id := uuid.New()

	s.IPChanged(context.Background(), IPChangeNotice{
		UserID:     id,
		Email:      "a@x.com",
		PreviousIP: "10.0.0.1",
		NewIP:      "10.0.0.2",
	})

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "user_id="+id.String())
	assert.Contains(t, out, "previous_ip=10.0.0.1")
	assert.Contains(t, out, "new_ip=10.0.0.2")
}

func TestIPChanged_CancelledBeforeDelivery(t *testing.T) {
	s, buf := newTestSender(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.IPChanged(ctx, IPChangeNotice{UserID: uuid.New(), NewIP: "10.0.0.2"})

	assert.Contains(t, buf.String(), "ip change notice dropped")
	assert.NotContains(t, buf.String(), "new_ip=")
}
