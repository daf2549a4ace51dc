package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/tagmirror/workflow"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishWithoutConnection(t *testing.T) {
	p := NewPublisher(nil, discardLogger())
	assert.False(t, p.Enabled())

	event := workflow.Event{
		Type:      workflow.EventWorkflowStarted,
		Timestamp: time.Now(),
		SessionID: "abc123",
	}
	assert.NoError(t, p.Publish(context.Background(), event))
	p.Close()
}

func TestSubjectLayout(t *testing.T) {
	event := workflow.Event{Type: workflow.EventEntityCreated, SessionID: "abc123"}

	p := NewPublisher(nil, discardLogger())
	assert.Equal(t, "tagmirror.events.abc123.entity_created", p.Subject(event))

	p = NewPublisher(nil, discardLogger(), WithSubjectPrefix("custom.prefix"))
	assert.Equal(t, "custom.prefix.abc123.entity_created", p.Subject(event))
}

func TestConnectEmptyURLDisables(t *testing.T) {
	p, err := Connect("", discardLogger())
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.Conn())
}
