package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/entrygate/entry"
)

type fakeConn struct {
	subject  string
	data     []byte
	pubErr   error
	flushErr error
	deadline bool
	closed   bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.subject, c.data = subject, data
	return c.pubErr
}

func (c *fakeConn) FlushWithContext(ctx context.Context) error {
	_, c.deadline = ctx.Deadline()
	return c.flushErr
}

func (c *fakeConn) Close() { c.closed = true }

func TestNATSPublisherPublish(t *testing.T) {
	conn := &fakeConn{}
	p := newNATSPublisher(conn, "", nil)

	result := &Result{RunID: "run-1", Status: entry.StatusFail, Entries: []string{"a"}}
	require.NoError(t, p.Publish(context.Background(), result))

	assert.Equal(t, "entrygate.results.fail", conn.subject)
	assert.True(t, conn.deadline)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, "FAIL", decoded["status"])

	p.Close()
	assert.True(t, conn.closed)
}

func TestNATSPublisherSubject(t *testing.T) {
	p := newNATSPublisher(&fakeConn{}, "ci.gate.", nil)
	assert.Equal(t, "ci.gate.pass", p.Subject(&Result{Status: entry.StatusPass}))
}

func TestNATSPublisherErrors(t *testing.T) {
	p := newNATSPublisher(&fakeConn{pubErr: errors.New("closed")}, "", nil)
	assert.ErrorContains(t, p.Publish(context.Background(), &Result{Status: entry.StatusPass}), "publish entrygate.results.pass")

	p = newNATSPublisher(&fakeConn{flushErr: errors.New("timeout")}, "", nil)
	assert.ErrorContains(t, p.Publish(context.Background(), &Result{Status: entry.StatusPass}), "flush")
}
