package node_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghostweasellabs/arachne/message"
	"github.com/ghostweasellabs/arachne/node"
	"github.com/ghostweasellabs/arachne/port"
)

type recordingHandler struct {
	node.BaseHandler
	messageErr error
	tickErr    error
	received   []message.Message
}

func (h *recordingHandler) HandleMessage(_ context.Context, _ *node.Node, _ string, msg message.Message) error {
	h.received = append(h.received, msg)
	return h.messageErr
}

func (h *recordingHandler) HandleTick(context.Context, *node.Node) error {
	return h.tickErr
}

func newTestNode(h *recordingHandler) *node.Node {
	out := port.New("out", port.Output, nil)
	return node.New("n1", nil, []port.Port{out}, h, nil, nil)
}

func TestEmitWithoutSchedulerIsNoOp(t *testing.T) {
	h := &recordingHandler{}
	n := newTestNode(h)

	msg := message.New(message.Data, 42, nil, nil)
	got, err := n.Emit(context.Background(), "out", msg)
	require.NoError(t, err)
	assert.Equal(t, msg.Payload(), got.Payload())
}

func TestEmitUnknownPortFails(t *testing.T) {
	h := &recordingHandler{}
	n := newTestNode(h)

	_, err := n.Emit(context.Background(), "missing", message.New(message.Data, 1, nil, nil))
	assert.Error(t, err)
}

type fakeEmitter struct {
	lastNode, lastPort string
	lastMsg            message.Message
}

func (f *fakeEmitter) HandleEmit(_ context.Context, nodeName, portName string, msg message.Message) (message.Message, error) {
	f.lastNode, f.lastPort, f.lastMsg = nodeName, portName, msg
	return msg, nil
}

func TestEmitDelegatesToAttachedScheduler(t *testing.T) {
	h := &recordingHandler{}
	n := newTestNode(h)
	fe := &fakeEmitter{}
	n.Attach(fe)

	msg := message.New(message.Data, "hello", nil, nil)
	_, err := n.Emit(context.Background(), "out", msg)
	require.NoError(t, err)
	assert.Equal(t, "n1", fe.lastNode)
	assert.Equal(t, "out", fe.lastPort)
}

func TestOnMessageCountsSuccessAndFailure(t *testing.T) {
	h := &recordingHandler{}
	n := newTestNode(h)

	msg := message.New(message.Data, 1, nil, nil)
	require.NoError(t, n.OnMessage(context.Background(), "in", msg))
	assert.EqualValues(t, 1, n.Counters.MessagesProcessed)
	assert.EqualValues(t, 0, n.Counters.Errors)

	h.messageErr = errors.New("boom")
	err := n.OnMessage(context.Background(), "in", msg)
	assert.Error(t, err)
	assert.EqualValues(t, 1, n.Counters.Errors)
}

func TestOnTickCountsFailure(t *testing.T) {
	h := &recordingHandler{tickErr: errors.New("tick boom")}
	n := newTestNode(h)

	err := n.OnTick(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 1, n.Counters.Errors)
}

func TestOnStartOnStopLifecycle(t *testing.T) {
	h := &recordingHandler{}
	n := newTestNode(h)

	require.NoError(t, n.OnStart(context.Background()))
	assert.Equal(t, node.Started, n.State)

	require.NoError(t, n.OnStop(context.Background()))
	assert.Equal(t, node.Stopped, n.State)
}
