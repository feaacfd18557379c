package pubsub

import (
	"context"
	"errors"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleflow/settleflow-backend/pkg/channel"
	"github.com/settleflow/settleflow-backend/pkg/config"
)

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	err      error
	resumed  []string
	stopped  bool
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return fakeResult{err: f.err}
}

func (f *fakePublisher) ResumePublish(key string) {
	f.resumed = append(f.resumed, key)
}

func (f *fakePublisher) Stop() {
	f.stopped = true
}

func TestOrderedSenderUsesKeyAsOrderingKey(t *testing.T) {
	pub := &fakePublisher{}
	sender := &OrderedSender{pub: pub}

	err := sender.Send(context.Background(), channel.Message{Key: "2000", Value: []byte("{}")})
	require.NoError(t, err)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "2000", pub.messages[0].OrderingKey)
	assert.Empty(t, pub.resumed)
}

func TestOrderedSenderResumesKeyAfterFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("unavailable")}
	sender := &OrderedSender{pub: pub}

	err := sender.Send(context.Background(), channel.Message{Key: "100", Value: []byte("{}")})
	require.Error(t, err)
	assert.Equal(t, []string{"100"}, pub.resumed)

	sender.Stop()
	assert.True(t, pub.stopped)
}

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/order-create-topic", resourceName("p1", "topics", "order-create-topic"))
	assert.Equal(t, "projects/x/subscriptions/s", resourceName("p1", "subscriptions", "projects/x/subscriptions/s"))
	assert.Equal(t, "", resourceName("", "topics", "t"))
	assert.Equal(t, "", resourceName("p1", "topics", "  "))
}

func TestClientOptionsPreferEmulator(t *testing.T) {
	gcp := config.GCPConfig{ProjectID: "p1", CredentialsJSON: `{"type":"service_account"}`}
	assert.Len(t, clientOptions(gcp, config.PubSubConfig{EmulatorHost: "localhost:8085"}), 3)
	assert.Len(t, clientOptions(gcp, config.PubSubConfig{}), 1)
	assert.Empty(t, clientOptions(config.GCPConfig{ProjectID: "p1"}, config.PubSubConfig{}))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, RolePublisher, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}
