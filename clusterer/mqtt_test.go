package clusterer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerFeed_SubscribesOnConnect(t *testing.T) {
	client := newFakeClient(true)
	feed := newMarkerFeedWithClient(client, "fleet/markers", nil)
	require.False(t, feed.IsConnected())

	feed.onConnect(client)

	assert.True(t, feed.IsConnected())
	assert.Equal(t, byte(1), client.subscribed["fleet/markers"])
	assert.Equal(t, "fleet/markers", feed.Topic())
	assert.Same(t, client, feed.Client())
}

func TestMarkerFeed_DeliversUpdates(t *testing.T) {
	client := newFakeClient(true)
	var got [][]MarkerUpdate
	var errs []error
	feed := newMarkerFeedWithClient(client, "fleet/markers", func(updates []MarkerUpdate, err error) {
		got = append(got, updates)
		errs = append(errs, err)
	})
	feed.onConnect(client)

	require.True(t, client.deliver("fleet/markers", []byte(`[{"id":"van-1","lat":52.5,"lng":13.4},{"id":"van-2","visible":false}]`)))
	require.True(t, client.deliver("fleet/markers", []byte(`{"lat": 1}`)))

	require.Len(t, got, 2)
	require.NoError(t, errs[0])
	require.Len(t, got[0], 2)
	assert.Equal(t, "van-1", got[0][0].ID)
	p, ok := got[0][0].Position()
	require.True(t, ok)
	assert.Equal(t, orb.Point{13.4, 52.5}, p)

	assert.Error(t, errs[1], "bad payloads are reported to the handler")
	assert.Nil(t, got[1])
}

func TestMarkerFeed_ConnectionLost(t *testing.T) {
	client := newFakeClient(true)
	feed := newMarkerFeedWithClient(client, "t", nil)
	feed.onConnect(client)

	feed.onConnectionLost(client, errors.New("broker went away"))
	assert.False(t, feed.IsConnected())
}

func TestMarkerFeed_Disconnect(t *testing.T) {
	client := newFakeClient(true)
	feed := newMarkerFeedWithClient(client, "t", nil)
	feed.onConnect(client)

	feed.Disconnect()

	assert.False(t, client.IsConnected())
	assert.False(t, feed.IsConnected())
}

func TestInitMarkerFeed_Disabled(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	feed, err := InitMarkerFeed(DefaultConfig(), nil)
	assert.NoError(t, err)
	assert.Nil(t, feed)

	_, err = InitMarkerFeed(nil, nil)
	assert.Error(t, err)
}

func TestInitMarkerFeed_RequiresTopic(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	cfg := DefaultConfig()
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.MarkerTopic = ""

	_, err := InitMarkerFeed(cfg, nil)
	assert.ErrorContains(t, err, "markerTopic")
}

func TestResolveMQTTSettings(t *testing.T) {
	cfg := MQTTConfig{
		Broker:   "tcp://file:1883",
		ClientID: "from-file",
		Username: "user",
		Password: "file-secret",
	}

	t.Run("file values", func(t *testing.T) {
		for _, k := range []string{"MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD", "MQTT_PUBLISH_PREFIX"} {
			t.Setenv(k, "")
		}
		s := ResolveMQTTSettings(cfg)
		assert.Equal(t, "tcp://file:1883", s.Broker)
		assert.Equal(t, "from-file", s.ClientID)
		assert.Equal(t, "file-secret", s.Password)
		assert.Equal(t, "geocluster", s.PublishPrefix)
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv("MQTT_BROKER", "tcp://env:1883")
		t.Setenv("MQTT_CLIENT_ID", "")
		t.Setenv("MQTT_USERNAME", "")
		t.Setenv("MQTT_PASSWORD", "env-secret")
		t.Setenv("MQTT_PUBLISH_PREFIX", "env/prefix")
		s := ResolveMQTTSettings(cfg)
		assert.Equal(t, "tcp://env:1883", s.Broker)
		assert.Equal(t, "from-file", s.ClientID)
		assert.Equal(t, "user", s.Username)
		assert.Equal(t, "env-secret", s.Password)
		assert.Equal(t, "env/prefix", s.PublishPrefix)
	})

	t.Run("no password without username", func(t *testing.T) {
		t.Setenv("MQTT_USERNAME", "")
		t.Setenv("MQTT_PASSWORD", "orphan")
		s := ResolveMQTTSettings(MQTTConfig{})
		assert.Empty(t, s.Password)
		assert.Equal(t, "geocluster", s.ClientID)
	})
}

func TestNewPublisher(t *testing.T) {
	p := NewPublisher(nil, "")
	assert.Equal(t, "geocluster/clusters", p.Topic())
	assert.Equal(t, byte(0), p.qos)
	assert.True(t, p.retain)

	p.SetQoS(3)
	assert.Equal(t, byte(0), p.qos, "invalid QoS is ignored")
	p.SetQoS(1)
	assert.Equal(t, byte(1), p.qos)
}

func TestPublisher_PublishClusters(t *testing.T) {
	client := newFakeClient(true)
	p := NewPublisher(client, "city")
	p.SetRetain(false)

	require.NoError(t, p.PublishClusters(sampleSnapshot()))

	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "city/clusters", msgs[0].topic)
	assert.False(t, msgs[0].retain)

	var summary ClusterSummary
	require.NoError(t, json.Unmarshal(msgs[0].payload, &summary))
	assert.Equal(t, 5, summary.Zoom)
	assert.Equal(t, 2, summary.TotalClusters)
	require.Len(t, summary.Clusters, 1, "only visible clusters are listed")
	assert.Equal(t, ClusterEntry{ID: 1, Lat: 1.5, Lng: 1.5, Count: 12, Bucket: 2, Label: "12"}, summary.Clusters[0])

	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, summary.Clusters, last.Clusters)
}

func TestPublisher_RunPublishesNewestOnly(t *testing.T) {
	client := newFakeClient(true)
	p := NewPublisher(client, "city")

	for zoom := range 3 {
		snap := sampleSnapshot()
		snap.Zoom = zoom + 1
		p.Enqueue(snap)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(client.messages()) == 1 }, time.Second, 5*time.Millisecond)

	latest := sampleSnapshot()
	latest.Zoom = 9
	p.Enqueue(latest)
	require.Eventually(t, func() bool { return len(client.messages()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	var zooms []int
	for _, msg := range client.messages() {
		var summary ClusterSummary
		require.NoError(t, json.Unmarshal(msg.payload, &summary))
		zooms = append(zooms, summary.Zoom)
	}
	assert.Equal(t, []int{3, 9}, zooms, "superseded snapshots are never published")
}

func TestPublisher_Errors(t *testing.T) {
	p := NewPublisher(newFakeClient(false), "")
	assert.Error(t, p.PublishClusters(sampleSnapshot()))
	_, ok := p.Last()
	assert.False(t, ok)

	client := newFakeClient(true)
	client.publishErr = errors.New("quota exceeded")
	p = NewPublisher(client, "")
	assert.ErrorContains(t, p.PublishClusters(sampleSnapshot()), "quota exceeded")

	assert.Error(t, NewPublisher(nil, "").PublishClusters(Snapshot{}))
}
