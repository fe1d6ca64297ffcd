package clusterer

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// UpdateHandler receives the decoded updates of one feed message, or the
// decoding error
type UpdateHandler func(updates []MarkerUpdate, err error)

// MarkerFeed subscribes to the marker topic and hands updates to a handler
type MarkerFeed struct {
	client      mqtt.Client
	topic       string
	handler     UpdateHandler
	isConnected bool
	mu          sync.RWMutex
}

// MQTTSettings is the connection configuration after environment overrides
type MQTTSettings struct {
	Broker        string
	ClientID      string
	Username      string
	Password      string
	PublishPrefix string
}

// ResolveMQTTSettings applies MQTT_BROKER, MQTT_CLIENT_ID, MQTT_USERNAME,
// MQTT_PASSWORD and MQTT_PUBLISH_PREFIX over the config file values.
func ResolveMQTTSettings(cfg MQTTConfig) MQTTSettings {
	s := MQTTSettings{
		Broker:        firstNonEmpty(os.Getenv("MQTT_BROKER"), cfg.Broker),
		ClientID:      firstNonEmpty(os.Getenv("MQTT_CLIENT_ID"), cfg.ClientID, "geocluster"),
		Username:      firstNonEmpty(os.Getenv("MQTT_USERNAME"), cfg.Username),
		PublishPrefix: firstNonEmpty(os.Getenv("MQTT_PUBLISH_PREFIX"), cfg.PublishPrefix, "geocluster"),
	}
	if s.Username != "" {
		s.Password = firstNonEmpty(os.Getenv("MQTT_PASSWORD"), cfg.Password)
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// InitMarkerFeed connects to the broker and subscribes to config.MQTT.MarkerTopic.
// If no broker is configured, MQTT is disabled and this returns nil, nil.
func InitMarkerFeed(config *Config, handler UpdateHandler) (*MarkerFeed, error) {
	if config == nil {
		return nil, fmt.Errorf("marker feed: no configuration provided")
	}
	settings := ResolveMQTTSettings(config.MQTT)
	if settings.Broker == "" {
		log.Println("[MQTT] disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config.MQTT.MarkerTopic == "" {
		return nil, fmt.Errorf("marker feed: mqtt.markerTopic is required when MQTT is enabled")
	}

	feed := &MarkerFeed{
		topic:   config.MQTT.MarkerTopic,
		handler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(settings.Broker)
	opts.SetClientID(settings.ClientID)
	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	opts.SetOrderMatters(true) // updates for one marker must apply in order

	opts.SetOnConnectHandler(feed.onConnect)
	opts.SetConnectionLostHandler(feed.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Println("[MQTT] reconnecting...")
	})

	feed.client = mqtt.NewClient(opts)
	go feed.connectWithRetry()

	return feed, nil
}

// connectWithRetry connects with exponential backoff, capped at one minute
func (f *MarkerFeed) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")

		token := f.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				f.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay = min(retryDelay*2, maxRetryDelay)
	}
}

func (f *MarkerFeed) onConnect(client mqtt.Client) {
	f.setConnected(true)
	log.Printf("[MQTT] subscribing to %s", f.topic)
	token := client.Subscribe(f.topic, 1, f.handleMessage)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("[MQTT] error subscribing to %s: %v", f.topic, token.Error())
	}
}

func (f *MarkerFeed) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	f.setConnected(false)
}

func (f *MarkerFeed) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	updates, err := ParseMarkerUpdates(msg.Payload())
	if err != nil {
		log.Printf("[FEED] dropping message on %s: %v", msg.Topic(), err)
	}
	if f.handler != nil {
		f.handler(updates, err)
	}
}

// Topic returns the subscribed topic
func (f *MarkerFeed) Topic() string { return f.topic }

// IsConnected reports whether the broker connection is up
func (f *MarkerFeed) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isConnected
}

func (f *MarkerFeed) setConnected(connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isConnected = connected
}

// Client returns the underlying client, shared with the Publisher
func (f *MarkerFeed) Client() mqtt.Client {
	return f.client
}

// Disconnect closes the connection
func (f *MarkerFeed) Disconnect() {
	if f.client != nil && f.client.IsConnected() {
		log.Println("[MQTT] disconnecting...")
		f.client.Disconnect(250)
		f.setConnected(false)
	}
}

// newMarkerFeedWithClient wires a feed to an existing client without connecting
func newMarkerFeedWithClient(client mqtt.Client, topic string, handler UpdateHandler) *MarkerFeed {
	return &MarkerFeed{
		client:  client,
		topic:   topic,
		handler: handler,
	}
}
