package ingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.ApiService/implementation/readings"
	config "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Config"
	logger "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Logger"
	tncmodels "gitlab.com/maplesense1/tnc.tinaco_server/src/production/TNC.Models"
)

const writeTimeout = 5 * time.Second

// ReadingCreator stores one reading and returns its id
type ReadingCreator interface {
	Create(ctx context.Context, in tncmodels.ReadingInput) (string, error)
}

// Stats counts what happened to received messages
type Stats struct {
	Received int64 `json:"received"`
	Stored   int64 `json:"stored"`
	Dropped  int64 `json:"dropped"`
}

// Ingestor subscribes to device telemetry and writes each message through the reading service
type Ingestor struct {
	cfg        config.MQTTConfig
	brokerURL  string
	creator    ReadingCreator
	mqttClient mqtt.Client
	msgCh      chan tncmodels.ReadingInput
	wg         sync.WaitGroup
	logger     *logger.Logger

	// guards msgCh against sends after Stop closed it
	mu     sync.RWMutex
	closed bool

	received atomic.Int64
	stored   atomic.Int64
	dropped  atomic.Int64
}

func New(cfg config.MQTTConfig, brokerURL string, creator ReadingCreator, log *logger.Logger) *Ingestor {
	return &Ingestor{
		cfg:       cfg,
		brokerURL: brokerURL,
		creator:   creator,
		msgCh:     make(chan tncmodels.ReadingInput, cfg.QueueSize),
		logger:    log.WithComponent("mqtt_ingestor"),
	}
}

func (i *Ingestor) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.brokerURL).
		SetClientID(i.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.KeepAlive).
		SetPingTimeout(i.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.BrokerUser != "" {
		opts.SetUsername(i.cfg.BrokerUser)
		opts.SetPassword(i.cfg.BrokerPass)
	}

	if i.cfg.UseTLS {
		tlsCfg, err := tlsConfig(i.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.subscriptionTopic()
		i.logger.Logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, byte(i.cfg.QoS), i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	i.startWorker()

	i.mqttClient = mqtt.NewClient(opts)
	tk := i.mqttClient.Connect()
	select {
	case <-tk.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return tk.Error()
}

// Stop disconnects from the broker, then drains every queued message before returning
func (i *Ingestor) Stop() {
	if i.mqttClient != nil && i.mqttClient.IsConnected() {
		i.mqttClient.Disconnect(500)
	}

	i.mu.Lock()
	if !i.closed {
		i.closed = true
		close(i.msgCh)
	}
	i.mu.Unlock()

	i.wg.Wait()
	i.logger.Logger.Info().
		Int64("received", i.received.Load()).
		Int64("stored", i.stored.Load()).
		Int64("dropped", i.dropped.Load()).
		Msg("MQTT ingestor stopped")
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

func (i *Ingestor) Stats() Stats {
	return Stats{
		Received: i.received.Load(),
		Stored:   i.stored.Load(),
		Dropped:  i.dropped.Load(),
	}
}

func (i *Ingestor) subscriptionTopic() string {
	if i.cfg.SharedGroup != "" {
		return fmt.Sprintf("$share/%s/%s", i.cfg.SharedGroup, i.cfg.Topic)
	}
	return i.cfg.Topic
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	i.handle(m.Topic(), m.Payload())
}

// handle decodes one telemetry payload and queues it. Blocks while the queue is full.
func (i *Ingestor) handle(topic string, payload []byte) {
	i.received.Add(1)
	i.logger.Logger.Debug().Str("topic", topic).Str("payload", string(payload)).Msg("Received MQTT message")

	in, err := decodeReading(topic, payload)
	if err != nil {
		i.dropped.Add(1)
		i.logger.Logger.Warn().Err(err).Str("topic", topic).Msg("Dropping undecodable telemetry")
		return
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		i.dropped.Add(1)
		i.logger.Logger.Warn().Str("device_id", in.DeviceID).Msg("Ingestor stopped, dropping reading")
		return
	}
	i.msgCh <- in
}

func (i *Ingestor) startWorker() {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		for in := range i.msgCh {
			i.write(in)
		}
	}()
}

func (i *Ingestor) write(in tncmodels.ReadingInput) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	id, err := i.creator.Create(ctx, in)
	if err != nil {
		i.dropped.Add(1)

		var verr *readings.ValidationError
		if errors.As(err, &verr) {
			i.logger.Logger.Warn().Err(err).Str("device_id", in.DeviceID).Msg("Rejected reading")
			i.publishError(in.DeviceID, "validation_error", err.Error())
			return
		}
		i.logger.Logger.Error().Err(err).Str("device_id", in.DeviceID).Msg("Error storing reading")
		return
	}

	i.stored.Add(1)
	i.logger.Logger.Debug().Str("device_id", in.DeviceID).Str("reading_id", id).Msg("Stored reading")
}

// decodeReading parses an ingest payload. The device id falls back to the
// second topic segment, as in tinaco/<device_id>/telemetry.
func decodeReading(topic string, payload []byte) (tncmodels.ReadingInput, error) {
	var in tncmodels.ReadingInput
	if err := json.Unmarshal(payload, &in); err != nil {
		return in, fmt.Errorf("invalid payload: %w", err)
	}
	if strings.TrimSpace(in.DeviceID) == "" {
		in.DeviceID = deviceFromTopic(topic)
	}
	return in, nil
}

func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}

// publishError reports a rejected reading back to the device on ingestor/errors/<device_id>
func (i *Ingestor) publishError(deviceID, errorType, message string) {
	if i.mqttClient == nil || !i.mqttClient.IsConnected() {
		return
	}

	payloadJSON, err := json.Marshal(map[string]interface{}{
		"error_type": errorType,
		"message":    message,
		"device_id":  deviceID,
		"timestamp":  time.Now().UTC(),
	})
	if err != nil {
		i.logger.Logger.Error().Err(err).Msg("Failed to marshal error payload")
		return
	}

	errorTopic := "ingestor/errors/" + deviceID
	token := i.mqttClient.Publish(errorTopic, 1, false, payloadJSON)
	if token.Wait() && token.Error() != nil {
		i.logger.Logger.Error().Err(token.Error()).Str("topic", errorTopic).Msg("Failed to publish error")
	}
}
