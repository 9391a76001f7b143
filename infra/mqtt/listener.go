package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/csms/core/session"
	"github.com/kilianp07/csms/infra/logger"
)

// Connector binds new station connections to sessions. *central.Registry
// satisfies it.
type Connector interface {
	Connect(ctx context.Context, stationID string, conn session.Conn) (*session.Session, error)
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Listener accepts station traffic over a shared MQTT connection. The first
// frame from an unknown station creates its session through the Connector; a
// closed session drops the station's conn, and its next frame reconnects it.
type Listener struct {
	cfg       Config
	cli       pahoClient
	connector Connector
	log       logger.Logger

	ctx   context.Context
	mu    sync.Mutex
	conns map[string]*stationConn
}

// NewListener connects to the broker and subscribes to the station up topics.
// It serves stations until ctx is canceled or Close is called.
func NewListener(ctx context.Context, cfg Config, connector Connector) (*Listener, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_listener")
	l := &Listener{
		cfg:       cfg,
		connector: connector,
		log:       log,
		ctx:       ctx,
		conns:     make(map[string]*stationConn),
	}

	upFilter := fmt.Sprintf("%s/+/up", cfg.TopicPrefix)
	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		qos := byte(1)
		if q, ok := cfg.QoS["up"]; ok {
			qos = q
		}
		if token := c.Subscribe(upFilter, qos, l.onMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	l.cli = c
	return l, nil
}

// stationID extracts the station identifier from <prefix>/<id>/up.
func (l *Listener) stationID(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, l.cfg.TopicPrefix+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/up")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (l *Listener) onMessage(_ paho.Client, msg paho.Message) {
	id, ok := l.stationID(msg.Topic())
	if !ok {
		l.log.Warnf("frame on unexpected topic %s", msg.Topic())
		return
	}
	// An empty payload is the station's will message: the broker publishes
	// it on the up topic when the station drops without a clean disconnect.
	if len(msg.Payload()) == 0 {
		l.mu.Lock()
		conn, ok := l.conns[id]
		l.mu.Unlock()
		if ok {
			l.log.Infof("station %s reported offline by broker", id)
			_ = conn.Close()
		}
		return
	}

	// Paho reuses the payload buffer after the handler returns.
	frame := make([]byte, len(msg.Payload()))
	copy(frame, msg.Payload())

	conn, err := l.connFor(id)
	if err != nil {
		l.log.Warnf("rejecting station %s: %v", id, err)
		return
	}
	if !conn.deliver(frame) {
		l.log.Warnf("dropping frame for %s: connection closed or backlogged", id)
	}
}

// connFor returns the station's live conn, creating its session on demand.
func (l *Listener) connFor(id string) (*stationConn, error) {
	l.mu.Lock()
	if conn, ok := l.conns[id]; ok {
		l.mu.Unlock()
		return conn, nil
	}

	downTopic := fmt.Sprintf("%s/%s/down", l.cfg.TopicPrefix, id)
	qos := byte(1)
	if q, ok := l.cfg.QoS["down"]; ok {
		qos = q
	}
	conn := newStationConn(id, 64, func(frame []byte) error {
		token := l.cli.Publish(downTopic, qos, false, frame)
		token.Wait()
		return token.Error()
	}, nil)
	conn.onClose = func() { l.drop(id, conn) }
	l.conns[id] = conn
	l.mu.Unlock()

	if _, err := l.connector.Connect(l.ctx, id, conn); err != nil {
		l.drop(id, conn)
		return nil, err
	}
	return conn, nil
}

// drop forgets the station's conn unless it was already replaced.
func (l *Listener) drop(id string, conn *stationConn) {
	l.mu.Lock()
	if cur, ok := l.conns[id]; ok && cur == conn {
		delete(l.conns, id)
	}
	l.mu.Unlock()
	_ = conn.Close()
}

// Close disconnects from the broker and closes every station conn.
func (l *Listener) Close() {
	l.mu.Lock()
	conns := make([]*stationConn, 0, len(l.conns))
	for _, c := range l.conns {
		conns = append(conns, c)
	}
	l.conns = make(map[string]*stationConn)
	l.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	if l.cli != nil && l.cli.IsConnected() {
		l.cli.Disconnect(250)
	}
}
