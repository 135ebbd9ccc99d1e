package amqp

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config describes the broker and the request/response queue pair. The
// server publishes to the request queue and consumes the response queue; a
// worker does the opposite.
type Config struct {
	URI              string        `kdl:"uri"`
	Username         string        `kdl:"username"`
	Password         string        `kdl:"password"`
	ReconnectTimeout time.Duration `kdl:"reconnect-timeout"`
	Prefetch         int           `kdl:"prefetch"`
	Exchange         string        `kdl:"exchange"`
	RequestQueue     string        `kdl:"request-queue"`
	ResponseQueue    string        `kdl:"response-queue"`
}

type PublisherConfig struct {
	Exchange   string
	RoutingKey string
}

type ConsumerConfig struct {
	Queue    string
	Consumer string
}

func DefaultConfig() *Config {
	return &Config{
		URI:              "amqp://rabbitmq:5672/",
		Username:         "guest",
		Password:         "guest",
		ReconnectTimeout: 5 * time.Second,
		Prefetch:         1,
		RequestQueue:     "rainbow.crack.requests",
		ResponseQueue:    "rainbow.crack.responses",
	}
}

func (c *Config) Publisher(routingKey string) *PublisherConfig {
	return &PublisherConfig{Exchange: c.Exchange, RoutingKey: routingKey}
}

func (c *Config) Consumer(queue string) *ConsumerConfig {
	return &ConsumerConfig{Queue: queue}
}

func (c *Config) dialConfig() amqp.Config {
	return amqp.Config{
		SASL: []amqp.Authentication{
			&amqp.PlainAuth{
				Username: c.Username,
				Password: c.Password,
			},
		},
	}
}
