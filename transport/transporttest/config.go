// Package transporttest holds helpers for testing transport builders.
package transporttest

import "github.com/drblury/geobridge/transport"

// Config is a plain-field transport.Config.
type Config struct {
	PubSubSystem        string
	SubscriberGroup     string
	SubscriberEphemeral bool
	KafkaBrokers        []string
	KafkaClientID       string
	RabbitMQURL         string
	NATSURL             string
	NATSClientName      string
	NATSMaxReconnects   int
	HTTPServerAddress   string
	HTTPPublisherURL    string
	AWSRegion           string
	AWSAccountID        string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpoint         string
}

var _ transport.Config = (*Config)(nil)

func (c *Config) GetPubSubSystem() string       { return c.PubSubSystem }
func (c *Config) GetKafkaBrokers() []string     { return c.KafkaBrokers }
func (c *Config) GetKafkaClientID() string      { return c.KafkaClientID }
func (c *Config) GetSubscriberGroup() string    { return c.SubscriberGroup }
func (c *Config) GetSubscriberEphemeral() bool  { return c.SubscriberEphemeral }
func (c *Config) GetRabbitMQURL() string        { return c.RabbitMQURL }
func (c *Config) GetNATSURL() string            { return c.NATSURL }
func (c *Config) GetNATSClientName() string     { return c.NATSClientName }
func (c *Config) GetNATSMaxReconnects() int     { return c.NATSMaxReconnects }
func (c *Config) GetHTTPServerAddress() string  { return c.HTTPServerAddress }
func (c *Config) GetHTTPPublisherURL() string   { return c.HTTPPublisherURL }
func (c *Config) GetAWSRegion() string          { return c.AWSRegion }
func (c *Config) GetAWSAccountID() string       { return c.AWSAccountID }
func (c *Config) GetAWSAccessKeyID() string     { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string        { return c.AWSEndpoint }
