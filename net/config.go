package net

import (
	"errors"
	"fmt"
	"time"

	"github.com/lcx/oldentide-client/codec"
)

const (
	DiscoveryDNS    = "dns"
	DiscoveryConsul = "consul"

	// DefaultRequestTimeout bounds every request's wait for a reply.
	DefaultRequestTimeout = 5 * time.Second
)

// ClientCfg is the client section (client.yaml). Every key can be overridden
// with CLIENT_<KEY>, e.g. CLIENT_SERVERHOST.
type ClientCfg struct {
	ServerHost string `mapstructure:"serverHost"`
	ServerPort int    `mapstructure:"serverPort"`
	// LocalPort is the UDP port bound on all local IPv4 interfaces; 0 picks a free one.
	LocalPort int `mapstructure:"localPort"`

	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	Codec          string        `mapstructure:"codec"`
	// MaxQueueLen bounds the correlation queue; 0 is unbounded.
	MaxQueueLen int `mapstructure:"maxQueueLen"`

	// SendRate and SendBurst shape outbound requests; 0 disables.
	SendRate  int `mapstructure:"sendRate"`
	SendBurst int `mapstructure:"sendBurst"`
	// RecvRate caps inbound datagrams per second; 0 disables.
	RecvRate int `mapstructure:"recvRate"`

	Discovery     string `mapstructure:"discovery"`
	ConsulAddr    string `mapstructure:"consulAddr"`
	ConsulService string `mapstructure:"consulService"`

	MetricsAddr string `mapstructure:"metricsAddr"`
}

// GetName implements config.Config.
func (c *ClientCfg) GetName() string {
	return "client"
}

// ApplyDefaults fills unset optional fields.
func (c *ClientCfg) ApplyDefaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.Codec == "" {
		c.Codec = codec.NameMsgpack
	}
	if c.Discovery == "" {
		c.Discovery = DiscoveryDNS
	}
	if c.SendRate > 0 && c.SendBurst <= 0 {
		c.SendBurst = 1
	}
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// Validate implements config.Config.
func (c *ClientCfg) Validate() error {
	switch c.Discovery {
	case "", DiscoveryDNS:
		if c.ServerHost == "" {
			return errors.New("serverHost cannot be empty")
		}
		if !validPort(c.ServerPort) {
			return fmt.Errorf("serverPort %d out of range", c.ServerPort)
		}
	case DiscoveryConsul:
		if c.ConsulService == "" {
			return errors.New("consulService cannot be empty with consul discovery")
		}
		// the registration usually carries the port; serverPort is the fallback
		if c.ServerPort != 0 && !validPort(c.ServerPort) {
			return fmt.Errorf("serverPort %d out of range", c.ServerPort)
		}
	default:
		return fmt.Errorf("unknown discovery %q", c.Discovery)
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return fmt.Errorf("localPort %d out of range", c.LocalPort)
	}
	if c.RequestTimeout < 0 {
		return errors.New("requestTimeout cannot be negative")
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		return err
	}
	if c.MaxQueueLen < 0 {
		return errors.New("maxQueueLen cannot be negative")
	}
	if c.SendRate < 0 || c.SendBurst < 0 || c.RecvRate < 0 {
		return errors.New("rates cannot be negative")
	}
	return nil
}
