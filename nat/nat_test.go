package nat

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsPrivateIP(t *testing.T) {
	for ip, private := range map[string]bool{
		"10.1.2.3":     true,
		"172.16.0.9":   true,
		"172.32.0.1":   false,
		"192.168.1.20": true,
		"8.8.8.8":      false,
	} {
		assert.Equal(t, private, isPrivateIP(net.ParseIP(ip)), ip)
	}
}

func TestMapMethods(t *testing.T) {
	ip, err := Map(context.Background(), None, 8001, time.Second)
	assert.NoError(t, err)
	assert.Nil(t, ip)

	_, err = Map(context.Background(), Method("carrier-pigeon"), 8001, time.Second)
	assert.Error(t, err)
}
