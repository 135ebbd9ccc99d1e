package netutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvertiseHostKeepsConcreteHost(t *testing.T) {
	for _, host := range []string{"10.1.2.3", "rainbow.local", "127.0.0.1"} {
		got, err := AdvertiseHost(host)
		assert.NoError(t, err)
		assert.Equal(t, host, got)
	}
}

func TestAdvertiseHostWildcard(t *testing.T) {
	got, err := AdvertiseHost("0.0.0.0")
	if err != nil {
		assert.ErrorIs(t, err, ErrNoValidNetworkInterfaceFound)
		return
	}
	assert.NotNil(t, net.ParseIP(got).To4())
}

func TestFirstIPv4(t *testing.T) {
	_, v6, _ := net.ParseCIDR("fe80::1/64")
	_, v4, _ := net.ParseCIDR("192.168.1.0/24")

	ip, ok := firstIPv4([]net.Addr{v6, v4})
	assert.True(t, ok)
	assert.Equal(t, "192.168.1.0", ip)

	_, ok = firstIPv4([]net.Addr{v6})
	assert.False(t, ok)
}
