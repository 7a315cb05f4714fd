package ipanon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectVersion(t *testing.T) {
	assert.Equal(t, VersionV4, DetectVersion("192.168.1.1"))
	assert.Equal(t, VersionV6, DetectVersion("2001:db8::1"))
	assert.Equal(t, VersionUnknown, DetectVersion("not-an-ip"))
}

func TestIsPrivateLoopbackLinkLocal(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsPrivate("10.0.0.5"))
	assert.True(IsPrivate("192.168.1.1"))
	assert.True(IsLoopback("127.0.0.1"))
	assert.True(IsLoopback("::1"))
	assert.True(IsLinkLocal("169.254.1.1"))
	assert.True(IsLinkLocal("fe80::1"))
	assert.False(IsPrivate("8.8.8.8"))
}

func TestAnonymize_TruncateIPv4(t *testing.T) {
	out, err := Anonymize("203.0.113.42", Options{Strategy: StrategyTruncate, Level: Truncate24})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal("203.0.113.0", out)

	out, _ = Anonymize("203.0.113.42", Options{Strategy: StrategyTruncate, Level: Truncate16})
	assert.Equal("203.0.0.0", out)

	out, _ = Anonymize("203.0.113.42", Options{Strategy: StrategyTruncate, Level: Truncate8})
	assert.Equal("203.0.0.0", out)
}

func TestAnonymize_RemoveSentinels(t *testing.T) {
	v4, _ := Anonymize("203.0.113.42", Options{Strategy: StrategyRemove})
	v6, _ := Anonymize("2001:db8::1", Options{Strategy: StrategyRemove})
	assert.Equal(t, RemovedV4, v4)
	assert.Equal(t, RemovedV6, v6)
}

func TestAnonymize_HashIsStableAndSalted(t *testing.T) {
	a, _ := Anonymize("203.0.113.42", Options{Strategy: StrategyHash, HashSalt: "s1"})
	b, _ := Anonymize("203.0.113.42", Options{Strategy: StrategyHash, HashSalt: "s1"})
	c, _ := Anonymize("203.0.113.42", Options{Strategy: StrategyHash, HashSalt: "s2"})
	assert := assert.New(t)
	assert.Equal(a, b)
	assert.NotEqual(a, c)
	assert.Contains(a, "ip_")
}

func TestAnonymize_PreservePrivateIPsBypassesStrategy(t *testing.T) {
	out, err := Anonymize("10.1.2.3", Options{Strategy: StrategyRemove, PreservePrivateIPs: true})
	assert.NoError(t, err)
	assert.Equal(t, "10.1.2.3", out)
}

func TestCompressIPv6_CollapsesLongestZeroRun(t *testing.T) {
	groups, err := parseIPv6("2001:db8:0:0:0:0:0:1")
	assert.NoError(t, err)
	assert.Equal(t, "2001:db8::1", compressIPv6(groups))
}

func TestAnonymize_TruncateIPv6Compresses(t *testing.T) {
	out, err := Anonymize("2001:db8:1:2:3:4:5:6", Options{Strategy: StrategyTruncate, Level: Truncate8})
	assert.NoError(t, err)
	assert.Equal(t, "2001::", out)
}

func TestAnonymize_UnknownAddressErrors(t *testing.T) {
	_, err := Anonymize("garbage", Options{Strategy: StrategyTruncate})
	assert.Error(t, err)
}
