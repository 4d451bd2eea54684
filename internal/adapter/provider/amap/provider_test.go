package amap

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/nfc-fortune-backend/internal/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
}

func TestProvider_LocationByIP_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/ip", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "114.247.50.2", r.URL.Query().Get("ip"))
		w.Write([]byte(`{"status":"1","info":"OK","infocode":"10000","province":"北京市","city":"北京市","adcode":"110000"}`))
	}))
	defer srv.Close()

	p := NewProviderWithURL(srv.URL, "test-key", nil, newTestLogger())
	loc := p.LocationByIP(context.Background(), "::ffff:114.247.50.2")

	require.NotNil(t, loc)
	assert.Equal(t, "110000", loc.RegionCode)
	assert.Equal(t, "北京市", loc.Display())
}

func TestProvider_LocationByIP_ArrayFieldsMeanUnknown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"1","info":"OK","infocode":"10000","province":[],"city":[],"adcode":[],"rectangle":[]}`))
	}))
	defer srv.Close()

	p := NewProviderWithURL(srv.URL, "k", nil, newTestLogger())
	assert.Nil(t, p.LocationByIP(context.Background(), "8.8.8.8"))
}

func TestProvider_LocationByIP_SkipsNonPublicAddresses(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	p := NewProviderWithURL(srv.URL, "k", nil, newTestLogger())
	for _, ip := range []string{"", "127.0.0.1", "::1", "10.1.2.3", "192.168.0.5", "::ffff:172.16.0.9", "not-an-ip"} {
		assert.Nil(t, p.LocationByIP(context.Background(), ip), "ip %q", ip)
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestProvider_APIStatusFailureIsAbsent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"0","info":"INVALID_USER_KEY","infocode":"10001"}`))
	}))
	defer srv.Close()

	p := NewProviderWithURL(srv.URL, "bad", nil, newTestLogger())
	assert.Nil(t, p.LocationByIP(context.Background(), "8.8.8.8"))
	assert.Nil(t, p.Weather(context.Background(), "110000"))
}

func TestProvider_LocationByPlace_MunicipalityAndCache(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v3/geocode/geo", r.URL.Path)
		assert.Equal(t, "上海", r.URL.Query().Get("address"))
		w.Write([]byte(`{"status":"1","info":"OK","infocode":"10000","count":"1",
			"geocodes":[{"province":"上海市","city":[],"district":[],"adcode":"310000"}]}`))
	}))
	defer srv.Close()

	cache := newMemCache()
	p := NewProviderWithURL(srv.URL, "k", cache, newTestLogger())

	first := p.LocationByPlace(context.Background(), " 上海 ")
	require.NotNil(t, first)
	assert.Equal(t, "上海市", first.City)
	assert.Equal(t, "上海市", first.Display())

	second := p.LocationByPlace(context.Background(), "上海")
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 7*24*time.Hour, cache.ttls["amap:geo:上海"])
}

func TestProvider_LocationByPlace_NoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"1","info":"OK","infocode":"10000","count":"0","geocodes":[]}`))
	}))
	defer srv.Close()

	p := NewProviderWithURL(srv.URL, "k", nil, newTestLogger())
	assert.Nil(t, p.LocationByPlace(context.Background(), "亚特兰蒂斯"))
	assert.Nil(t, p.LocationByPlace(context.Background(), "   "))
}

func TestProvider_LocationThenWeather(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v3/ip":
			w.Write([]byte(`{"status":"1","info":"OK","infocode":"10000","province":"浙江省","city":"杭州市","adcode":"330100"}`))
		case "/v3/weather/weatherInfo":
			assert.Equal(t, "330100", r.URL.Query().Get("city"))
			assert.Equal(t, "base", r.URL.Query().Get("extensions"))
			w.Write([]byte(`{"status":"1","count":"1","info":"OK","infocode":"10000","lives":[{
				"province":"浙江","city":"杭州市","adcode":"330100","weather":"晴","temperature":"25",
				"winddirection":"东南","windpower":"≤3","humidity":"60","reporttime":"2024-06-01 10:00:00"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := NewProviderWithURL(srv.URL, "k", nil, newTestLogger())
	loc := p.LocationByIP(context.Background(), "60.191.1.1")
	require.NotNil(t, loc)
	weather := p.Weather(context.Background(), loc.RegionCode)
	require.NotNil(t, weather)
	assert.Equal(t, "浙江省杭州市", loc.Display())
	assert.Equal(t, "晴，气温25°C，东南风≤3级，湿度60%", weather.Display())
}

func TestProvider_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewProvider(config.AMapConfig{
		APIKey:          "k",
		BaseURL:         srv.URL,
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerOpenFor:  time.Minute,
		WeatherCacheTTL: time.Minute,
	}, nil, newTestLogger())

	for range 5 {
		assert.Nil(t, p.Weather(context.Background(), "110000"))
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestProvider_CancelledCallersDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"1","info":"OK","infocode":"10000","province":"北京市","city":"北京市","adcode":"110000"}`))
	}))
	defer srv.Close()

	p := NewProvider(config.AMapConfig{
		APIKey:          "k",
		BaseURL:         srv.URL,
		Timeout:         time.Second,
		BreakerFailures: 2,
		BreakerOpenFor:  time.Minute,
	}, nil, newTestLogger())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for range 5 {
		assert.Nil(t, p.LocationByIP(cancelled, "8.8.8.8"))
	}

	loc := p.LocationByIP(context.Background(), "8.8.8.8")
	require.NotNil(t, loc)
	assert.Equal(t, "110000", loc.RegionCode)
}

func TestPublicAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"8.8.8.8", "8.8.8.8", true},
		{"::ffff:8.8.4.4", "8.8.4.4", true},
		{" 2400:3200::1 ", "2400:3200::1", true},
		{"127.0.0.1", "", false},
		{"fe80::1", "", false},
		{"0.0.0.0", "", false},
		{"garbage", "", false},
	}

	for _, tt := range tests {
		addr, ok := publicAddr(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, addr.String(), tt.in)
		}
	}
}

func TestFlexString(t *testing.T) {
	t.Parallel()

	var v struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
		D flexString `json:"d"`
		E flexString `json:"e"`
	}
	err := json.Unmarshal([]byte(`{"a":"x","b":[],"c":null,"d":["first","second"],"e":[1,2]}`), &v)
	require.NoError(t, err)
	assert.Equal(t, flexString("x"), v.A)
	assert.Equal(t, flexString(""), v.B)
	assert.Equal(t, flexString(""), v.C)
	assert.Equal(t, flexString(""), v.D)
	assert.Equal(t, flexString(""), v.E)
}
