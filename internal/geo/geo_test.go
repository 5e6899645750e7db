package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_States(t *testing.T) {
	var pending Location
	_, _, ok := pending.Coordinates()
	assert.False(t, ok)
	assert.Equal(t, "Locating...", pending.Status())

	resolved := Resolved(28.61, 77.2)
	lat, lon, ok := resolved.Coordinates()
	require.True(t, ok)
	assert.Equal(t, 28.61, lat)
	assert.Equal(t, 77.2, lon)
	assert.Equal(t, "GPS Active", resolved.Status())

	failed := Failed(ErrUnsupported)
	_, _, ok = failed.Coordinates()
	assert.False(t, ok)
	assert.Equal(t, "Location Error", failed.Status())
	assert.ErrorIs(t, failed.Err, ErrUnsupported)
}

func TestUnavailable(t *testing.T) {
	loc := Unavailable{}.Locate(context.Background())
	assert.Equal(t, StateFailed, loc.State)
	assert.EqualError(t, loc.Err, "geolocation is not supported")
}

func TestIPInfo_Locate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ip":"1.2.3.4","city":"Pune","region":"Maharashtra","country":"IN","loc":"18.5196,73.8553"}`))
	}))
	defer srv.Close()

	loc := NewIPInfo(srv.URL, "secret", time.Second).Locate(context.Background())
	require.Equal(t, StateResolved, loc.State)
	assert.InDelta(t, 18.5196, loc.Latitude, 1e-9)
	assert.InDelta(t, 73.8553, loc.Longitude, 1e-9)
}

func TestIPInfo_Failures(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`},
		{"no loc", http.StatusOK, `{"ip":"1.2.3.4"}`},
		{"bad loc", http.StatusOK, `{"loc":"north,east"}`},
		{"out of range", http.StatusOK, `{"loc":"123,10"}`},
		{"not json", http.StatusOK, `nope`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Empty(t, r.Header.Get("Authorization"))
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			loc := NewIPInfo(srv.URL, "", time.Second).Locate(context.Background())
			assert.Equal(t, StateFailed, loc.State)
			assert.Error(t, loc.Err)
		})
	}
}

func TestNewLocator(t *testing.T) {
	static := &Static{Latitude: 1, Longitude: 2}

	l, err := NewLocator(ModeAuto, static, "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, *static, l)

	l, err = NewLocator(ModeAuto, nil, "", time.Second)
	require.NoError(t, err)
	assert.IsType(t, &IPInfo{}, l)

	l, err = NewLocator(ModeOff, static, "", time.Second)
	require.NoError(t, err)
	assert.IsType(t, Unavailable{}, l)

	_, err = NewLocator(ModeStatic, nil, "", time.Second)
	assert.Error(t, err)

	_, err = NewLocator("gps", nil, "", time.Second)
	assert.Error(t, err)
}
