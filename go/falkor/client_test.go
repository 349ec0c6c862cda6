package falkor

import (
	"context"
	"testing"
	"time"

	"github.com/FalkorDB/Snowflake-to-FalkorDB/go/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestDialFalkorScheme(t *testing.T) {
	var srv = miniredis.RunT(t)

	var client, err = Dial(context.Background(), &config.FalkorConfig{
		Endpoint: "falkor://" + srv.Addr(),
		Graph:    "g",
	})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

func TestDialBareHostPort(t *testing.T) {
	var srv = miniredis.RunT(t)

	var client, err = Dial(context.Background(), &config.FalkorConfig{
		Endpoint: srv.Addr(),
		Graph:    "g",
	})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

func TestDialWithPassword(t *testing.T) {
	var srv = miniredis.RunT(t)
	srv.RequireAuth("sesame")

	var _, err = Dial(context.Background(), &config.FalkorConfig{
		Endpoint: srv.Addr(),
		Graph:    "g",
	})
	require.Error(t, err)

	client, err := Dial(context.Background(), &config.FalkorConfig{
		Endpoint: srv.Addr(),
		Graph:    "g",
		Password: "sesame",
	})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}

func TestClientOptions(t *testing.T) {
	var opts, err = clientOptions(&config.FalkorConfig{
		Endpoint:       "falkor://10.1.2.3:6380",
		QueryTimeoutMS: 1500,
	})
	require.NoError(t, err)
	require.Equal(t, "10.1.2.3:6380", opts.Addr)
	require.Equal(t, 1500*time.Millisecond, opts.ReadTimeout)

	opts, err = clientOptions(&config.FalkorConfig{
		Endpoint: "falkors://secure:6379",
	})
	require.NoError(t, err)
	require.NotNil(t, opts.TLSConfig)

	_, err = clientOptions(&config.FalkorConfig{Endpoint: "http://not-redis"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing falkordb endpoint")
}

func TestScalarFromReply(t *testing.T) {
	// A result-bearing reply is header, rows and statistics.
	var value, ok, err = scalarFromReply([]interface{}{
		[]interface{}{"s.watermarks"},
		[]interface{}{[]interface{}{`{"customers":"2024-01-02T00:00:00+00:00"}`}},
		[]interface{}{"Query internal execution time: 0.1"},
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"customers":"2024-01-02T00:00:00+00:00"}`, value)

	// No rows matched.
	_, ok, err = scalarFromReply([]interface{}{
		[]interface{}{"s.watermarks"},
		[]interface{}{},
		[]interface{}{"stats"},
	})
	require.NoError(t, err)
	require.False(t, ok)

	// A statistics-only reply carries no result set.
	_, _, err = scalarFromReply([]interface{}{[]interface{}{"stats"}})
	require.Error(t, err)

	_, _, err = scalarFromReply("OK")
	require.Error(t, err)
}
