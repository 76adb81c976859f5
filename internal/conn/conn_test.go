package conn

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redikv/internal/dispatch"
	"redikv/internal/serverinfo"
	"redikv/internal/snapshot"
	"redikv/internal/storage"
)

func newTestLoop(t *testing.T) (client net.Conn, done chan struct{}) {
	t.Helper()
	server, client := net.Pipe()

	store := storage.NewStore()
	info := serverinfo.NewPrimary(6379)
	d := dispatch.New(store, info, snapshot.NewFixed())

	log := logrus.New()
	log.SetOutput(io.Discard)

	loop := New(server, d, log, nil)
	done = make(chan struct{})
	go func() {
		loop.Run()
		close(done)
	}()
	return client, done
}

func readN(t *testing.T, c net.Conn, n int) []byte {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, n)
	_, err := io.ReadFull(c, buf)
	require.NoError(t, err)
	return buf
}

func TestGoldenVectorPing(t *testing.T) {
	client, done := newTestLoop(t)
	defer func() { client.Close(); <-done }()

	_, err := client.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "+PONG\r\n", string(readN(t, client, len("+PONG\r\n"))))
}

func TestGoldenVectorEcho(t *testing.T) {
	client, done := newTestLoop(t)
	defer func() { client.Close(); <-done }()

	_, err := client.Write([]byte("*2\r\n$4\r\nECHO\r\n$3\r\nhey\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "$3\r\nhey\r\n", string(readN(t, client, len("$3\r\nhey\r\n"))))
}

func TestGoldenVectorSetThenGet(t *testing.T) {
	client, done := newTestLoop(t)
	defer func() { client.Close(); <-done }()

	_, err := client.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", string(readN(t, client, len("+OK\r\n"))))

	_, err = client.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "$1\r\nv\r\n", string(readN(t, client, len("$1\r\nv\r\n"))))
}

func TestGoldenVectorSetWithPXThenExpiredGet(t *testing.T) {
	client, done := newTestLoop(t)
	defer func() { client.Close(); <-done }()

	_, err := client.Write([]byte("*5\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n$2\r\nPX\r\n$2\r\n50\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "+OK\r\n", string(readN(t, client, len("+OK\r\n"))))

	time.Sleep(200 * time.Millisecond)

	_, err = client.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "_\r\n", string(readN(t, client, len("_\r\n"))))
}

func TestUnknownCommandErrorThenConnectionStaysOpen(t *testing.T) {
	client, done := newTestLoop(t)
	defer func() { client.Close(); <-done }()

	_, err := client.Write([]byte("*1\r\n$3\r\nfoo\r\n"))
	require.NoError(t, err)
	resp := readN(t, client, len("-ERR unknown command 'foo'\r\n"))
	assert.Equal(t, "-ERR unknown command 'foo'\r\n", string(resp))

	_, err = client.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "+PONG\r\n", string(readN(t, client, len("+PONG\r\n"))))
}
