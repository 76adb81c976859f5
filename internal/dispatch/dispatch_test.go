package dispatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redikv/internal/protocol"
	"redikv/internal/serverinfo"
	"redikv/internal/snapshot"
	"redikv/internal/storage"
)

func newTestDispatcher() *Dispatcher {
	store := storage.NewStore()
	info := serverinfo.NewPrimary(6379)
	return New(store, info, snapshot.NewFixed())
}

func req(args ...string) protocol.Request { return protocol.Request{Args: args} }

func TestPing(t *testing.T) {
	d := newTestDispatcher()
	resp := d.Dispatch(req("PING"))
	require.Len(t, resp, 1)
	assert.True(t, resp[0].Equal(protocol.SimpleString("PONG")))
}

func TestPingIsCaseInsensitive(t *testing.T) {
	d := newTestDispatcher()
	resp := d.Dispatch(req("ping"))
	assert.True(t, resp[0].Equal(protocol.SimpleString("PONG")))
}

func TestEcho(t *testing.T) {
	d := newTestDispatcher()
	resp := d.Dispatch(req("ECHO", "hey"))
	require.Len(t, resp, 1)
	assert.True(t, resp[0].Equal(protocol.BulkString("hey")))
}

func TestSetThenGet(t *testing.T) {
	d := newTestDispatcher()
	resp := d.Dispatch(req("SET", "k", "v"))
	assert.True(t, resp[0].Equal(protocol.SimpleString("OK")))

	resp = d.Dispatch(req("GET", "k"))
	assert.True(t, resp[0].Equal(protocol.BulkString("v")))
}

func TestGetMissingKeyIsNull(t *testing.T) {
	d := newTestDispatcher()
	resp := d.Dispatch(req("GET", "missing"))
	assert.True(t, resp[0].Equal(protocol.Null))
}

func TestSetWithPXExpiresImmediatelyWhenZero(t *testing.T) {
	d := newTestDispatcher()
	d.Dispatch(req("SET", "k", "v", "PX", "0"))
	resp := d.Dispatch(req("GET", "k"))
	assert.True(t, resp[0].Equal(protocol.Null))
}

func TestSetWithUnparsablePXAborts(t *testing.T) {
	d := newTestDispatcher()
	before := d.Store.Len()
	resp := d.Dispatch(req("SET", "k", "v", "PX", "not-a-number"))
	assert.Equal(t, protocol.KindError, resp[0].Kind)
	assert.Equal(t, before, d.Store.Len())
}

func TestSetWithUnknownOptionAborts(t *testing.T) {
	d := newTestDispatcher()
	resp := d.Dispatch(req("SET", "k", "v", "XX"))
	assert.Equal(t, protocol.KindError, resp[0].Kind)
	_, ok := d.Store.Get("k")
	assert.False(t, ok)
}

func TestUnknownCommandIsError(t *testing.T) {
	d := newTestDispatcher()
	resp := d.Dispatch(req("FOO"))
	require.Len(t, resp, 1)
	assert.Equal(t, protocol.KindError, resp[0].Kind)
}

func TestInfoWithNoArgsIsSupersetOfSingleSection(t *testing.T) {
	d := newTestDispatcher()
	all := d.Dispatch(req("INFO"))[0]
	single := d.Dispatch(req("INFO", "replication"))[0]
	assert.Contains(t, string(all.Bulk), string(single.Bulk))
}

func TestInfoSectionLookupIsCaseInsensitive(t *testing.T) {
	d := newTestDispatcher()
	lower := d.Dispatch(req("INFO", "replication"))[0]
	upper := d.Dispatch(req("INFO", "REPLICATION"))[0]
	assert.Equal(t, string(lower.Bulk), string(upper.Bulk))
	assert.NotEmpty(t, string(upper.Bulk))
}

func TestInfoUnknownSectionIsOmittedSilently(t *testing.T) {
	d := newTestDispatcher()
	resp := d.Dispatch(req("INFO", "bogus"))
	assert.Equal(t, "", string(resp[0].Bulk))
}

func TestPSyncRespondsFullResyncThenSnapshot(t *testing.T) {
	d := newTestDispatcher()
	resp := d.Dispatch(req("PSYNC", "?", "-1"))
	require.Len(t, resp, 2)

	assert.Equal(t, protocol.KindSimpleString, resp[0].Kind)
	assert.True(t, strings.HasPrefix(resp[0].Str, "FULLRESYNC "))
	fields := strings.Fields(resp[0].Str)
	require.Len(t, fields, 3)

	assert.Equal(t, protocol.KindBulkString, resp[1].Kind)
	assert.NotEmpty(t, resp[1].Bulk)
}

func TestReplConfAlwaysOK(t *testing.T) {
	d := newTestDispatcher()
	resp := d.Dispatch(req("REPLCONF", "listening-port", "6380"))
	assert.True(t, resp[0].Equal(protocol.SimpleString("OK")))
}

func TestFailingCommandLeavesStoreUnchanged(t *testing.T) {
	d := newTestDispatcher()
	d.Dispatch(req("SET", "k", "v"))
	before := d.Store.Len()

	d.Dispatch(req("SET", "k2", "v2", "PX", "garbage"))
	assert.Equal(t, before, d.Store.Len())
}
