// Package dispatch interprets a parsed request array against the store,
// server identity, and snapshot provider, producing an ordered sequence of
// response values. It never touches the network directly.
package dispatch

import (
	"strconv"
	"strings"
	"time"

	"redikv/internal/protocol"
	"redikv/internal/serverinfo"
	"redikv/internal/snapshot"
	"redikv/internal/storage"
)

// commandFunc executes one command's args (the request array minus its
// command-name element) and returns the response sequence to write back.
type commandFunc func(d *Dispatcher, args []string) []protocol.Value

// Dispatcher owns the command table and the collaborators every command
// needs: Store, ServerInfo, and a snapshot Provider.
type Dispatcher struct {
	Store     *storage.Store
	Info      *serverinfo.ServerInfo
	Snapshot  snapshot.Provider
	OnCommand func(name string) // called once per successfully-dispatched command, for metrics
	commands  map[string]commandFunc
}

// New builds a Dispatcher wired to the given collaborators.
func New(store *storage.Store, info *serverinfo.ServerInfo, snap snapshot.Provider) *Dispatcher {
	d := &Dispatcher{
		Store:    store,
		Info:     info,
		Snapshot: snap,
	}
	d.commands = map[string]commandFunc{
		"PING":     cmdPing,
		"ECHO":     cmdEcho,
		"GET":      cmdGet,
		"SET":      cmdSet,
		"INFO":     cmdInfo,
		"REPLCONF": cmdReplConf,
		"PSYNC":    cmdPSync,
	}
	return d
}

// Dispatch interprets req and returns a non-empty ordered sequence of
// response values. Command name comparison is ASCII case-insensitive. Any
// unknown command or empty request surfaces as a single Error response and
// never mutates state.
func (d *Dispatcher) Dispatch(req protocol.Request) []protocol.Value {
	if len(req.Args) == 0 {
		return []protocol.Value{protocol.Err("empty command")}
	}

	name := strings.ToUpper(req.Args[0])
	fn, ok := d.commands[name]
	if !ok {
		return []protocol.Value{protocol.Errf("unknown command '%s'", req.Args[0])}
	}

	resp := fn(d, req.Args[1:])
	if d.OnCommand != nil && (len(resp) == 0 || resp[0].Kind != protocol.KindError) {
		d.OnCommand(name)
	}
	return resp
}

func one(v protocol.Value) []protocol.Value { return []protocol.Value{v} }

func cmdPing(d *Dispatcher, args []string) []protocol.Value {
	if len(args) != 0 {
		return one(protocol.Err("wrong number of arguments for 'ping' command"))
	}
	return one(protocol.SimpleString("PONG"))
}

func cmdEcho(d *Dispatcher, args []string) []protocol.Value {
	if len(args) != 1 {
		return one(protocol.Err("wrong number of arguments for 'echo' command"))
	}
	return one(protocol.BulkString(args[0]))
}

func cmdGet(d *Dispatcher, args []string) []protocol.Value {
	if len(args) != 1 {
		return one(protocol.Err("wrong number of arguments for 'get' command"))
	}
	v, ok := d.Store.Get(args[0])
	if !ok {
		return one(protocol.Null)
	}
	return one(protocol.BulkString(v))
}

// cmdSet expects: key, value, then an optional case-insensitive "PX <ms>"
// pair. Any unparsable PX value or unrecognized trailing option aborts the
// whole command without mutating the store.
func cmdSet(d *Dispatcher, args []string) []protocol.Value {
	if len(args) < 2 {
		return one(protocol.Err("wrong number of arguments for 'set' command"))
	}
	key, value := args[0], args[1]
	rest := args[2:]

	var ttl *time.Duration
	for len(rest) > 0 {
		opt := strings.ToUpper(rest[0])
		switch opt {
		case "PX":
			if len(rest) < 2 {
				return one(protocol.Err("syntax error"))
			}
			ms, err := strconv.ParseUint(rest[1], 10, 64)
			if err != nil {
				return one(protocol.Err("value is not an integer or out of range"))
			}
			dur := time.Duration(ms) * time.Millisecond
			ttl = &dur
			rest = rest[2:]
		default:
			return one(protocol.Errf("unknown option '%s'", rest[0]))
		}
	}

	d.Store.Set(key, value, ttl)
	return one(protocol.SimpleString("OK"))
}

// cmdInfo returns all sections if no args are given, otherwise the
// concatenation of the named sections, joined by "\n". Absent sections are
// silently omitted.
func cmdInfo(d *Dispatcher, args []string) []protocol.Value {
	if len(args) == 0 {
		return one(protocol.BulkString(d.Info.All()))
	}

	var parts []string
	for _, name := range args {
		if s, ok := d.Info.Section(strings.ToLower(name)); ok {
			parts = append(parts, s)
		}
	}
	return one(protocol.BulkString(strings.Join(parts, "\n")))
}

// cmdReplConf acknowledges any replication-configuration subcommand; the
// arguments themselves are not validated or acted on beyond this, since
// post-handshake replication is out of scope.
func cmdReplConf(d *Dispatcher, args []string) []protocol.Value {
	return one(protocol.SimpleString("OK"))
}

// cmdPSync always answers with a full resync: a FULLRESYNC acknowledgement
// naming the primary's replication id and current offset, followed by the
// snapshot payload. The two requested arguments (replid, offset) are
// accepted but ignored, since partial resync is out of scope.
func cmdPSync(d *Dispatcher, args []string) []protocol.Value {
	if len(args) != 2 {
		return one(protocol.Err("wrong number of arguments for 'psync' command"))
	}

	replID := d.Info.MasterReplID
	offset := d.Info.MasterReplOffset

	ack := protocol.SimpleString("FULLRESYNC " + replID + " " + strconv.FormatUint(offset, 10))
	payload := protocol.BulkBytes(d.Snapshot.Snapshot())
	return []protocol.Value{ack, payload}
}
