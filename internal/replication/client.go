// Package replication implements the replica-side handshake: a four-step
// state machine (PING, REPLCONF listening-port, REPLCONF capa, PSYNC) run
// once at startup against a remote primary. Ongoing command streaming
// after the initial FULLRESYNC is out of scope.
package replication

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"redikv/internal/protocol"
)

// dialTimeout bounds the initial TCP connect to the primary.
const dialTimeout = 5 * time.Second

// readBufferSize mirrors the connection loop's bounded-read assumption:
// one read is expected to carry one complete framed response.
const readBufferSize = 512

// HandshakeResult carries what the primary told us once PSYNC completes.
type HandshakeResult struct {
	ReplID string
	Offset string
}

// Client runs the replica-side handshake against a single primary.
type Client struct {
	MasterHost string
	MasterPort uint16
	OwnPort    uint16
	log        *logrus.Entry
}

// NewClient builds a handshake Client.
func NewClient(masterHost string, masterPort, ownPort uint16, log *logrus.Logger) *Client {
	return &Client{
		MasterHost: masterHost,
		MasterPort: masterPort,
		OwnPort:    ownPort,
		log:        log.WithField("component", "replication"),
	}
}

// Handshake connects to the primary and runs the handshake to completion.
// Any unexpected response at any step is a HandshakeFailure: the caller is
// expected to treat this as fatal, per the spec's bounded scope.
func (c *Client) Handshake() (*HandshakeResult, error) {
	addr := net.JoinHostPort(c.MasterHost, strconv.Itoa(int(c.MasterPort)))
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("replication: failed to connect to master %s: %w", addr, err)
	}
	defer conn.Close()

	c.log.WithField("addr", addr).Info("connected to master")

	if err := c.step(conn, "ping", protocol.Request{Args: []string{"PING"}}, c.expectSimplePrefix("PONG")); err != nil {
		return nil, err
	}

	portArg := strconv.Itoa(int(c.OwnPort))
	if err := c.step(conn, "replconf_port",
		protocol.Request{Args: []string{"REPLCONF", "listening-port", portArg}},
		c.expectSimplePrefix("OK")); err != nil {
		return nil, err
	}

	if err := c.step(conn, "replconf_capa",
		protocol.Request{Args: []string{"REPLCONF", "capa", "psync2"}},
		c.expectSimplePrefix("OK")); err != nil {
		return nil, err
	}

	var result HandshakeResult
	check := func(v protocol.Value) error {
		if v.Kind != protocol.KindSimpleString || !strings.HasPrefix(v.Str, "FULLRESYNC ") {
			return fmt.Errorf("replication: expected FULLRESYNC, got %+v", v)
		}
		fields := strings.Fields(v.Str)
		if len(fields) != 3 {
			return fmt.Errorf("replication: malformed FULLRESYNC response %q", v.Str)
		}
		result.ReplID = fields[1]
		result.Offset = fields[2]
		return nil
	}
	if err := c.step(conn, "psync", protocol.Request{Args: []string{"PSYNC", "?", "-1"}}, check); err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{"replid": result.ReplID, "offset": result.Offset}).Info("full resync acknowledged, handshake complete")
	return &result, nil
}

// step sends req and validates the response with check, logging the stage
// name on both success and failure.
func (c *Client) step(conn net.Conn, stage string, req protocol.Request, check func(protocol.Value) error) error {
	log := c.log.WithField("stage", stage)

	if _, err := conn.Write(protocol.SerializeRequest(req)); err != nil {
		log.WithError(err).Error("failed to send")
		return fmt.Errorf("replication: write failed at %s: %w", stage, err)
	}

	v, err := readResponse(conn)
	if err != nil {
		log.WithError(err).Error("failed to read response")
		return fmt.Errorf("replication: read failed at %s: %w", stage, err)
	}

	if err := check(v); err != nil {
		log.WithError(err).Error("unexpected response")
		return err
	}

	log.Debug("step complete")
	return nil
}

func readResponse(conn net.Conn) (protocol.Value, error) {
	buf := make([]byte, readBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return protocol.Value{}, err
	}
	return protocol.ParseResponse(buf[:n])
}

func (c *Client) expectSimplePrefix(prefix string) func(protocol.Value) error {
	return func(v protocol.Value) error {
		if v.Kind != protocol.KindSimpleString || !strings.HasPrefix(strings.ToUpper(v.Str), strings.ToUpper(prefix)) {
			return fmt.Errorf("replication: expected SimpleString prefix %q, got %+v", prefix, v)
		}
		return nil
	}
}
