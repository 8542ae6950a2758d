package gripper

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// RobotiqPort is the TCP port of the Robotiq URCap socket server.
const RobotiqPort = "63352"

// robotiqStroke is the full opening of a 2F-85 in meters. POS 0 is fully open
// and POS 255 fully closed.
const robotiqStroke = 0.085

const robotiqReplyTimeout = 2 * time.Second

// Robotiq is an Actuator speaking the Robotiq socket protocol, where each
// "SET <VAR> <value>" line is acknowledged with "ack".
type Robotiq struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	target int
}

// DialRobotiq connects to the gripper at host and activates it.
func DialRobotiq(ctx context.Context, host string) (*Robotiq, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, RobotiqPort))
	if err != nil {
		return nil, errors.Wrapf(err, "dialing robotiq gripper at %q", host)
	}
	g := newRobotiq(conn)

	// activate, enable motion, then force and speed out of 255
	for _, kv := range [][2]string{{"ACT", "1"}, {"GTO", "1"}, {"FOR", "200"}, {"SPE", "200"}} {
		if err := g.set(ctx, kv[0], kv[1]); err != nil {
			return nil, multierr.Combine(err, conn.Close())
		}
	}
	return g, nil
}

func newRobotiq(conn net.Conn) *Robotiq {
	return &Robotiq{
		conn:   conn,
		reader: bufio.NewReader(conn),
		target: widthToPos(DefaultGraspWidth),
	}
}

// SetGraspWidth sets the position used by the next Grasp.
func (g *Robotiq) SetGraspWidth(ctx context.Context, width float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.target = widthToPos(ClampWidth(width))
	return nil
}

// Grasp closes to the last set width.
func (g *Robotiq) Grasp(ctx context.Context) error {
	g.mu.Lock()
	pos := g.target
	g.mu.Unlock()
	return errors.Wrap(g.set(ctx, "POS", fmt.Sprint(pos)), "grasping")
}

// Open moves the fingers fully apart.
func (g *Robotiq) Open(ctx context.Context) error {
	return errors.Wrap(g.set(ctx, "POS", "0"), "opening gripper")
}

// Close releases the connection.
func (g *Robotiq) Close() error {
	return g.conn.Close()
}

func (g *Robotiq) set(ctx context.Context, what, to string) error {
	reply, err := g.send(ctx, fmt.Sprintf("SET %s %s\n", what, to))
	if err != nil {
		return err
	}
	if reply != "ack" {
		return errors.Errorf("robotiq rejected SET %s %s: %q", what, to, reply)
	}
	return nil
}

func (g *Robotiq) send(ctx context.Context, msg string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	deadline := time.Now().Add(robotiqReplyTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := g.conn.SetDeadline(deadline); err != nil {
		return "", err
	}
	if _, err := g.conn.Write([]byte(msg)); err != nil {
		return "", err
	}
	line, err := g.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func widthToPos(width float64) int {
	frac := 1 - width/robotiqStroke
	return int(math.Round(math.Max(0, math.Min(1, frac)) * 255))
}
