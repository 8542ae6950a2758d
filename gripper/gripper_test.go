package gripper

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	rdkinject "go.viam.com/rdk/testutils/inject"
	"go.viam.com/test"
)

func TestClampWidth(t *testing.T) {
	test.That(t, ClampWidth(0), test.ShouldEqual, MinWidth)
	test.That(t, ClampWidth(1), test.ShouldEqual, MaxWidth)
	test.That(t, ClampWidth(0.05), test.ShouldEqual, 0.05)
}

func TestFake(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	test.That(t, f.SetGraspWidth(ctx, 0.03), test.ShouldBeNil)
	test.That(t, f.Grasp(ctx), test.ShouldBeNil)
	test.That(t, f.Holding(), test.ShouldBeTrue)
	test.That(t, f.Open(ctx), test.ShouldBeNil)
	test.That(t, f.Holding(), test.ShouldBeFalse)
	test.That(t, f.Calls(), test.ShouldResemble, []Call{
		{Name: "set_width", Width: 0.03},
		{Name: "grasp", Width: 0.03},
		{Name: "open", Width: MaxWidth},
	})
}

func TestFromViam(t *testing.T) {
	ctx := context.Background()
	injected := rdkinject.NewGripper("gripper")

	var gotWidth interface{}
	injected.DoFunc = func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
		gotWidth = cmd[SetWidthCommand]
		return nil, nil
	}
	grabs := 0
	injected.GrabFunc = func(ctx context.Context, extra map[string]interface{}) (bool, error) {
		grabs++
		return false, nil
	}
	injected.OpenFunc = func(ctx context.Context, extra map[string]interface{}) error {
		return errors.New("jammed")
	}

	act := FromViam(injected)
	test.That(t, act.SetGraspWidth(ctx, 0.03), test.ShouldBeNil)
	test.That(t, gotWidth, test.ShouldEqual, 0.03)
	test.That(t, act.Grasp(ctx), test.ShouldBeNil)
	test.That(t, grabs, test.ShouldEqual, 1)

	err := act.Open(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "jammed")
}

func TestWidthStepper(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	f := NewFake()
	s := NewWidthStepper(f, mock)

	sent, err := s.Step(ctx, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sent, test.ShouldBeFalse)

	sent, err = s.Step(ctx, -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sent, test.ShouldBeTrue)
	test.That(t, s.Width(), test.ShouldAlmostEqual, MaxWidth-WidthStep)

	// inside the settle window the target moves but nothing is sent
	sent, err = s.Step(ctx, -5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sent, test.ShouldBeFalse)
	test.That(t, s.Width(), test.ShouldEqual, MinWidth)
	test.That(t, len(f.Calls()), test.ShouldEqual, 2)

	mock.Add(SettleTime + time.Millisecond)
	sent, err = s.Step(ctx, 10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sent, test.ShouldBeTrue)
	calls := f.Calls()
	test.That(t, calls[len(calls)-2], test.ShouldResemble, Call{Name: "set_width", Width: MaxWidth})
	test.That(t, calls[len(calls)-1].Name, test.ShouldEqual, "grasp")
}

// serveRobotiq answers each line on conn with reply and sends the lines it saw
// on the returned channel.
func serveRobotiq(conn net.Conn, reply string) <-chan string {
	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimSpace(line)
			if _, err := conn.Write([]byte(reply + "\n")); err != nil {
				return
			}
		}
	}()
	return lines
}

func TestRobotiq(t *testing.T) {
	ctx := context.Background()
	client, server := net.Pipe()
	lines := serveRobotiq(server, "ack")
	g := newRobotiq(client)

	// the full stroke is clamped to MaxWidth first
	test.That(t, g.SetGraspWidth(ctx, 0.085), test.ShouldBeNil)
	test.That(t, g.Grasp(ctx), test.ShouldBeNil)
	test.That(t, <-lines, test.ShouldEqual, "SET POS 15")

	test.That(t, g.SetGraspWidth(ctx, MaxWidth), test.ShouldBeNil)
	test.That(t, g.Grasp(ctx), test.ShouldBeNil)
	test.That(t, <-lines, test.ShouldEqual, "SET POS 15")

	test.That(t, g.SetGraspWidth(ctx, 0), test.ShouldBeNil)
	test.That(t, g.Grasp(ctx), test.ShouldBeNil)
	// widths are clamped to MinWidth before conversion
	test.That(t, <-lines, test.ShouldEqual, "SET POS 225")

	test.That(t, g.Open(ctx), test.ShouldBeNil)
	test.That(t, <-lines, test.ShouldEqual, "SET POS 0")
	test.That(t, g.Close(), test.ShouldBeNil)
}

func TestRobotiqRejected(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	serveRobotiq(server, "nack")
	g := newRobotiq(client)
	defer g.Close()

	err := g.Open(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "rejected")
}

func TestWidthToPos(t *testing.T) {
	test.That(t, widthToPos(robotiqStroke), test.ShouldEqual, 0)
	test.That(t, widthToPos(0), test.ShouldEqual, 255)
	test.That(t, widthToPos(1), test.ShouldEqual, 0)
	test.That(t, widthToPos(DefaultGraspWidth), test.ShouldEqual, 165)
}
