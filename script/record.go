// Package script loads and steps through scripted pose lists.
//
// A script is plain text with one literal numeric array per line:
//
//	[x, y, z, qx, qy, qz, qw]   move to a pose
//	[0]                         release (open the gripper)
//	[1]                         grasp
//	[2, seconds]                wait
//	[3]                         end of task
//
// Blank lines and lines starting with '#' are ignored.
package script

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/spatialmath"

	"github.com/viam-labs/grasp-sequencer/pose"
)

// Kind identifies what a record asks the task to do.
type Kind int

// Record kinds.
const (
	KindPose Kind = iota
	KindRelease
	KindGrasp
	KindWait
	KindEnd
)

// maxWaitSeconds bounds waits to what a time.Duration can hold.
const maxWaitSeconds = float64(math.MaxInt64) / float64(time.Second)

// control codes as they appear in the file.
const (
	releaseCode = 0
	graspCode   = 1
	waitCode    = 2
	endCode     = 3
)

func (k Kind) String() string {
	switch k {
	case KindPose:
		return "pose"
	case KindRelease:
		return "release"
	case KindGrasp:
		return "grasp"
	case KindWait:
		return "wait"
	case KindEnd:
		return "end"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Record is one line of a script. Pose is set only for KindPose and Wait only
// for KindWait.
type Record struct {
	Kind Kind
	Pose spatialmath.Pose
	Wait time.Duration
}

// PoseRecord returns a pose record.
func PoseRecord(p spatialmath.Pose) Record {
	return Record{Kind: KindPose, Pose: p}
}

// WaitRecord returns a wait record.
func WaitRecord(d time.Duration) Record {
	return Record{Kind: KindWait, Wait: d}
}

// ParseError is returned for a line that is not a valid record.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("script line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads a script file.
func Load(path string) ([]Record, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening script %q", path)
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	records, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading script %q", path)
	}
	return records, nil
}

// Parse reads records from r. Any malformed line aborts the parse.
func Parse(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := parseLine(text)
		if err != nil {
			return nil, &ParseError{Line: lineNum, Text: text, Err: err}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func parseLine(text string) (Record, error) {
	if !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return Record{}, errors.New("expected a bracketed numeric array")
	}
	inner := strings.TrimSpace(text[1 : len(text)-1])
	if inner == "" {
		return Record{}, errors.New("empty array")
	}
	fields := strings.Split(inner, ",")
	values := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Record{}, errors.Wrapf(err, "field %q", strings.TrimSpace(field))
		}
		values = append(values, v)
	}

	switch len(values) {
	case pose.RecordLen:
		p, err := pose.FromRecord(values)
		if err != nil {
			return Record{}, err
		}
		return PoseRecord(p), nil
	case 1:
		switch values[0] {
		case releaseCode:
			return Record{Kind: KindRelease}, nil
		case graspCode:
			return Record{Kind: KindGrasp}, nil
		case endCode:
			return Record{Kind: KindEnd}, nil
		default:
			return Record{}, errors.Errorf("unknown control code %v", values[0])
		}
	case 2:
		if values[0] != waitCode {
			return Record{}, errors.Errorf("two value records must be waits, got code %v", values[0])
		}
		secs := values[1]
		if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return Record{}, errors.Errorf("invalid wait duration %v", secs)
		}
		if secs >= maxWaitSeconds {
			return Record{}, errors.Errorf("wait of %v seconds is too long", secs)
		}
		return WaitRecord(time.Duration(secs * float64(time.Second))), nil
	default:
		return Record{}, errors.Errorf("records have 1, 2 or %d values, got %d", pose.RecordLen, len(values))
	}
}

// Write serializes records in the format Parse reads.
func Write(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for i, rec := range records {
		line, err := formatRecord(rec)
		if err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatRecord(rec Record) (string, error) {
	switch rec.Kind {
	case KindPose:
		if rec.Pose == nil {
			return "", errors.New("pose record without a pose")
		}
		return formatValues(pose.ToRecord(rec.Pose)), nil
	case KindRelease:
		return formatValues([]float64{releaseCode}), nil
	case KindGrasp:
		return formatValues([]float64{graspCode}), nil
	case KindWait:
		return formatValues([]float64{waitCode, rec.Wait.Seconds()}), nil
	case KindEnd:
		return formatValues([]float64{endCode}), nil
	default:
		return "", errors.Errorf("unknown record kind %v", rec.Kind)
	}
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
