package script

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	rutils "go.viam.com/rdk/utils"
)

// Table renders records as a table with one row per record, positions in
// meters and orientations as roll/pitch/yaw in degrees.
func Table(records []Record) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Kind", "Position", "Orientation", "Wait"})
	for i, rec := range records {
		row := table.Row{fmt.Sprintf("%d", i), rec.Kind.String(), "", "", ""}
		switch rec.Kind {
		case KindPose:
			pt := rec.Pose.Point()
			ori := rec.Pose.Orientation().EulerAngles()
			row[2] = fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", pt.X, pt.Y, pt.Z)
			row[3] = fmt.Sprintf(
				"Roll:%.1f, Pitch:%.1f, Yaw:%.1f",
				rutils.RadToDeg(ori.Roll),
				rutils.RadToDeg(ori.Pitch),
				rutils.RadToDeg(ori.Yaw),
			)
		case KindWait:
			row[4] = rec.Wait.String()
		default:
		}
		t.AppendRow(row)
	}
	return t.Render()
}
