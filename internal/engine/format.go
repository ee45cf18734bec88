package engine

import (
	"fmt"
	"time"
)

// FormatSplit renders a duration as MM:SS.t, the readout format the clock
// face uses for splits and totals.
func FormatSplit(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	t := d.Milliseconds() / 100
	return fmt.Sprintf("%02d:%02d.%d", t/600, (t/10)%60, t%10)
}
