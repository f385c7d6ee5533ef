package store

import (
	"context"

	"golang.org/x/sys/unix"
)

// statfs is swappable in tests.
var statfs = unix.Statfs

// hasCapacity reports whether the volume holding dir can fit size bytes plus
// the configured slack. The probe is best-effort: when it cannot be taken,
// the answer is "enough" and the failure is logged, because a broken probe
// must not stall the pipeline.
func (c *Client) hasCapacity(ctx context.Context, dir string, size int64) bool {
	var st unix.Statfs_t
	if err := statfs(dir, &st); err != nil {
		c.logger.Warn(ctx, "disk capacity probe failed, proceeding", "dir", dir, "error", err.Error())
		return true
	}

	avail := int64(st.Bavail) * int64(st.Bsize)
	return avail >= size+c.diskSlack
}
