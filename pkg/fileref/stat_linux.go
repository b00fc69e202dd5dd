package fileref

import "golang.org/x/sys/unix"

func statTimes(st *unix.Stat_t) (mtime, ctime int64) {
	return int64(st.Mtim.Sec), int64(st.Ctim.Sec) //nolint:unconvert
}
