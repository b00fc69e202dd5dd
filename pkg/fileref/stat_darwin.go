package fileref

import "golang.org/x/sys/unix"

func statTimes(st *unix.Stat_t) (mtime, ctime int64) {
	return st.Mtimespec.Sec, st.Ctimespec.Sec
}
