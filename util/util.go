package util

import "fmt"

var DebugLevel = 0

func DPrintf(level int, format string, args ...interface{}) {
	if level <= DebugLevel {
		fmt.Printf(format, args...)
	}
}

func Min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func Max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func RoundUp(n uint64, sz uint64) uint64 {
	return (n + sz - 1) / sz
}
