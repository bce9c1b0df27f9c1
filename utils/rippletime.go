package utils

import "time"

// rippleEpochOffset 账本原生时间字段相对 Unix epoch 的偏移（2000-01-01T00:00:00Z）
const rippleEpochOffset int64 = 946684800

// RippleTimeToTime 将账本时间转换为 time.Time（UTC）
func RippleTimeToTime(rippleTime int64) time.Time {
	return time.Unix(rippleTime+rippleEpochOffset, 0).UTC()
}

// TimeToRippleTime 将 time.Time 转换为账本时间
func TimeToRippleTime(t time.Time) int64 {
	return t.Unix() - rippleEpochOffset
}
