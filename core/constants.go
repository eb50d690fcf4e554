package core

// Time unit constants, all expressed in microseconds unless the name says
// otherwise. Microseconds are the base resolution of the whole package:
// the corrected clock, the scheduler heap and the timeline snapshots all
// carry time as int64 microsecond counts.
const (
	// MicrosPerMilli is one millisecond, in microseconds.
	MicrosPerMilli int64 = 1000

	// MillisPerSecond is one second, in milliseconds.
	MillisPerSecond int64 = 1000

	// MicrosPerSecond is one second, in microseconds.
	MicrosPerSecond int64 = MillisPerSecond * MicrosPerMilli

	// SecondsPerMinute is one minute, in seconds.
	SecondsPerMinute int64 = 60

	// MicrosPerMinute is one minute, in microseconds.
	MicrosPerMinute int64 = SecondsPerMinute * MicrosPerSecond

	// MinutesPerHour is one hour, in minutes.
	MinutesPerHour int64 = 60

	// MicrosPerHour is one hour, in microseconds.
	MicrosPerHour int64 = MinutesPerHour * MicrosPerMinute

	// HoursPerDay is one day, in hours.
	HoursPerDay int64 = 24

	// MicrosPerDay is one day, in microseconds.
	MicrosPerDay int64 = HoursPerDay * MicrosPerHour

	// NanosPerMicro is one microsecond, in nanoseconds.
	NanosPerMicro int64 = 1000
)

// DefaultTicksPerSecond is the default core tick frequency.
// 60 is a multiple of the usual simulation frequencies (10, 12, 15, 20, 30)
// and matches the typical display refresh rate.
const DefaultTicksPerSecond = 60
