package metrics

import (
	"fmt"
	"strings"
)

const histogramPrefix = "Graphics.Smoothness."

var trackerTypeNames = [MaxType]string{
	CompositorAnimation: "CompositorAnimation",
	MainThreadAnimation: "MainThreadAnimation",
	PinchZoom:           "PinchZoom",
	RAF:                 "RAF",
	TouchScroll:         "TouchScroll",
	Universal:           "Universal",
	Video:               "Video",
	WheelScroll:         "WheelScroll",
	ScrollbarScroll:     "ScrollbarScroll",
	Custom:              "Custom",
}

var threadTypeNames = map[ThreadType]string{
	ThreadUnknown:    "Unknown",
	ThreadCompositor: "CompositorThread",
	ThreadMain:       "MainThread",
	ThreadSlower:     "SlowerThread",
	ThreadScrolling:  "ScrollingThread",
}

func (t TrackerType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("TrackerType(%d)", int(t))
	}
	return trackerTypeNames[t]
}

func (t ThreadType) String() string {
	if name, ok := threadTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ThreadType(%d)", int(t))
}

// ParseTrackerType accepts either the histogram suffix ("TouchScroll") or its
// snake_case form ("touch_scroll").
func ParseTrackerType(s string) (TrackerType, error) {
	key := normalize(s)
	for t, name := range trackerTypeNames {
		if normalize(name) == key {
			return TrackerType(t), nil
		}
	}
	return 0, fmt.Errorf("unknown tracker type %q", s)
}

// ParseThreadType accepts "compositor", "main", "slower" and the histogram
// lane names. An empty string is ThreadUnknown.
func ParseThreadType(s string) (ThreadType, error) {
	switch normalize(s) {
	case "", "unknown":
		return ThreadUnknown, nil
	case "compositor", "compositorthread", "impl":
		return ThreadCompositor, nil
	case "main", "mainthread":
		return ThreadMain, nil
	case "slower", "slowerthread":
		return ThreadSlower, nil
	}
	return 0, fmt.Errorf("unknown thread type %q", s)
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
}

// ThroughputHistogramName names the percent-dropped-frames histogram for a lane.
func ThroughputHistogramName(t TrackerType, lane ThreadType) string {
	return histogramPrefix + "PercentDroppedFrames." + lane.String() + "." + t.String()
}

// FrameSequenceLengthHistogramName names the sequence length histogram.
func FrameSequenceLengthHistogramName(t TrackerType) string {
	return histogramPrefix + "FrameSequenceLength." + t.String()
}

// CheckerboardingHistogramName names the checkerboarded-frames histogram.
func CheckerboardingHistogramName(t TrackerType) string {
	return histogramPrefix + "Checkerboarding." + t.String()
}
