package parser

import (
	"strings"
	"time"

	"go.uber.org/zap"
)

// Zone names RFC 822 allows in place of a numeric offset. Any other name is
// rejected instead of being read as UTC or as the host's zone.
var zoneOffsets = map[string]string{
	"GMT": "+0000",
	"UT":  "+0000",
	"UTC": "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

// DateResolver turns RSS pubDate values into epoch milliseconds.
type DateResolver struct {
	log *zap.Logger
}

func NewDateResolver(log *zap.Logger) DateResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return DateResolver{log: log}
}

// Parse returns the instant in epoch milliseconds with seconds resolution.
// Failures are logged and reported with ok == false.
func (r DateResolver) Parse(text string) (ms int64, ok bool) {
	t, err := time.Parse(time.RFC1123Z, numericZone(strings.TrimSpace(text)))
	if err == nil {
		return t.Unix() * 1000, true
	}

	log := r.log
	if log == nil {
		log = zap.NewNop()
	}
	log.Warn("failed to parse publication date", zap.String("date", text), zap.Error(err))
	return 0, false
}

// numericZone swaps a trailing RFC 822 zone name for its offset.
func numericZone(value string) string {
	i := strings.LastIndexByte(value, ' ')
	if i < 0 {
		return value
	}
	if offset, ok := zoneOffsets[strings.ToUpper(value[i+1:])]; ok {
		return value[:i+1] + offset
	}
	return value
}
