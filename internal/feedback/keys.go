package feedback

import (
	"fmt"
	"strings"
)

// Key namespace shared with external inspection tooling; the exact formats
// are a compatibility contract:
//
//	feedback:{measurementCode}:{viewpoint}:{feedbackId}  one entry
//	feedback:index:{measurementCode}:{viewpoint}         one bucket index
//	feedback:manifest                                    the manifest
//	stroke:{measurementCode}:{viewpoint}                 one production stroke
const ManifestKey = "feedback:manifest"

func EntryKey(measurementCode, viewpoint, feedbackID string) string {
	return fmt.Sprintf("feedback:%s:%s:%s", measurementCode, viewpoint, feedbackID)
}

func IndexKey(measurementCode, viewpoint string) string {
	return fmt.Sprintf("feedback:index:%s:%s", measurementCode, viewpoint)
}

func StrokeKey(measurementCode, viewpoint string) string {
	return fmt.Sprintf("stroke:%s:%s", measurementCode, viewpoint)
}

// ParseIndexKey recovers (measurementCode, viewpoint) from a bucket index
// key. The second return is false for malformed keys.
func ParseIndexKey(key string) (string, string, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "feedback" || parts[1] != "index" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}
