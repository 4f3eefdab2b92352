// Package strings holds small string helpers shared by configuration code.
package strings

import (
	"strings"
)

// SplitList flattens comma-separated entries into a trimmed list without
// blanks or repeats. Order of first appearance is kept.
//
//	SplitList([]string{"kafka-1:9092, kafka-2:9092", "kafka-1:9092"})
//	// []string{"kafka-1:9092", "kafka-2:9092"}
func SplitList(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			result = append(result, part)
		}
	}
	return result
}
