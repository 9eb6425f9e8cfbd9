package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrTaskIDRequired indicates no task id was provided.
var ErrTaskIDRequired = errors.New("task id required")

// ParseTaskIDs parses task ids from args.
//
// Parsing rules:
// 1. Each arg is one id, optionally prefixed with '#' (e.g., 12, #12)
// 2. An arg may hold several comma-separated ids (e.g., 3,4,#9)
// 3. Ids must be positive; duplicates are dropped, first occurrence wins
// 4. No ids at all → ErrTaskIDRequired
// 5. Anything else → error: invalid task id: <arg>
func ParseTaskIDs(args []string) ([]int, error) {
	var ids []int
	seen := make(map[int]bool)

	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := parseTaskID(part)
			if err != nil {
				return nil, err
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}

	if len(ids) == 0 {
		return nil, ErrTaskIDRequired
	}
	return ids, nil
}

// ParseTaskID parses exactly one task id.
func ParseTaskID(args []string) (int, error) {
	if len(args) == 0 {
		return 0, ErrTaskIDRequired
	}
	if len(args) > 1 {
		return 0, fmt.Errorf("expected one task id, got %d", len(args))
	}
	return parseTaskID(strings.TrimSpace(args[0]))
}

func parseTaskID(s string) (int, error) {
	digits := strings.TrimPrefix(s, "#")
	if !isAllDigits(digits) {
		return 0, fmt.Errorf("invalid task id: %s", s)
	}
	id, err := strconv.Atoi(digits)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid task id: %s", s)
	}
	return id, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
