package worker

import (
	"path"
	"time"
)

const taggedPrefix = "tagged"

func defaultOutputKey(inputKey string) string {
	return path.Join(taggedPrefix, inputKey)
}

const RFC3339Micro = "2006-01-02T15:04:05.000000-07:00"

func getFormattedNow() *string {
	now := time.Now().UTC().Format(RFC3339Micro)
	return &now
}
