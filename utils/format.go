// Package utils holds the helpers shared by the command line tools.
package utils

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// MessageType selects the color of a terminal message.
type MessageType int

// The message types used across the command line tools.
const (
	DefaultMessage MessageType = iota
	SuccessMessage
	ErrorMessage
	StatusMessage
)

// Terminal colors.
const (
	DefaultColor = "\x1b[0m"
	StatusColor  = "\x1b[36m"
	SuccessColor = "\x1b[32m"
	ErrorColor   = "\x1b[31m"
)

// DecorateText colors the message according to its type.
func DecorateText(s string, msgType MessageType) string {
	switch msgType {
	case DefaultMessage:
		return DefaultColor + s + DefaultColor
	case StatusMessage:
		return StatusColor + s + DefaultColor
	case SuccessMessage:
		return SuccessColor + s + DefaultColor
	case ErrorMessage:
		return ErrorColor + s + DefaultColor
	}
	return s
}

// FormatTime formats a duration like 1d 2h 3m 4.50s, omitting the leading zero units.
func FormatTime(d time.Duration) string {
	secs := d.Seconds()
	if secs < 60 {
		return fmt.Sprintf("%.2fs", secs)
	}
	units := []struct {
		suffix string
		size   int64
	}{
		{"d", 86400},
		{"h", 3600},
		{"m", 60},
	}

	whole := int64(secs)
	rest := secs - float64(whole)

	var parts []string
	for _, u := range units {
		if n := whole / u.size; n > 0 || len(parts) > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", n, u.suffix))
		}
		whole %= u.size
	}
	parts = append(parts, fmt.Sprintf("%.2fs", float64(whole)+rest))

	return strings.Join(parts, " ")
}

// DetectFileContentType returns the MIME type sniffed from the file content.
func DetectFileContentType(fname string) (string, error) {
	file, err := os.Open(fname)
	if err != nil {
		return "", errors.Wrap(err, "cannot open file")
	}
	defer file.Close()

	// Only the first 512 bytes are used to sniff the content type.
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil {
		return "", errors.Wrapf(err, "cannot read %s", fname)
	}
	return http.DetectContentType(buffer[:n]), nil
}
