package jobs

import (
	"fmt"
	"strings"
	"time"
)

// BuildReport renders the final markdown artifact for a finished job. The
// document always names the original file, its media type, and its size.
func BuildReport(w *Work, completedAt time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Analysis Result for %s\n\n", w.FileName)
	sb.WriteString("## File Information\n")
	fmt.Fprintf(&sb, "- **Filename**: %s\n", w.FileName)
	fmt.Fprintf(&sb, "- **Type**: %s\n", w.MediaType)
	fmt.Fprintf(&sb, "- **Size**: %s\n\n", FormatSize(w.SizeBytes))

	sb.WriteString("## Analysis Summary\n")
	if w.Interpretation != "" {
		sb.WriteString(w.Interpretation)
	} else {
		sb.WriteString("No summary was produced for this document.")
	}
	sb.WriteString("\n\n")

	if w.Translation != "" && w.Translation != w.Interpretation {
		sb.WriteString("## Translation\n")
		sb.WriteString(w.Translation)
		sb.WriteString("\n\n")
	}

	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "*Analysis completed at %s*\n", completedAt.Format("2006-01-02 15:04:05 MST"))
	return sb.String()
}

// FormatSize renders a byte count in human-readable units.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	value := float64(bytes)
	idx := 0
	for value >= 1024 && idx < len(units)-1 {
		value /= 1024
		idx++
	}
	if idx == 0 {
		return fmt.Sprintf("%d Bytes", bytes)
	}
	return fmt.Sprintf("%.2f %s", value, units[idx])
}
