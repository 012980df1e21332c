// Package billno formats bill numbers: INV<YYYYMMDD><sequence>, where the
// sequence is the tenant's bill count for that calendar day plus one, padded
// to four digits. The count read must happen inside the same transaction as
// the sale insert; this package only formats.
package billno

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const prefix = "INV"

func Format(day time.Time, seq int) string {
	return fmt.Sprintf("%s%s%04d", prefix, day.UTC().Format("20060102"), seq)
}

// Sequence extracts the numeric suffix from a bill number. Returns 0 for
// anything that does not look like a bill number.
func Sequence(billNumber string) int {
	if !strings.HasPrefix(billNumber, prefix) || len(billNumber) < len(prefix)+9 {
		return 0
	}
	seq, err := strconv.Atoi(billNumber[len(prefix)+8:])
	if err != nil {
		return 0
	}
	return seq
}
