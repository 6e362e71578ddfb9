// Package units contains helpers to convert sizes and counts to human-readable strings.
package units

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	atunits "github.com/alecthomas/units"
	"github.com/pkg/errors"
)

//nolint:gochecknoglobals
var (
	base10UnitPrefixes = []string{"", "K", "M", "G", "T"}
	base2UnitPrefixes  = []string{"", "Ki", "Mi", "Gi", "Ti"}
)

const (
	bytesStringBase10Envar = "DMSTAT_BYTES_STRING_BASE_10"
)

func niceNumber(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.1f", f), "0"), ".")
}

func toDecimalUnitString(f, thousand float64, prefixes []string, suffix string) string {
	for i := range prefixes {
		if f < 0.9*thousand {
			return fmt.Sprintf("%v %v%v", niceNumber(f), prefixes[i], suffix)
		}

		f /= thousand
	}

	return fmt.Sprintf("%v %v%v", niceNumber(f), prefixes[len(prefixes)-1], suffix)
}

// BytesStringBase10 formats the given value as bytes with the appropriate base-10 suffix (KB, MB, GB, ...)
func BytesStringBase10(b int64) string {
	//nolint:mnd
	return toDecimalUnitString(float64(b), 1000, base10UnitPrefixes, "B")
}

// BytesStringBase2 formats the given value as bytes with the appropriate base-2 suffix (KiB, MiB, GiB, ...)
func BytesStringBase2(b int64) string {
	//nolint:mnd
	return toDecimalUnitString(float64(b), 1024.0, base2UnitPrefixes, "B")
}

// BytesString formats the given value as bytes, in base-2 units unless the environment asks for base-10.
func BytesString(b int64) string {
	if v, _ := strconv.ParseBool(os.Getenv(bytesStringBase10Envar)); v {
		return BytesStringBase10(b)
	}

	return BytesStringBase2(b)
}

// Count returns the given number with the appropriate base-10 suffix (K, M, G, ...)
func Count(v uint64) string {
	//nolint:mnd
	return toDecimalUnitString(float64(v), 1000, base10UnitPrefixes, "")
}

// ParseBytes parses a size such as "4096", "64KiB" or "1GB".
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return 0, errors.Errorf("negative size: %v", s)
		}

		return v, nil
	}

	v, err := atunits.ParseStrictBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid size %q", s)
	}

	if v < 0 {
		return 0, errors.Errorf("negative size: %v", s)
	}

	return v, nil
}
