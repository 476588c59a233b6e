package geoip

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
)

// StaticDataset answers country lookups from a precomputed table of IPv4
// ranges. It is the zero-dependency tier: bounded latency, no network, loaded
// once at startup. IPv6 is out of scope.
type StaticDataset struct {
	ranges []ipRange
}

type ipRange struct {
	start   uint32
	end     uint32
	country string
}

// LoadStaticDataset reads a CSV of (range_start, range_end, country_code)
// rows. Start and end are unsigned 32-bit integers or dotted-quad addresses.
// Rows are sorted by range start after loading.
func LoadStaticDataset(path string) (*StaticDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadStaticDataset(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return ds, nil
}

// ReadStaticDataset parses dataset rows from a reader.
func ReadStaticDataset(r io.Reader) (*StaticDataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var ranges []ipRange
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed dataset row: %w", err)
		}
		if len(row) < 3 {
			continue
		}

		start, err := parseIPv4Value(strings.TrimSpace(row[0]))
		if err != nil {
			continue
		}
		end, err := parseIPv4Value(strings.TrimSpace(row[1]))
		if err != nil || end < start {
			continue
		}

		ranges = append(ranges, ipRange{
			start:   start,
			end:     end,
			country: strings.ToUpper(strings.TrimSpace(row[2])),
		})
	}

	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].start < ranges[j].start
	})

	return &StaticDataset{ranges: ranges}, nil
}

// CountryCode returns the country for an IPv4 address, or "" when the
// address falls outside every known range or the matched row is a
// placeholder.
func (d *StaticDataset) CountryCode(ip string) string {
	value, ok := IPv4ToUint32(ip)
	if !ok {
		return ""
	}

	// Find the first range starting past the value; the candidate is the one
	// before it.
	idx := sort.Search(len(d.ranges), func(i int) bool {
		return d.ranges[i].start > value
	})
	if idx == 0 {
		return ""
	}

	candidate := d.ranges[idx-1]
	if value > candidate.end {
		return ""
	}
	if candidate.country == "" || candidate.country == "-" || candidate.country == "ZZ" {
		return ""
	}
	return candidate.country
}

// Len returns the number of loaded ranges.
func (d *StaticDataset) Len() int {
	return len(d.ranges)
}

// IPv4ToUint32 converts a dotted-quad IPv4 address to its unsigned 32-bit
// value. Returns false for anything that is not a valid IPv4 address,
// including IPv6.
func IPv4ToUint32(ip string) (uint32, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return 0, false
	}
	v4 := parsed.To4()
	if v4 == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(v4), true
}

func parseIPv4Value(field string) (uint32, error) {
	if v, err := strconv.ParseUint(field, 10, 32); err == nil {
		return uint32(v), nil
	}
	if v, ok := IPv4ToUint32(field); ok {
		return v, nil
	}
	return 0, fmt.Errorf("not an IPv4 value: %q", field)
}
