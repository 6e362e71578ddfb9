package stats

import (
	"strconv"
	"strings"
)

// Snapshot captures counter values of a Record at some point in time.
type Snapshot struct {
	ReadCount  uint64 `json:"readCount"`
	WriteCount uint64 `json:"writeCount"`
	ReadBytes  uint64 `json:"readBytes"`
	WriteBytes uint64 `json:"writeBytes"`
}

// Summary describes requests of one kind.
type Summary struct {
	Requests uint64
	AvgSize  uint64
}

func summarize(count, bytes uint64) Summary {
	if count == 0 {
		return Summary{}
	}

	return Summary{Requests: count, AvgSize: bytes / count}
}

// Read returns the summary of read requests.
func (s Snapshot) Read() Summary {
	return summarize(s.ReadCount, s.ReadBytes)
}

// Write returns the summary of write requests.
func (s Snapshot) Write() Summary {
	return summarize(s.WriteCount, s.WriteBytes)
}

// Total returns the summary of all requests.
func (s Snapshot) Total() Summary {
	return summarize(s.ReadCount+s.WriteCount, s.ReadBytes+s.WriteBytes)
}

func writeSection(sb *strings.Builder, name string, s Summary) {
	sb.WriteString(name)
	sb.WriteString(":\n  reqs: ")
	sb.WriteString(strconv.FormatUint(s.Requests, 10))
	sb.WriteString("\n  avg size: ")
	sb.WriteString(strconv.FormatUint(s.AvgSize, 10))
	sb.WriteString("\n")
}

// Report renders the snapshot as read, write and total sections.
func (s Snapshot) Report() string {
	var sb strings.Builder

	writeSection(&sb, "read", s.Read())
	writeSection(&sb, "write", s.Write())
	writeSection(&sb, "total", s.Total())

	return sb.String()
}

// Report returns the text report for the current state of r.
func Report(r *Record) string {
	return r.Snapshot().Report()
}
