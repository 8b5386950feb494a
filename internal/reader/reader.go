// Package reader parses the ASCII BRITE-Constellation files: the .orig header keywords and the
// photometric time series of .orig, .ndatdb and .avedb files.
package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	commentChar = '#'
	// BJDOffset is subtracted from the decorrelated time axis; previews assume it never changes.
	BJDOffset = 2456000.0

	maxLineSize = 1024 * 1024
)

var ErrWrongDefault = errors.New("wrong default x-axis value")

// Content is what one file contributes to an Observation.
type Content struct {
	Metadata   map[string]string
	TimeSeries map[string][]float64
}

// HasData reports whether files with this extension carry a time series.
func HasData(ext string) bool {
	switch ext {
	case ".orig", ".ndatdb", ".avedb":
		return true
	default:
		return false
	}
}

// Read parses r according to the file extension. Extensions without content return an empty
// Content.
func Read(r io.Reader, ext string) (*Content, error) {
	switch ext {
	case ".orig":
		return readOrig(r)
	case ".ndatdb":
		return readBJD(r, [3]string{"BJD", "BRITEMAG", "SIGMA_BRITEMAG"})
	case ".avedb":
		return readBJD(r, [3]string{"ave_BJD", "ave_BRITEMAG", "ave_SIGMA_BRITEMAG"})
	default:
		return &Content{Metadata: map[string]string{}, TimeSeries: map[string][]float64{}}, nil
	}
}

// readOrig handles "# Keyword = value / comment" headers followed by whitespace separated columns
// named by the "columnN" keywords.
func readOrig(r io.Reader) (*Content, error) {
	c := &Content{Metadata: map[string]string{}, TimeSeries: map[string][]float64{}}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == commentChar {
			key, value, ok := strings.Cut(line, "=")
			if !ok || strings.Contains(key, "----------") {
				continue
			}
			keyword := strings.TrimSpace(strings.TrimPrefix(key, string(commentChar)))
			value, _, _ = strings.Cut(value, "/")
			value = strings.TrimSpace(value)
			c.Metadata[keyword] = value
			if strings.Contains(keyword, "column") {
				c.TimeSeries[value] = []float64{}
			}
			continue
		}
		for i, field := range strings.Fields(line) {
			name, ok := c.Metadata["column"+strconv.Itoa(i+1)]
			if !ok {
				return nil, fmt.Errorf("line %d: no column%d declared", lineNo, i+1)
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			c.TimeSeries[name] = append(c.TimeSeries[name], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return c, nil
}

// readBJD keeps columns 0, 1 and 3. The header must document the 2456000.0 offset.
func readBJD(r io.Reader, keys [3]string) (*Content, error) {
	c := &Content{Metadata: map[string]string{}, TimeSeries: map[string][]float64{}}
	defaultFound := false
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == commentChar {
			if strings.Contains(line, "2456000.0") {
				defaultFound = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: want at least 4 columns, got %d", lineNo, len(fields))
		}
		for i, col := range [3]int{0, 1, 3} {
			v, err := strconv.ParseFloat(fields[col], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			c.TimeSeries[keys[i]] = append(c.TimeSeries[keys[i]], v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if !defaultFound {
		return nil, ErrWrongDefault
	}
	return c, nil
}

// TimeRange returns the first and last value of the named series, in MJD.
// HJD series are converted from JD; BJD series carry the BJDOffset.
func (c *Content) TimeRange() (start, end float64, ok bool) {
	for _, key := range []string{"HJD", "BJD", "ave_BJD"} {
		s := c.TimeSeries[key]
		if len(s) == 0 {
			continue
		}
		shift := -2400000.5
		if key != "HJD" {
			shift += BJDOffset
		}
		return s[0] + shift, s[len(s)-1] + shift, true
	}
	return 0, 0, false
}
