// Package sensor holds the IoT telemetry record the workshop demos send and
// receive, together with its Avro schema and a CSV loader for the sample
// data set.
package sensor

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Reading is one row of environmental sensor telemetry.
type Reading struct {
	TS       float64 `json:"ts" avro:"ts"`
	Device   string  `json:"device" avro:"device"`
	CO       float64 `json:"co" avro:"co"`
	Humidity float64 `json:"humidity" avro:"humidity"`
	Light    bool    `json:"light" avro:"light"`
	LPG      float64 `json:"lpg" avro:"lpg"`
	Motion   bool    `json:"motion" avro:"motion"`
	Smoke    float64 `json:"smoke" avro:"smoke"`
	Temp     float64 `json:"temp" avro:"temp"`
}

// AvroSchema is the Avro record definition of Reading.
const AvroSchema = `{
  "type": "record",
  "name": "IoTSensorData",
  "namespace": "com.example.pulsarworkshop",
  "fields": [
    {"name": "ts", "type": "double"},
    {"name": "device", "type": "string"},
    {"name": "co", "type": "double"},
    {"name": "humidity", "type": "double"},
    {"name": "light", "type": "boolean"},
    {"name": "lpg", "type": "double"},
    {"name": "motion", "type": "boolean"},
    {"name": "smoke", "type": "double"},
    {"name": "temp", "type": "double"}
  ]
}`

var header = []string{"ts", "device", "co", "humidity", "light", "lpg", "motion", "smoke", "temp"}

// JSON encodes the reading for JSON payloads.
func (r Reading) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// Key is the message key used by the producers.
func (r Reading) Key() string {
	return r.Device
}

func (r Reading) String() string {
	return fmt.Sprintf("{ts=%.3f, device=%s, co=%g, humidity=%g, light=%t, lpg=%g, motion=%t, smoke=%g, temp=%g}",
		r.TS, r.Device, r.CO, r.Humidity, r.Light, r.LPG, r.Motion, r.Smoke, r.Temp)
}

// Source yields readings one at a time. Next returns io.EOF when exhausted.
type Source interface {
	Next() (Reading, error)
	Close() error
}

// CSVSource reads the telemetry CSV file. The first line must be the
// header; columns may appear in any order.
type CSVSource struct {
	f      *os.File
	r      *csv.Reader
	column map[string]int
	line   int
}

// OpenCSV opens path and reads its header.
func OpenCSV(path string) (*CSVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := newCSVSource(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.f = f
	return s, nil
}

func newCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	column := make(map[string]int, len(head))
	for i, name := range head {
		column[strings.Trim(strings.ToLower(strings.TrimSpace(name)), `"`)] = i
	}
	for _, name := range header {
		if _, ok := column[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return &CSVSource{r: cr, column: column, line: 1}, nil
}

// Next parses the next row.
func (s *CSVSource) Next() (Reading, error) {
	record, err := s.r.Read()
	if err != nil {
		return Reading{}, err
	}
	s.line++

	var r Reading
	var parseErr error
	get := func(name string) string { return strings.TrimSpace(record[s.column[name]]) }
	num := func(name string) float64 {
		v, err := strconv.ParseFloat(get(name), 64)
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("line %d: column %s: %w", s.line, name, err)
		}
		return v
	}
	flag := func(name string) bool {
		v, err := strconv.ParseBool(get(name))
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("line %d: column %s: %w", s.line, name, err)
		}
		return v
	}

	r.TS = num("ts")
	r.Device = get("device")
	r.CO = num("co")
	r.Humidity = num("humidity")
	r.Light = flag("light")
	r.LPG = num("lpg")
	r.Motion = flag("motion")
	r.Smoke = num("smoke")
	r.Temp = num("temp")
	return r, parseErr
}

func (s *CSVSource) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Synthetic generates deterministic readings for runs without a data file.
type Synthetic struct {
	devices []string
	start   float64
	n       int
}

// NewSynthetic returns a generator starting at unix time start.
func NewSynthetic(start float64) *Synthetic {
	return &Synthetic{
		devices: []string{"b8:27:eb:bf:9d:51", "00:0f:00:70:91:0a", "1c:bf:ce:15:ec:4d"},
		start:   start,
	}
}

// Next never returns an error.
func (s *Synthetic) Next() (Reading, error) {
	i := s.n
	s.n++
	return Reading{
		TS:       s.start + float64(i),
		Device:   s.devices[i%len(s.devices)],
		CO:       0.004 + float64(i%10)*0.0001,
		Humidity: 50 + float64(i%20)*0.5,
		Light:    i%2 == 0,
		LPG:      0.007 + float64(i%7)*0.0001,
		Motion:   i%5 == 0,
		Smoke:    0.019 + float64(i%9)*0.0001,
		Temp:     20 + float64(i%15)*0.3,
	}, nil
}

func (s *Synthetic) Close() error { return nil }
