package sensor

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleCSV = `"ts","device","co","humidity","light","lpg","motion","smoke","temp"
"1.5945120943859746E9","b8:27:eb:bf:9d:51","0.004955938648391245","51.0","false","0.00765082227055719","false","0.02041127012241292","22.7"
"1.5945120947355676E9","00:0f:00:70:91:0a","0.0028400886071015706","76.0","false","0.005114383400977071","false","0.013274836704851536","19.700000762939453"
`

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensor_telemetry.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	src, err := OpenCSV(path)
	require.NoError(t, err)
	defer src.Close()

	r, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, "b8:27:eb:bf:9d:51", r.Device)
	require.InDelta(t, 1.5945120943859746e9, r.TS, 1e-3)
	require.InDelta(t, 22.7, r.Temp, 1e-9)
	require.False(t, r.Light)

	r, err = src.Next()
	require.NoError(t, err)
	require.Equal(t, "00:0f:00:70:91:0a", r.Key())

	_, err = src.Next()
	require.ErrorIs(t, err, io.EOF)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
}

func TestCSVSourceBadValue(t *testing.T) {
	src, err := newCSVSource(strings.NewReader("ts,device,co,humidity,light,lpg,motion,smoke,temp\n1,d,x,1,true,1,false,1,1\n"))
	require.NoError(t, err)

	_, err = src.Next()
	require.Error(t, err)
	require.Contains(t, err.Error(), "column co")
}

func TestCSVSourceMissingColumn(t *testing.T) {
	_, err := newCSVSource(strings.NewReader("ts,device\n1,d\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing column")
}

func TestSyntheticIsDeterministic(t *testing.T) {
	a, b := NewSynthetic(1000), NewSynthetic(1000)
	for i := 0; i < 5; i++ {
		ra, err := a.Next()
		require.NoError(t, err)
		rb, _ := b.Next()
		require.Equal(t, ra, rb)
		require.Equal(t, 1000+float64(i), ra.TS)
	}
}

func TestReadingJSON(t *testing.T) {
	r, _ := NewSynthetic(1).Next()
	data, err := r.JSON()
	require.NoError(t, err)

	var decoded Reading
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, r, decoded)
}

func TestAvroSchemaIsValidJSON(t *testing.T) {
	var def struct {
		Name   string `json:"name"`
		Fields []struct {
			Name string `json:"name"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(AvroSchema), &def))
	require.Equal(t, "IoTSensorData", def.Name)
	require.Len(t, def.Fields, len(header))
	for i, f := range def.Fields {
		require.Equal(t, header[i], f.Name)
	}
}
