package source

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/btsnoop"
)

var epoch = time.Date(2024, 3, 14, 9, 26, 53, 0, time.UTC)

func pcapFile(t *testing.T, lt layers.LinkType, packets ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65535, lt))
	for i, p := range packets {
		ci := gopacket.CaptureInfo{
			Timestamp:     epoch.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(p),
			Length:        len(p),
		}
		require.NoError(t, w.WritePacket(ci, p))
	}
	return buf.Bytes()
}

func TestOpen_Btsnoop(t *testing.T) {
	var buf bytes.Buffer
	w, err := btsnoop.NewWriter(&buf, btsnoop.Header{LinkType: btsnoop.LinkTypeHCI})
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord(core.CaptureRecord{Direction: core.Received, Data: []byte{1, 2, 3}}))

	src, err := Open(&buf)
	require.NoError(t, err)
	assert.Equal(t, btsnoop.LinkTypeHCI, src.Header().LinkType)

	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, rec.Data)
	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestOpen_PcapWithPHDR(t *testing.T) {
	data := pcapFile(t, LinkTypeH4WithPHDR,
		[]byte{0, 0, 0, 0, 0x02, 0x01, 0x20, 0x00, 0x00},
		[]byte{0, 0, 0, 1, 0x04, 0x0E, 0x00},
		[]byte{0, 0},
	)

	src, err := Open(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, btsnoop.LinkTypeHCIUART, src.Header().LinkType)

	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rec.Sequence)
	assert.Equal(t, core.Sent, rec.Direction)
	assert.False(t, rec.IsControl)
	assert.Equal(t, []byte{0x02, 0x01, 0x20, 0x00, 0x00}, rec.Data)
	assert.True(t, epoch.Equal(rec.Time()))

	rec, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, core.Received, rec.Direction)
	assert.True(t, rec.IsControl)

	rec, err = src.Next()
	require.NoError(t, err)
	assert.Empty(t, rec.Data)

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
	assert.False(t, src.Truncated())
}

func TestOpen_PcapH4(t *testing.T) {
	data := pcapFile(t, LinkTypeH4, []byte{0x01, 0x03, 0x0C, 0x00}, []byte{0x04, 0x0E, 0x00})

	src, err := Open(bytes.NewReader(data))
	require.NoError(t, err)

	cmd, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, core.Sent, cmd.Direction)
	assert.True(t, cmd.IsControl)

	ev, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, core.Received, ev.Direction)
}

func TestOpen_PcapTruncated(t *testing.T) {
	data := pcapFile(t, LinkTypeH4WithPHDR, []byte{0, 0, 0, 0, 0x02, 0x01, 0x20})
	src, err := Open(bytes.NewReader(data[:len(data)-2]))
	require.NoError(t, err)

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
	assert.True(t, src.Truncated())
}

func TestOpen_Rejects(t *testing.T) {
	tests := map[string][]byte{
		"empty":    nil,
		"text":     []byte("hello world"),
		"ethernet": pcapFile(t, layers.LinkTypeEthernet),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Open(bytes.NewReader(data))
			assert.True(t, errors.Is(err, core.ErrFormat), "got %v", err)
		})
	}
}
