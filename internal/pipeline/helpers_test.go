package pipeline

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/btsnoop"
)

func acl(handle, cid uint16, payload []byte) []byte {
	b := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint16(b[0:], handle|0x2000)
	binary.LittleEndian.PutUint16(b[2:], uint16(4+len(payload)))
	binary.LittleEndian.PutUint16(b[4:], uint16(len(payload)))
	binary.LittleEndian.PutUint16(b[6:], cid)
	copy(b[8:], payload)
	return b
}

func uih(dlci uint8, info []byte) []byte {
	f := []byte{dlci<<2 | 0x03, 0xEF, byte(len(info))<<1 | 0x01}
	f = append(f, info...)
	return append(f, 0x9A)
}

func vendor(session, counter, status, reserved uint32, payload []byte) []byte {
	b := make([]byte, 36+len(payload)+4)
	copy(b, []byte{0x55, 0x55, 0xAA, 0xAA})
	binary.LittleEndian.PutUint32(b[4:], uint32(36+len(payload)))
	binary.LittleEndian.PutUint32(b[8:], session)
	binary.LittleEndian.PutUint32(b[12:], counter)
	binary.LittleEndian.PutUint32(b[20:], session)
	binary.LittleEndian.PutUint32(b[28:], status)
	binary.LittleEndian.PutUint32(b[32:], reserved)
	copy(b[36:], payload)
	return b
}

func connectionComplete(handle uint16, addr [6]byte) []byte {
	p := make([]byte, 2+11)
	p[0], p[1] = 0x03, 11
	binary.LittleEndian.PutUint16(p[3:], handle)
	copy(p[5:], addr[:])
	p[11] = 0x01
	return p
}

// sampleRecords is a short SPP conversation: a connection, one request and
// its response, a broken ACL segment and a plain AT command.
func sampleRecords() []core.CaptureRecord {
	recs := []core.CaptureRecord{
		{Direction: core.Received, IsControl: true, Data: connectionComplete(0x0001, [6]byte{1, 2, 3, 4, 5, 6})},
		{Direction: core.Sent, Data: acl(0x0001, 0x0041, uih(2, vendor(7, 1, 0x0B, 0x09, nil)))},
		{Direction: core.Received, Data: acl(0x0001, 0x0041, uih(2, vendor(7, 1, 0x00, 0x00, []byte("J2534"))))},
		{Direction: core.Received, Data: []byte{0x01, 0x20, 0x08, 0x00, 0x01, 0x02, 0x03}},
		{Direction: core.Sent, Data: acl(0x0001, 0x0041, uih(2, []byte("ATZ\r")))},
		{Direction: core.Sent, Data: acl(0x0001, 0x0041, uih(2, vendor(9, 1, 0x02, 0x00, nil)))},
	}
	for i := range recs {
		recs[i].Sequence = uint64(i + 1)
		recs[i].Timestamp = core.TimestampFromTime(time.Unix(int64(1700000000+i), 0))
	}
	return recs
}

func encodeCapture(t testing.TB, recs []core.CaptureRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := btsnoop.NewWriter(&buf, btsnoop.Header{Version: btsnoop.Version, LinkType: btsnoop.LinkTypeHCI})
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.WriteRecord(r))
	}
	return buf.Bytes()
}

func writeCapture(t testing.TB, dir, name string, recs []core.CaptureRecord) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, encodeCapture(t, recs), 0o644))
	return path
}
