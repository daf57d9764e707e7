package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/decoder"
)

func TestCollector_ObserveRecord(t *testing.T) {
	c := NewCollector()

	c.ObserveRecord("a.log", decoder.Result{
		Link:  core.LinkFrame{Kind: core.KindData},
		Stage: decoder.StagePacket,
		Err:   core.ErrTruncated,
	}, true)
	c.ObserveRecord("a.log", decoder.Result{
		Link:       core.LinkFrame{Kind: core.KindData},
		Stage:      decoder.StageVendor,
		Subchannel: &core.SubchannelFrame{Type: core.FrameInfoUnnumbered},
		Vendor:     &core.VendorMessage{Direction: core.Received, Payload: []byte("J2534")},
	}, true)
	c.ObserveRecord("a.log", decoder.Result{Link: core.LinkFrame{Kind: core.KindEvent}}, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.RecordsTotal.WithLabelValues("a.log", "DATA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DropsTotal.WithLabelValues("a.log", "packet", "truncated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.VendorMessagesTotal.WithLabelValues("a.log", "RX")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FramesTotal.WithLabelValues("a.log", "UIH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FilteredTotal.WithLabelValues("a.log")))
}

func TestCollector_Isolated(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.ObserveMessage("x", &core.ClassifiedMessage{TypeTag: core.TagReadData})

	assert.Equal(t, 1.0, testutil.ToFloat64(a.MessagesByTypeTotal.WithLabelValues("x", core.TagReadData)))
	assert.Equal(t, 0, testutil.CollectAndCount(b.MessagesByTypeTotal))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector()
	c.ObserveMessage("cap", &core.ClassifiedMessage{TypeTag: core.TagGetVersion})

	path := filepath.Join(t.TempDir(), "spptrace.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `spptrace_messages_by_type_total{capture="cap",type_tag="GET_VERSION"} 1`))
}
