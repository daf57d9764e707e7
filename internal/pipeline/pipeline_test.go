package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/spptrace/internal/core"
	"firestige.xyz/spptrace/internal/core/decoder"
	"firestige.xyz/spptrace/internal/correlator"
	"firestige.xyz/spptrace/internal/filter"
	"firestige.xyz/spptrace/internal/metrics"
)

func TestPipeline_Run(t *testing.T) {
	data := encodeCapture(t, sampleRecords())

	res, err := NewBuilder().WithName("sample").Build().Run(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, decoder.ModeFlags, res.Mode)
	assert.Equal(t, "split", res.Layout)
	assert.Equal(t, 6, res.Stats.Records)
	assert.Equal(t, 1, res.Stats.Events)
	assert.Equal(t, 3, res.Stats.VendorMessages)
	assert.Equal(t, 1, res.Stats.NonVendor)
	assert.Equal(t, map[string]int{"packet.truncated": 1}, res.Stats.Drops)
	assert.False(t, res.Stats.TruncatedTail)

	require.Len(t, res.Messages, 3)
	assert.Equal(t, core.TagGetVersion, res.Messages[0].TypeTag)
	assert.Equal(t, core.TagDeviceIDResponse, res.Messages[1].TypeTag)
	assert.Equal(t, core.TagReadData, res.Messages[2].TypeTag)
	assert.Equal(t, uint64(2), res.Messages[0].Message.Sequence)

	require.Len(t, res.Sessions, 2)
	assert.Equal(t, uint32(7), res.Sessions[0].ID)
	assert.Len(t, res.Sessions[0].Messages, 2)
	assert.Equal(t, uint32(9), res.Sessions[1].ID)

	assert.Equal(t, Traffic{Sent: 3, Received: 1}, *res.Channels[0x0041])
	assert.Equal(t, Traffic{Sent: 3, Received: 1}, *res.Subchannels[2])
	assert.Equal(t, 1, res.Hints[decoder.HintATCommand])

	require.Len(t, res.Devices, 1)
	assert.Equal(t, "06:05:04:03:02:01", res.Devices[0].AddressString())

	assert.Nil(t, res.Records)
	assert.Equal(t, map[string]int{core.TagGetVersion: 1, core.TagDeviceIDResponse: 1, core.TagReadData: 1}, res.TypeCounts())
}

func TestPipeline_ShortMessage(t *testing.T) {
	cut := []byte{0x00, 0x55, 0x55, 0xAA, 0xAA, 0x10}
	recs := append(sampleRecords(), core.CaptureRecord{
		Sequence:  7,
		Direction: core.Received,
		Data:      acl(0x0001, 0x0041, uih(2, cut)),
	})

	res, err := New(Config{}).Run(context.Background(), bytes.NewReader(encodeCapture(t, recs)))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stats.ShortMessages)
	assert.Equal(t, map[string]int{"packet.truncated": 1}, res.Stats.Drops)
	assert.Len(t, res.Messages, 3)
	require.Len(t, res.Short, 1)
	short := res.Short[0]
	assert.Equal(t, uint64(7), short.Sequence)
	assert.Equal(t, core.Received, short.Direction)
	assert.Equal(t, uint8(1), short.HeaderOffset)
	assert.Equal(t, uint8(2), short.SubchannelID)
	assert.Equal(t, cut, short.Raw)
}

func TestPipeline_Idempotent(t *testing.T) {
	data := encodeCapture(t, sampleRecords())
	p := New(Config{})

	first, err := p.Run(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	second, err := p.Run(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	require.Equal(t, len(first.Messages), len(second.Messages))
	for i := range first.Messages {
		assert.Equal(t, first.Messages[i].TypeTag, second.Messages[i].TypeTag)
		assert.Equal(t, *first.Messages[i].Message, *second.Messages[i].Message)
	}
	assert.Equal(t, first.Stats, second.Stats)
}

func TestPipeline_NotACapture(t *testing.T) {
	_, err := New(Config{Name: "junk"}).Run(context.Background(), bytes.NewReader([]byte("definitely not btsnoop")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrFormat))
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}).Run(ctx, bytes.NewReader(encodeCapture(t, sampleRecords())))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_TruncatedTail(t *testing.T) {
	data := encodeCapture(t, sampleRecords())
	data = data[:len(data)-3]

	res, err := New(Config{}).Run(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, res.Stats.TruncatedTail)
	assert.Equal(t, 5, res.Stats.Records)
	assert.Len(t, res.Messages, 2)
}

func TestPipeline_Filters(t *testing.T) {
	rx, err := filter.NewDirectionFilter([]string{"rx"})
	require.NoError(t, err)
	collector := metrics.NewCollector()

	res, err := NewBuilder().
		WithName("rx-only").
		WithFilters(rx).
		WithMetrics(collector).
		KeepRecords().
		Build().
		Run(context.Background(), bytes.NewReader(encodeCapture(t, sampleRecords())))
	require.NoError(t, err)

	assert.Equal(t, 6, res.Stats.Records)
	assert.Equal(t, 3, res.Stats.Filtered)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, core.TagDeviceIDResponse, res.Messages[0].TypeTag)
	assert.Len(t, res.Records, 3)

	assert.Equal(t, 3.0, testutil.ToFloat64(collector.FilteredTotal.WithLabelValues("rx-only")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.MessagesByTypeTotal.WithLabelValues("rx-only", core.TagDeviceIDResponse)))
}

func TestPipeline_SubchannelSelection(t *testing.T) {
	res, err := NewBuilder().
		WithDecoder(decoder.Config{Subchannels: []uint8{5}}).
		Build().
		Run(context.Background(), bytes.NewReader(encodeCapture(t, sampleRecords())))
	require.NoError(t, err)

	assert.Empty(t, res.Messages)
	assert.Equal(t, 4, res.Stats.Filtered)
}

func TestPipeline_CustomClassifier(t *testing.T) {
	c := correlator.DefaultClassifier()
	c.Prepend(correlator.Rule{Name: "all-sent", Match: correlator.DirectionIs(core.Sent), Tag: "HOST"})

	res, err := New(Config{Classifier: c}).Run(context.Background(), bytes.NewReader(encodeCapture(t, sampleRecords())))
	require.NoError(t, err)

	require.Len(t, res.Messages, 3)
	assert.Equal(t, "HOST", res.Messages[0].TypeTag)
	assert.Equal(t, core.TagDeviceIDResponse, res.Messages[1].TypeTag)
	assert.Equal(t, "HOST", res.Messages[2].TypeTag)
}

func TestRunFiles(t *testing.T) {
	dir := t.TempDir()
	recs := sampleRecords()
	paths := []string{
		writeCapture(t, dir, "a.log", recs),
		writeCapture(t, dir, "b.log", recs[:3]),
		writeCapture(t, dir, "c.log", recs[4:]),
	}
	progress := &Progress{}

	results, err := RunFiles(context.Background(), paths, Config{Progress: progress}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, paths[i], res.Name)
	}
	assert.Len(t, results[0].Messages, 3)
	assert.Len(t, results[1].Messages, 2)
	assert.Len(t, results[2].Messages, 1)

	assert.Equal(t, uint64(3), progress.Files.Load())
	assert.Equal(t, uint64(11), progress.Records.Load())
	assert.Equal(t, uint64(6), progress.Messages.Load())
}

func TestRunFiles_MissingFile(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeCapture(t, dir, "a.log", sampleRecords()), dir + "/missing.log"}

	_, err := RunFiles(context.Background(), paths, Config{}, 1)
	assert.Error(t, err)
}

func BenchmarkPipeline_Run(b *testing.B) {
	var recs []core.CaptureRecord
	for i := 0; i < 200; i++ {
		recs = append(recs, sampleRecords()...)
	}
	data := encodeCapture(b, recs)
	p := New(Config{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Run(context.Background(), bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}
