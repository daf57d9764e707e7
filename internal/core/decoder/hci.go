package decoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"firestige.xyz/spptrace/internal/core"
)

// HCI event codes.
const (
	EventConnectionComplete    uint8 = 0x03
	EventDisconnectionComplete uint8 = 0x05
	EventAuthComplete          uint8 = 0x06
	EventRemoteNameComplete    uint8 = 0x07
	EventEncryptionChange      uint8 = 0x08
	EventCommandComplete       uint8 = 0x0E
	EventCommandStatus         uint8 = 0x0F
	EventNumCompletedPackets   uint8 = 0x13
	EventLinkKeyNotification   uint8 = 0x18
	EventExtendedInquiryResult uint8 = 0x2F
)

var eventNames = map[uint8]string{
	EventConnectionComplete:    "Connection Complete",
	EventDisconnectionComplete: "Disconnection Complete",
	EventAuthComplete:          "Authentication Complete",
	EventRemoteNameComplete:    "Remote Name Request Complete",
	EventEncryptionChange:      "Encryption Change",
	EventCommandComplete:       "Command Complete",
	EventCommandStatus:         "Command Status",
	EventNumCompletedPackets:   "Number Of Completed Packets",
	EventLinkKeyNotification:   "Link Key Notification",
	EventExtendedInquiryResult: "Extended Inquiry Result",
}

// Event is a decoded HCI event packet.
type Event struct {
	Code   uint8
	Params []byte
}

// Name returns the event's display name.
func (e Event) Name() string {
	if name, ok := eventNames[e.Code]; ok {
		return name
	}
	return fmt.Sprintf("Event 0x%02X", e.Code)
}

// DecodeEvent splits an HCI event frame into code and parameters.
func DecodeEvent(frame core.LinkFrame) (Event, error) {
	if frame.Kind != core.KindEvent {
		return Event{}, fmt.Errorf("%w: %s record", core.ErrNotRecognized, frame.Kind)
	}
	data := frame.Body
	if len(data) < 2 {
		return Event{}, fmt.Errorf("%w: event header wants 2 bytes, have %d", core.ErrTruncated, len(data))
	}
	n := int(data[1])
	if len(data) < 2+n {
		return Event{Code: data[0]}, fmt.Errorf("%w: event 0x%02X wants %d parameter bytes, have %d",
			core.ErrTruncated, data[0], n, len(data)-2)
	}
	return Event{Code: data[0], Params: data[2 : 2+n]}, nil
}

// ConnectionComplete reads a successful Connection Complete event.
func (e Event) ConnectionComplete() (core.Device, bool) {
	p := e.Params
	if e.Code != EventConnectionComplete || len(p) < 11 || p[0] != 0 {
		return core.Device{}, false
	}
	d := core.Device{
		Handle:    binary.LittleEndian.Uint16(p[1:3]) & 0x0FFF,
		LinkType:  p[9],
		Encrypted: p[10] != 0,
	}
	copy(d.Address[:], p[3:9])
	return d, true
}

// RemoteName reads a successful Remote Name Request Complete event.
func (e Event) RemoteName() (addr [6]byte, name string, ok bool) {
	p := e.Params
	if e.Code != EventRemoteNameComplete || len(p) < 7 || p[0] != 0 {
		return addr, "", false
	}
	copy(addr[:], p[1:7])
	raw := p[7:]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	return addr, strings.ToValidUTF8(string(raw), "�"), true
}

// EncryptionChange reads the handle and new state of an Encryption Change event.
func (e Event) EncryptionChange() (handle uint16, enabled bool, ok bool) {
	p := e.Params
	if e.Code != EventEncryptionChange || len(p) < 4 || p[0] != 0 {
		return 0, false, false
	}
	return binary.LittleEndian.Uint16(p[1:3]) & 0x0FFF, p[3] != 0, true
}

// DisconnectionComplete reads the handle of a Disconnection Complete event.
func (e Event) DisconnectionComplete() (handle uint16, reason uint8, ok bool) {
	p := e.Params
	if e.Code != EventDisconnectionComplete || len(p) < 4 || p[0] != 0 {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint16(p[1:3]) & 0x0FFF, p[3], true
}

// DeviceTable tracks remote devices by connection handle. A handle is
// retired on Disconnection Complete, so a controller reusing it starts a
// new entry.
type DeviceTable struct {
	active  map[uint16]*core.Device
	devices []*core.Device
	names   map[[6]byte]string
}

// NewDeviceTable returns an empty table.
func NewDeviceTable() *DeviceTable {
	return &DeviceTable{
		active: make(map[uint16]*core.Device),
		names:  make(map[[6]byte]string),
	}
}

// Observe folds an event into the table.
func (t *DeviceTable) Observe(e Event) {
	if d, ok := e.ConnectionComplete(); ok {
		if name, ok := t.names[d.Address]; ok {
			d.Name = name
		}
		if prev, ok := t.active[d.Handle]; ok && prev.Address == d.Address {
			*prev = d
			return
		}
		t.active[d.Handle] = &d
		t.devices = append(t.devices, &d)
		return
	}
	if addr, name, ok := e.RemoteName(); ok {
		t.names[addr] = name
		for _, d := range t.devices {
			if d.Address == addr {
				d.Name = name
			}
		}
		return
	}
	if handle, enabled, ok := e.EncryptionChange(); ok {
		if d, ok := t.active[handle]; ok {
			d.Encrypted = enabled
		}
		return
	}
	if handle, reason, ok := e.DisconnectionComplete(); ok {
		if d, ok := t.active[handle]; ok {
			d.Disconnected = true
			d.DisconnectReason = reason
			delete(t.active, handle)
		}
	}
}

// Devices returns every device seen, in connection order.
func (t *DeviceTable) Devices() []core.Device {
	out := make([]core.Device, 0, len(t.devices))
	for _, d := range t.devices {
		out = append(out, *d)
	}
	return out
}
