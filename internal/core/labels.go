// Package core defines core types.
package core

// Type tags assigned by the session classifier.
const (
	TagDeviceIDRequest         = "DEVICE_ID_REQUEST"
	TagDeviceIDResponse        = "DEVICE_ID_RESPONSE"
	TagVendorIDResponse        = "VENDOR_ID_RESPONSE"
	TagFirmwareVersionResponse = "FIRMWARE_VERSION_RESPONSE"
	TagDeviceName              = "DEVICE_NAME"
	TagPassThruOpenResponse    = "PASSTHRU_OPEN_RESPONSE"

	// Sent command table, keyed by (status_code, reserved)
	TagConnectRequest = "CONNECT_REQUEST"
	TagPassThruOpen   = "PASSTHRU_OPEN"
	TagPassThruClose  = "PASSTHRU_CLOSE"
	TagGetVersion     = "GET_VERSION"
	TagReadData       = "READ_DATA"
	TagWriteData      = "WRITE_DATA"
	TagStartMsgFilter = "START_MSG_FILTER"
	TagDisconnect     = "DISCONNECT"

	TagSuccessResponse = "SUCCESS_RESPONSE"
)
