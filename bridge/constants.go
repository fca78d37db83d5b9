package bridge

// USB ids of the CDC bridge firmware, used for autodetection.
var VENDOR_ID = "0483"
var PRODUCT_IDs = []string{"5740", "5741"}

const (
	CMD_WRITE = "WI2C"
	CMD_READ  = "RI2C"
)

const packetMagic = "   #"

// MAX_TRANSFER is the largest payload the bridge buffers for one i2c
// transaction, in either direction.
const MAX_TRANSFER = 255

type status uint8

var STATUS_OK = status(0x00)
var STATUS_NACK = status(0x01)
var STATUS_BUS_ERROR = status(0x02)
var STATUS_TIMEOUT = status(0x03)

var statusNames = map[status]string{
	STATUS_OK:        "ok",
	STATUS_NACK:      "nack",
	STATUS_BUS_ERROR: "bus error",
	STATUS_TIMEOUT:   "timeout",
}

func (s status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}
