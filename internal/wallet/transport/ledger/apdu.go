package ledger

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github/chapool/ledger-signer/internal/wallet/transport"
)

type opcode byte

const (
	opGetAddress       opcode = 0x02 // public key and address at a BIP32 path
	opSignTransaction  opcode = 0x04 // sign after user confirmation
	opGetConfiguration opcode = 0x06 // app flags and version

	p1FirstChunk byte = 0x00
	p1NextChunk  byte = 0x80

	p2NoChainCode   byte = 0x00
	p2WithChainCode byte = 0x01
)

const (
	apduClass = 0xe0

	reportSize = 64
	headerSize = 5 // channel (2) | tag (1) | sequence (2)
	channelHi  = 0x01
	channelLo  = 0x01
	commandTag = 0x05

	// maxChunk is the largest data block of a single APDU
	maxChunk = 255
)

// Status words returned in the last two bytes of every reply
const (
	swOK            uint16 = 0x9000
	swUserRejected  uint16 = 0x6985
	swInvalidData   uint16 = 0x6a80
	swWrongApp      uint16 = 0x6d00
	swWrongAppClass uint16 = 0x6e00
	swLocked        uint16 = 0x5515
)

var errInvalidHeader = errors.New("reply header mismatch, is the Ethereum app open?")

// statusError maps a non-success status word to a transport error
func statusError(op string, sw uint16) error {
	switch sw {
	case swUserRejected:
		return transport.ErrUserRejected
	case swWrongApp, swWrongAppClass:
		return &transport.Error{Op: op, Err: fmt.Errorf("ethereum app not open (status 0x%04x)", sw)}
	case swLocked:
		return &transport.Error{Op: op, Err: fmt.Errorf("device locked (status 0x%04x)", sw)}
	case swInvalidData:
		return &transport.Error{Op: op, Err: fmt.Errorf("device rejected request data (status 0x%04x)", sw)}
	default:
		return &transport.Error{Op: op, Err: fmt.Errorf("device returned status 0x%04x", sw)}
	}
}

// frames splits msg into HID reports. The first report carries the big endian
// message length in front of the data.
func frames(msg []byte) [][]byte {
	data := make([]byte, 2, 2+len(msg))
	binary.BigEndian.PutUint16(data, uint16(len(msg)))
	data = append(data, msg...)

	var reports [][]byte
	for seq := 0; len(data) > 0; seq++ {
		report := make([]byte, reportSize)
		report[0], report[1], report[2] = channelHi, channelLo, commandTag
		binary.BigEndian.PutUint16(report[3:], uint16(seq))

		n := copy(report[headerSize:], data)
		data = data[n:]
		reports = append(reports, report)
	}

	return reports
}

// readMessage reassembles one message from consecutive HID reports
func readMessage(r io.Reader) ([]byte, error) {
	var (
		report = make([]byte, reportSize)
		msg    []byte
		size   int
	)

	for seq := 0; ; seq++ {
		if _, err := io.ReadFull(r, report); err != nil {
			return nil, errors.Wrap(err, "failed to read reply")
		}

		if report[0] != channelHi || report[1] != channelLo || report[2] != commandTag {
			return nil, errInvalidHeader
		}

		if got := int(binary.BigEndian.Uint16(report[3:5])); got != seq {
			return nil, errors.Errorf("reply sequence %d out of order, expected %d", got, seq)
		}

		payload := report[headerSize:]
		if seq == 0 {
			size = int(binary.BigEndian.Uint16(payload[:2]))
			msg = make([]byte, 0, size)
			payload = payload[2:]
		}

		if left := size - len(msg); left > len(payload) {
			msg = append(msg, payload...)
		} else {
			return append(msg, payload[:left]...), nil
		}
	}
}

// exchange sends one APDU and returns the reply data without the status word
func exchange(device io.ReadWriter, op opcode, p1, p2 byte, data []byte) ([]byte, error) {
	if len(data) > maxChunk {
		return nil, errors.Errorf("apdu data of %d bytes exceeds %d", len(data), maxChunk)
	}

	apdu := make([]byte, 0, 5+len(data))
	apdu = append(apdu, apduClass, byte(op), p1, p2, byte(len(data)))
	apdu = append(apdu, data...)

	for _, report := range frames(apdu) {
		if _, err := device.Write(report); err != nil {
			return nil, errors.Wrap(err, "failed to write to device")
		}
	}

	reply, err := readMessage(device)
	if err != nil {
		return nil, err
	}

	if len(reply) < 2 {
		return nil, errors.New("reply lacks status word")
	}

	if sw := binary.BigEndian.Uint16(reply[len(reply)-2:]); sw != swOK {
		return nil, statusError(op.String(), sw)
	}

	return reply[:len(reply)-2], nil
}

func (o opcode) String() string {
	switch o {
	case opGetAddress:
		return "derive"
	case opSignTransaction:
		return "sign"
	case opGetConfiguration:
		return "version"
	default:
		return fmt.Sprintf("opcode 0x%02x", byte(o))
	}
}
