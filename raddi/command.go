package raddi

import (
	"net/netip"

	"github.com/google/uuid"
)

// CommandOp identifies a local control-channel instruction dropped into the
// watched intake directory alongside entry files, distinguished from an
// entry by size and a leading opcode byte.
type CommandOp uint8

const (
	CommandTest CommandOp = 0x00

	CommandSetLogLevel     CommandOp = 0x01
	CommandSetDisplayLevel CommandOp = 0x02
	CommandOptimize        CommandOp = 0x03

	CommandAddPeer     CommandOp = 0x10
	CommandRemovePeer  CommandOp = 0x11
	CommandBanPeer     CommandOp = 0x12
	CommandUnbanPeer   CommandOp = 0x13
	CommandAddCorePeer CommandOp = 0x1A
	CommandConnectPeer CommandOp = 0x1C

	CommandDownload       CommandOp = 0x20
	CommandErase          CommandOp = 0x21
	CommandEraseThorough  CommandOp = 0x22

	CommandSubscribe   CommandOp = 0x30
	CommandUnsubscribe CommandOp = 0x31
	CommandBlacklist   CommandOp = 0x32
	CommandUnblacklist CommandOp = 0x33
	CommandRetain      CommandOp = 0x34
	CommandUnretain    CommandOp = 0x35
)

// Subscription names the pairing of a channel (or, for an app's own
// bookkeeping, the null channel) and the application uuid subscribing to
// it — the unit tracked by the coordinator's subscription set.
type Subscription struct {
	Channel     EID
	Application uuid.UUID
}

// Command is one decoded control-channel instruction.
type Command struct {
	Op           CommandOp
	Peer         Address
	Subscription Subscription
	EntryID      EID
	Level        uint8
}

// MinCommandSize is the smallest a source-directory file can be and still
// carry a command: the 4-byte opcode header alone (the original widens the
// opcode to 32 bits for content alignment), no payload.
const MinCommandSize = 4

// peerAddressSize is the wire size of an address as carried in peer
// commands: a family byte, 16 bytes of IP (v4 stored in its IPv4-mapped
// 16-byte form), and a little-endian port.
const peerAddressSize = 1 + 16 + 2

func encodeAddress(a Address) []byte {
	buf := make([]byte, peerAddressSize)
	ip16 := a.IP.As16()
	if a.IP.Is4() {
		buf[0] = 4
	} else {
		buf[0] = 6
	}
	copy(buf[1:17], ip16[:])
	buf[17], buf[18] = byte(a.Port), byte(a.Port>>8)
	return buf
}

func decodeAddress(b []byte) (Address, bool) {
	if len(b) < peerAddressSize {
		return Address{}, false
	}
	var ip16 [16]byte
	copy(ip16[:], b[1:17])
	addr := netip.AddrFrom16(ip16)
	if b[0] == 4 {
		addr = addr.Unmap()
	}
	port := uint16(b[17]) | uint16(b[18])<<8
	return Address{IP: addr, Port: port}, true
}

// EncodeCommand renders cmd in the wire form read from the source
// directory: a 4-byte little-endian opcode followed by opcode-specific
// content, mirroring raddi_command.h's per-opcode payload union.
func EncodeCommand(cmd Command) []byte {
	buf := make([]byte, 4)
	putUint32LE(buf, uint32(cmd.Op))

	switch cmd.Op {
	case CommandSetLogLevel, CommandSetDisplayLevel:
		buf = append(buf, cmd.Level)

	case CommandAddPeer, CommandRemovePeer, CommandBanPeer, CommandUnbanPeer,
		CommandAddCorePeer, CommandConnectPeer:
		buf = append(buf, encodeAddress(cmd.Peer)...)

	case CommandErase, CommandEraseThorough:
		buf = append(buf, cmd.EntryID.MarshalBinary()...)

	case CommandSubscribe, CommandUnsubscribe, CommandBlacklist,
		CommandUnblacklist, CommandRetain, CommandUnretain:
		buf = append(buf, cmd.Subscription.Channel.MarshalBinary()...)
		appUUID, _ := cmd.Subscription.Application.MarshalBinary()
		buf = append(buf, appUUID...)
	}
	return buf
}

// DecodeCommand parses a source-directory file too short to be an entry
// into a Command, per the opcode-specific payload layouts EncodeCommand
// writes. Unknown opcodes decode successfully (Op carries the raw value)
// so callers can log and ignore them rather than reject the file.
func DecodeCommand(payload []byte) (Command, bool) {
	if len(payload) < MinCommandSize {
		return Command{}, false
	}
	cmd := Command{Op: CommandOp(getUint32LE(payload[0:4]))}
	rest := payload[4:]

	switch cmd.Op {
	case CommandSetLogLevel, CommandSetDisplayLevel:
		if len(rest) < 1 {
			return Command{}, false
		}
		cmd.Level = rest[0]

	case CommandAddPeer, CommandRemovePeer, CommandBanPeer, CommandUnbanPeer,
		CommandAddCorePeer, CommandConnectPeer:
		addr, ok := decodeAddress(rest)
		if !ok {
			return Command{}, false
		}
		cmd.Peer = addr

	case CommandErase, CommandEraseThorough:
		eid, ok := UnmarshalEID(rest)
		if !ok {
			return Command{}, false
		}
		cmd.EntryID = eid

	case CommandSubscribe, CommandUnsubscribe, CommandBlacklist,
		CommandUnblacklist, CommandRetain, CommandUnretain:
		eid, ok := UnmarshalEID(rest)
		if !ok || len(rest) < wireSize+16 {
			return Command{}, false
		}
		app, err := uuid.FromBytes(rest[wireSize : wireSize+16])
		if err != nil {
			return Command{}, false
		}
		cmd.Subscription = Subscription{Channel: eid, Application: app}

	case CommandTest, CommandOptimize:
		// no payload

	default:
		// unrecognized opcode, carried through with no decoded payload
	}
	return cmd, true
}
